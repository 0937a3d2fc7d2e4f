package utils

import (
	"fmt"
	"strings"

	"github.com/pingcap/parser/ast"
)

// LoadQueries loads queries from a directory of *.sql files, aliased by file
// name, or from a file of `;` separated statements, aliased q1, q2 and so on.
// All queries run under schemaName.
func LoadQueries(schemaName, queryPath string) (Set[Query], error) {
	exist, isDir := FileExists(queryPath)
	if !exist {
		return nil, fmt.Errorf("can not find queries directory or queries.sql file under %s", queryPath)
	}
	queries := NewSet[Query]()
	if isDir {
		files, err := ReadSQLFiles(queryPath)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			queries.Add(Query{Alias: f.Name, SchemaName: schemaName, Text: f.Text, Frequency: 1})
		}
	} else {
		stmts, err := ReadSQLStatements(queryPath)
		if err != nil {
			return nil, err
		}
		for i, stmt := range stmts {
			queries.Add(Query{Alias: fmt.Sprintf("q%v", i+1), SchemaName: schemaName, Text: stmt, Frequency: 1})
		}
	}
	Infof("load %d queries from %s", queries.Size(), queryPath)
	return queries, nil
}

// ParseCreateTableStmt parses a create table statement and returns a TableSchema.
func ParseCreateTableStmt(schemaName, createTableStmt string) (TableSchema, error) {
	stmt, err := ParseOneSQL(createTableStmt)
	if err != nil {
		return TableSchema{}, err
	}
	createTable, ok := stmt.(*ast.CreateTableStmt)
	if !ok {
		return TableSchema{}, fmt.Errorf("not a create table statement: %v", createTableStmt)
	}
	t := TableSchema{
		SchemaName: schemaName,
		TableName:  createTable.Table.Name.L,
	}
	for _, colDef := range createTable.Cols {
		t.Columns = append(t.Columns, Column{
			SchemaName: schemaName,
			TableName:  createTable.Table.Name.L,
			ColumnName: colDef.Name.Name.L,
			ColumnType: colDef.Tp.Clone(),
		})
	}
	for _, cons := range createTable.Constraints {
		switch cons.Tp {
		case ast.ConstraintIndex, ast.ConstraintKey, ast.ConstraintUniq, ast.ConstraintUniqIndex, ast.ConstraintUniqKey:
		default:
			continue
		}
		var cols []string
		for _, key := range cons.Keys {
			if key.Column != nil {
				cols = append(cols, key.Column.Name.L)
			}
		}
		if len(cols) == 0 {
			continue
		}
		name := strings.ToLower(cons.Name)
		if name == "" {
			name = TempIndexName(NewColumns(schemaName, t.TableName, cols...)...)
		}
		t.Indexes = append(t.Indexes, NewIndex(schemaName, t.TableName, name, cols...))
	}
	return t, nil
}
