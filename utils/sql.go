package utils

import (
	"strings"

	"github.com/pingcap/parser"
	"github.com/pingcap/parser/ast"
	_ "github.com/pingcap/tidb/types/parser_driver"
	"github.com/pkg/errors"
)

// StmtType is the kind of a statement found in schema files and sessions.
type StmtType int

const (
	StmtUnknown StmtType = iota
	StmtCreateDB
	StmtUseDB
	StmtCreateTable
	StmtSet
)

// GetStmtType returns the type of the given statement, StmtUnknown if it
// cannot be parsed.
func GetStmtType(stmt string) StmtType {
	node, err := ParseOneSQL(stmt)
	if err != nil {
		return StmtUnknown
	}
	switch node.(type) {
	case *ast.CreateDatabaseStmt:
		return StmtCreateDB
	case *ast.UseStmt:
		return StmtUseDB
	case *ast.CreateTableStmt:
		return StmtCreateTable
	case *ast.SetStmt:
		return StmtSet
	}
	return StmtUnknown
}

// GetStmtDBName returns the database a `USE` or `CREATE DATABASE` statement
// refers to, or an empty string for other statements.
func GetStmtDBName(stmt string) string {
	node, err := ParseOneSQL(stmt)
	if err != nil {
		return ""
	}
	switch x := node.(type) {
	case *ast.UseStmt:
		return x.DBName
	case *ast.CreateDatabaseStmt:
		return x.Name
	}
	return ""
}

// ParseOneSQL parses one statement.
func ParseOneSQL(sqlText string) (ast.StmtNode, error) {
	return parser.New().ParseOneStmt(sqlText, "", "")
}

// NormalizeDigest returns the normalized text of the query and its digest,
// queries differing only in constants share both.
func NormalizeDigest(sqlText string) (normalized, digest string) {
	return parser.NormalizeDigest(sqlText)
}

// tableRefs collects the tables a statement reads. Unqualified references to
// a CTE of the statement are skipped.
type tableRefs struct {
	schema string
	ctes   map[string]struct{}
	tables Set[TableName]
}

func (r *tableRefs) Enter(n ast.Node) (ast.Node, bool) {
	if with, ok := n.(*ast.WithClause); ok {
		for _, cte := range with.CTEs {
			r.ctes[cte.Name.L] = struct{}{}
		}
		return n, false
	}
	ref, ok := n.(*ast.TableName)
	if !ok {
		return n, false
	}
	schema := ref.Schema.O
	if schema == "" {
		if _, isCTE := r.ctes[ref.Name.L]; isCTE {
			return n, false
		}
		schema = r.schema
	}
	r.tables.Add(TableName{SchemaName: schema, TableName: ref.Name.O})
	return n, false
}

func (r *tableRefs) Leave(n ast.Node) (ast.Node, bool) {
	return n, true
}

// CollectTableNamesFromSQL returns the tables the query reads, CTE names excluded.
// Unqualified names belong to defaultSchemaName.
func CollectTableNamesFromSQL(defaultSchemaName, sqlText string) (Set[TableName], error) {
	stmt, err := ParseOneSQL(sqlText)
	if err != nil {
		return nil, err
	}
	refs := &tableRefs{schema: defaultSchemaName, ctes: make(map[string]struct{}), tables: NewSet[TableName]()}
	stmt.Accept(refs)
	return refs.tables, nil
}

// CollectTableNamesFromQueries returns the tables read by any of the queries.
func CollectTableNamesFromQueries(queries Set[Query]) (Set[TableName], error) {
	all := NewSet[TableName]()
	for _, q := range queries {
		tables, err := CollectTableNamesFromSQL(q.SchemaName, q.Text)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %v", q.Text)
		}
		all.AddSet(tables)
	}
	return all, nil
}

var systemSchemas = map[string]struct{}{
	"information_schema": {},
	"metrics_schema":     {},
	"performance_schema": {},
	"mysql":              {},
}

// IsTiDBSystemTableName returns whether the table lives in a system schema,
// such tables are never indexed.
func IsTiDBSystemTableName(t TableName) bool {
	_, ok := systemSchemas[strings.ToLower(t.SchemaName)]
	return ok
}
