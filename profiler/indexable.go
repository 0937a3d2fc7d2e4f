package profiler

import (
	"strings"

	"github.com/pingcap/parser/ast"
	"github.com/pingcap/parser/mysql"
	"github.com/pingcap/parser/opcode"

	"github.com/qw4990/online_index_advisor/utils"
)

// indexableColumnsVisitor finds all columns of one query that appear in any
// range-filter, order-by, or group-by clause.
type indexableColumnsVisitor struct {
	tables        utils.Set[utils.TableSchema]
	query         utils.Query
	relatedTables utils.Set[utils.TableName]
	cols          utils.Set[utils.Column]
}

func (v *indexableColumnsVisitor) Enter(n ast.Node) (node ast.Node, skipChildren bool) {
	switch x := n.(type) {
	case *ast.GroupByClause: // group by {col}
		for _, item := range x.Items {
			v.collectColumn(item.Expr)
		}
		return n, true
	case *ast.OrderByClause: // order by {col}
		for _, item := range x.Items {
			v.collectColumn(item.Expr)
		}
		return n, true
	case *ast.BetweenExpr: // {col} between ? and ?
		v.collectColumn(x.Expr)
	case *ast.PatternInExpr: // {col} in (?, ?, ...)
		v.collectColumn(x.Expr)
	case *ast.BinaryOperationExpr: // range predicates like `{col} > ?`
		switch x.Op {
		case opcode.EQ, opcode.LT, opcode.LE, opcode.GT, opcode.GE:
			v.collectColumn(x.L)
			v.collectColumn(x.R)
		}
	}
	return n, false
}

func (v *indexableColumnsVisitor) Leave(n ast.Node) (node ast.Node, ok bool) {
	return n, true
}

func (v *indexableColumnsVisitor) collectColumn(n ast.Node) {
	switch x := n.(type) {
	case *ast.ColumnNameExpr:
		v.collectColumn(x.Name)
	case *ast.ColumnName:
		schemaName := x.Schema.L
		if schemaName == "" {
			schemaName = strings.ToLower(v.query.SchemaName)
		}
		if schemaName == "" {
			return
		}
		cols := v.matchPossibleColumns(schemaName, x.Table.L, x.Name.L)
		if len(cols) == 0 && x.Table.L != "" { // the qualifier may be an alias
			cols = v.matchPossibleColumns(schemaName, "", x.Name.L)
		}
		for _, c := range cols {
			if indexableType(c) {
				v.cols.Add(c)
			}
		}
	}
}

// matchPossibleColumns returns the columns named columnName in the tables
// referenced by the query. Without a table qualifier, every referenced table
// having such a column matches.
func (v *indexableColumnsVisitor) matchPossibleColumns(schemaName, tableName, columnName string) (cols []utils.Column) {
	for _, table := range v.tables.ToList() {
		if !strings.EqualFold(table.SchemaName, schemaName) {
			continue
		}
		if !v.relatedTables.Contains(utils.TableName{SchemaName: schemaName, TableName: table.TableName}) {
			continue
		}
		if tableName != "" && !strings.EqualFold(table.TableName, tableName) {
			continue
		}
		for _, col := range table.Columns {
			if col.ColumnName == columnName {
				col.SchemaName = schemaName
				cols = append(cols, col)
			}
		}
	}
	return
}

func indexableType(c utils.Column) bool {
	if c.ColumnType == nil {
		return false
	}
	switch c.ColumnType.Tp {
	case mysql.TypeTiny, mysql.TypeShort, mysql.TypeInt24, mysql.TypeLong, mysql.TypeLonglong, mysql.TypeYear,
		mysql.TypeFloat, mysql.TypeDouble, mysql.TypeNewDecimal,
		mysql.TypeDuration, mysql.TypeDate, mysql.TypeDatetime, mysql.TypeTimestamp:
		return true
	case mysql.TypeVarchar, mysql.TypeString, mysql.TypeVarString:
		return c.ColumnType.Flen <= 512
	}
	return false
}

// IndexableColumns returns the indexable columns of the query.
func IndexableColumns(tables utils.Set[utils.TableSchema], query utils.Query) (utils.Set[utils.Column], error) {
	stmt, err := utils.ParseOneSQL(query.Text)
	if err != nil {
		return nil, err
	}
	related, err := utils.CollectTableNamesFromSQL(query.SchemaName, query.Text)
	if err != nil {
		return nil, err
	}
	v := &indexableColumnsVisitor{
		tables:        tables,
		query:         query,
		relatedTables: related,
		cols:          utils.NewSet[utils.Column](),
	}
	stmt.Accept(v)
	return v.cols, nil
}
