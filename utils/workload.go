package utils

import (
	"fmt"
	"strings"

	"github.com/pingcap/parser/types"
)

// Query is a DQL or DML statement of the workload.
type Query struct {
	Alias            string
	SchemaName       string // schema of unqualified table names, may be empty
	Text             string
	Frequency        int         // executions represented by this query
	IndexableColumns Set[Column] // filled by the profiler
}

// Key identifies a query by its text.
func (q Query) Key() string {
	return q.Text
}

// TableName is a schema qualified table name.
type TableName struct {
	SchemaName string
	TableName  string
}

// Key is case insensitive.
func (t TableName) Key() string {
	return strings.ToLower(t.SchemaName + "." + t.TableName)
}

// TableSchema is the definition of a table and its existing indexes.
type TableSchema struct {
	SchemaName string
	TableName  string
	Columns    []Column
	Indexes    []Index
}

func (t TableSchema) Key() string {
	return t.SchemaName + "." + t.TableName
}

// Column is a table column, its type is only known for columns read from a schema.
type Column struct {
	SchemaName string
	TableName  string
	ColumnName string
	ColumnType *types.FieldType
}

// NewColumn creates a column, names are lower-cased.
func NewColumn(schemaName, tableName, columnName string) Column {
	return Column{
		SchemaName: strings.ToLower(schemaName),
		TableName:  strings.ToLower(tableName),
		ColumnName: strings.ToLower(columnName),
	}
}

// NewColumns creates columns of the same table.
func NewColumns(schemaName, tableName string, columnNames ...string) []Column {
	cols := make([]Column, 0, len(columnNames))
	for _, name := range columnNames {
		cols = append(cols, NewColumn(schemaName, tableName, name))
	}
	return cols
}

// Key returns `schema.table.column`.
func (c Column) Key() string {
	return c.SchemaName + "." + c.TableName + "." + c.ColumnName
}

func (c Column) String() string {
	return c.Key()
}

// Width returns the estimated width of this column in bytes, 8 when the type
// is unknown and at most 512.
func (c Column) Width() int {
	if c.ColumnType == nil || c.ColumnType.Flen <= 0 {
		return 8
	}
	return min(c.ColumnType.Flen, 512)
}

// Index is an index definition, existing or hypothetical.
type Index struct {
	SchemaName string
	TableName  string
	IndexName  string
	Columns    []Column
}

// NewIndex creates an index, names are lower-cased.
func NewIndex(schemaName, tableName, indexName string, columns ...string) Index {
	return Index{
		SchemaName: strings.ToLower(schemaName),
		TableName:  strings.ToLower(tableName),
		IndexName:  strings.ToLower(indexName),
		Columns:    NewColumns(schemaName, tableName, columns...),
	}
}

// NewIndexWithColumns creates an index on columns of one table.
func NewIndexWithColumns(indexName string, columns ...Column) Index {
	names := make([]string, 0, len(columns))
	for _, col := range columns {
		names = append(names, col.ColumnName)
	}
	return NewIndex(columns[0].SchemaName, columns[0].TableName, indexName, names...)
}

func (i Index) ColumnNames() []string {
	names := make([]string, 0, len(i.Columns))
	for _, col := range i.Columns {
		names = append(names, col.ColumnName)
	}
	return names
}

// DDL returns the statement building this index.
func (i Index) DDL() string {
	return fmt.Sprintf("CREATE INDEX %v ON %v.%v (%v)", i.IndexName, i.SchemaName, i.TableName, strings.Join(i.ColumnNames(), ", "))
}

// Key identifies the definition regardless of the index name, like `test.t(a,b)`.
func (i Index) Key() string {
	return fmt.Sprintf("%v.%v(%v)", i.SchemaName, i.TableName, strings.Join(i.ColumnNames(), ","))
}

// TempIndexName names a candidate index after its columns, like `idx_a_b`.
func TempIndexName(cols ...Column) string {
	names := make([]string, 0, len(cols))
	for _, col := range cols {
		names = append(names, col.ColumnName)
	}
	return "idx_" + strings.Join(names, "_")
}

// LowerString is a lower-cased string that can be put into a Set.
type LowerString string

func (s LowerString) Key() string {
	return string(s)
}

// WorkloadInfo is the workload to tune and the schemas of the tables it reads.
type WorkloadInfo struct {
	Queries      Set[Query]
	TableSchemas Set[TableSchema]
}
