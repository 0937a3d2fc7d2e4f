package cmd

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/qw4990/online_index_advisor/optimizer"
	"github.com/qw4990/online_index_advisor/utils"
)

// loadSchemaIntoCluster replays a schema file on the cluster, skipping
// databases and tables that already exist. It returns the last used database.
func loadSchemaIntoCluster(db optimizer.WhatIfOptimizer, schemaFilePath string) (string, error) {
	if schemaFilePath == "" {
		return "", nil
	}
	stmts, err := utils.ReadSQLStatements(schemaFilePath)
	if err != nil {
		return "", err
	}
	utils.Infof("load %d schema statements from %v", len(stmts), schemaFilePath)

	currentDB := "test"
	for _, stmt := range stmts {
		skip := false
		switch utils.GetStmtType(stmt) {
		case utils.StmtUseDB:
			currentDB = utils.GetStmtDBName(stmt)
		case utils.StmtCreateDB:
			if skip, err = exists(db, "select count(*) from information_schema.schemata where lower(schema_name) = '%s'",
				strings.ToLower(utils.GetStmtDBName(stmt))); err != nil {
				return "", err
			}
		case utils.StmtCreateTable:
			table, err := utils.ParseCreateTableStmt(currentDB, stmt)
			if err != nil {
				return "", err
			}
			if skip, err = tableExists(db, table.SchemaName, table.TableName); err != nil {
				return "", err
			}
			if !skip {
				utils.Infof("create table %v", table.Key())
			}
		}
		if skip {
			continue
		}
		if err := db.Execute(stmt); err != nil {
			return "", err
		}
	}
	return currentDB, nil
}

// loadStatsIntoCluster loads every *.json statistics dump of statsDirPath,
// a missing directory is not an error.
func loadStatsIntoCluster(db optimizer.WhatIfOptimizer, statsDirPath string) error {
	if statsDirPath == "" {
		return nil
	}
	if exist, isDir := utils.FileExists(statsDirPath); !exist || !isDir {
		utils.Infof("no stats directory %s, skip loading stats", statsDirPath)
		return nil
	}
	files, err := filepath.Glob(filepath.Join(statsDirPath, "*.json"))
	if err != nil {
		return errors.Wrapf(err, "failed to list %v", statsDirPath)
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return errors.WithStack(err)
		}
		table, err := getStatsFileTableName(abs)
		if err != nil {
			return err
		}
		utils.Infof("load stats of %v from %v", table.Key(), f)
		// `load stats` reads the file through the client, which must allow it
		mysql.RegisterLocalFile(abs)
		if err := db.Execute(fmt.Sprintf("load stats '%s'", abs)); err != nil {
			return err
		}
	}
	return nil
}

// getStatsFileTableName returns the table a statistics dump belongs to.
func getStatsFileTableName(statsFile string) (utils.TableName, error) {
	data, err := os.ReadFile(statsFile)
	if err != nil {
		return utils.TableName{}, errors.WithStack(err)
	}
	var header struct {
		DatabaseName string `json:"database_name"`
		TableName    string `json:"table_name"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return utils.TableName{}, errors.Wrapf(err, "invalid stats file %v", statsFile)
	}
	return utils.TableName{SchemaName: header.DatabaseName, TableName: header.TableName}, nil
}

// exists reports whether a `select count(*)` query counts anything.
func exists(db optimizer.WhatIfOptimizer, format string, args ...any) (bool, error) {
	rows, err := db.Query(fmt.Sprintf(format, args...))
	if err != nil {
		return false, err
	}
	defer rows.Close()
	var count int
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return false, errors.WithStack(err)
		}
	}
	return count > 0, rows.Err()
}

func tableExists(db optimizer.WhatIfOptimizer, schemaName, tableName string) (bool, error) {
	return exists(db, "select count(*) from information_schema.tables where lower(table_schema) = '%s' and lower(table_name) = '%s'",
		strings.ToLower(schemaName), strings.ToLower(tableName))
}

// checkOnlineModeSupport returns the reason why the cluster cannot be tuned online, or "".
func checkOnlineModeSupport(db optimizer.WhatIfOptimizer) string {
	// any error but a syntax error means the statement is understood
	err := db.Execute("drop hypo index hypo_index_test_name on test")
	if err != nil && strings.Contains(err.Error(), "You have an error in your SQL syntax") {
		return "your TiDB version does not support hypothetical index feature"
	}

	rows, err := db.Query("select @@global.tidb_redact_log")
	if err != nil {
		return ""
	}
	defer rows.Close()
	var redact string
	if rows.Next() && rows.Scan(&redact) == nil {
		if v := strings.ToLower(redact); v == "1" || v == "on" {
			return "redact log is enabled, the advisor probably cannot get the full SQL text"
		}
	}
	return ""
}

// summaryFilter builds the where clause selecting statements worth tuning
// from the statement summary tables.
func summaryFilter(querySchemas []string, minAvgLatencyMS, minExecCount int) string {
	conds := []string{"stmt_type in ('Select', 'Insert', 'Update', 'Delete')"}
	if len(querySchemas) > 0 {
		conds = append(conds, fmt.Sprintf("schema_name in ('%s')", strings.Join(querySchemas, "', '")))
	}
	if minAvgLatencyMS > 0 {
		// avg_latency is in nanoseconds
		conds = append(conds, fmt.Sprintf("avg_latency >= %v", minAvgLatencyMS*1000000))
	}
	if minExecCount > 0 {
		conds = append(conds, fmt.Sprintf("exec_count >= %v", minExecCount))
	}
	return strings.Join(conds, " and ")
}

// readQueriesFromStatementSummary reads the workload from the current and the
// history statement summary. Executions of the same text add up.
func readQueriesFromStatementSummary(db optimizer.WhatIfOptimizer, querySchemas []string,
	minAvgLatencyMS, minExecCount int) (utils.Set[utils.Query], error) {
	where := summaryFilter(querySchemas, minAvgLatencyMS, minExecCount)
	queries := utils.NewSet[utils.Query]()
	for _, table := range []string{"information_schema.statements_summary", "information_schema.statements_summary_history"} {
		rows, err := db.Query(fmt.Sprintf("select schema_name, digest, query_sample_text, exec_count from %v where %v", table, where))
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var schemaName, digest, text sql.NullString
			var execCount int
			if err := rows.Scan(&schemaName, &digest, &text, &execCount); err != nil {
				rows.Close()
				return nil, errors.WithStack(err)
			}
			// samples may be truncated
			if _, err := utils.ParseOneSQL(text.String); err != nil {
				utils.Debugf("skip unparsable statement %v: %v", digest.String, err)
				continue
			}
			q := utils.Query{Alias: digest.String, SchemaName: schemaName.String, Text: text.String, Frequency: execCount}
			if prev, ok := queries[q.Key()]; ok {
				q.Frequency += prev.Frequency
			}
			queries.Add(q)
		}
		if err := rows.Close(); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	return queries, nil
}

// getTableSchemas reads the schemas of the existing tables among tableNames.
func getTableSchemas(db optimizer.WhatIfOptimizer, tableNames utils.Set[utils.TableName]) (utils.Set[utils.TableSchema], error) {
	schemas := utils.NewSet[utils.TableSchema]()
	for _, t := range tableNames.ToList() {
		ok, err := tableExists(db, t.SchemaName, t.TableName)
		if err != nil {
			return nil, err
		}
		if !ok {
			utils.Debugf("table %v not found, skip it", t.Key())
			continue
		}
		schema, err := showCreateTable(db, t)
		if err != nil {
			return nil, err
		}
		schemas.Add(schema)
	}
	return schemas, nil
}

func showCreateTable(db optimizer.WhatIfOptimizer, t utils.TableName) (utils.TableSchema, error) {
	rows, err := db.Query(fmt.Sprintf("show create table `%s`.`%s`", t.SchemaName, t.TableName))
	if err != nil {
		return utils.TableSchema{}, err
	}
	defer rows.Close()
	if !rows.Next() {
		return utils.TableSchema{}, errors.Errorf("no create statement for %v", t.Key())
	}
	var name, stmt string
	if err := rows.Scan(&name, &stmt); err != nil {
		return utils.TableSchema{}, errors.WithStack(err)
	}
	return utils.ParseCreateTableStmt(t.SchemaName, stmt)
}

// filterQueries keeps the queries whose referenced tables satisfy keep.
func filterQueries(queries utils.Set[utils.Query], keep func(tables utils.Set[utils.TableName]) bool) (utils.Set[utils.Query], error) {
	kept := utils.NewSet[utils.Query]()
	for _, q := range queries.ToList() {
		tables, err := utils.CollectTableNamesFromSQL(q.SchemaName, q.Text)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %v", q.Text)
		}
		if keep(tables) {
			kept.Add(q)
		}
	}
	return kept, nil
}

// readsUserTables holds for queries reading tables, none of them a system table.
// `select @@version` reads nothing and cannot use an index.
func readsUserTables(tables utils.Set[utils.TableName]) bool {
	if tables.Size() == 0 {
		return false
	}
	for _, t := range tables {
		if utils.IsTiDBSystemTableName(t) {
			return false
		}
	}
	return true
}

// readsKnownTables holds for queries reading only tables of schemas, queries
// on dropped tables cannot be costed.
func readsKnownTables(schemas utils.Set[utils.TableSchema]) func(utils.Set[utils.TableName]) bool {
	known := utils.NewSet[utils.TableName]()
	for _, s := range schemas {
		known.Add(utils.TableName{SchemaName: s.SchemaName, TableName: s.TableName})
	}
	return func(tables utils.Set[utils.TableName]) bool {
		for _, t := range tables {
			if !known.Contains(t) {
				return false
			}
		}
		return true
	}
}

// orderQueries lists queries by alias, placing q2 before q10.
func orderQueries(queries utils.Set[utils.Query]) []utils.Query {
	list := queries.ToList()
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].Alias, list[j].Alias
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
	return list
}
