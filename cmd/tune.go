package cmd

import (
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/qw4990/online_index_advisor/advisor"
	"github.com/qw4990/online_index_advisor/candidate"
	"github.com/qw4990/online_index_advisor/config"
	"github.com/qw4990/online_index_advisor/optimizer"
	"github.com/qw4990/online_index_advisor/profiler"
	"github.com/qw4990/online_index_advisor/utils"
)

type tuneCmdOpt struct {
	dsn         string
	configPath  string
	output      string
	logLevel    string
	metricsAddr string

	maxHotSetSize int
	maxNumStates  int
	parallelism   int
	compress      bool
	follow        bool

	schemaPath string
	statsPath  string

	querySchemas            []string
	queryExecTimeThreshold  int
	queryExecCountThreshold int
	queryPath               string
}

func NewTuneCmd() *cobra.Command {
	var opt tuneCmdOpt
	cmd := &cobra.Command{
		Use:   "tune",
		Short: "tune indexes online for a stream of queries",
		Long: `tune indexes online for a stream of queries.
How it work:
1. connect to your TiDB cluster through the DSN
2. read queries from the 'STATEMENT_SUMMARY' system table or from the query path
3. analyze the queries one by one and generate candidate indexes for each of them
4. evaluate candidate indexes through a feature named 'hypothetical index' (or 'what-if index')
5. after every query, update the recommendation with the work function algorithm
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadTuneConfig(cmd, opt)
			if err != nil {
				return err
			}
			utils.SetLogLevel(cfg.LogLevel)
			report, err := tuneOnline(cfg, opt)
			if err != nil || report == nil {
				return err
			}
			return outputTuneResult(report, opt.output)
		},
	}

	cmd.Flags().StringVar(&opt.dsn, "dsn", "root:@tcp(127.0.0.1:4000)/test", "dsn")
	cmd.Flags().StringVar(&opt.configPath, "config", "", "path of the YAML config file, defaults are used if empty")
	cmd.Flags().StringVar(&opt.output, "output", "", "output directory to save the result")
	cmd.Flags().StringVar(&opt.logLevel, "log-level", "info", "log level, one of 'debug', 'info', 'warning', 'error'")
	cmd.Flags().StringVar(&opt.metricsAddr, "metrics-addr", "", "address serving /metrics and /vote while tuning, e.g. ':9090'")

	cmd.Flags().IntVar(&opt.maxHotSetSize, "max-hot-set-size", 40, "max number of indexes monitored at the same time")
	cmd.Flags().IntVar(&opt.maxNumStates, "max-num-states", 2000, "max number of work function states over all partitions")
	cmd.Flags().IntVar(&opt.parallelism, "parallelism", 4, "number of what-if sessions used to build benefit graphs")
	cmd.Flags().BoolVar(&opt.compress, "compress", false, "merge queries with the same digest before tuning")
	cmd.Flags().BoolVar(&opt.follow, "follow", true, "treat the recommendation as materialized after every query")

	cmd.Flags().StringVar(&opt.schemaPath, "schema-path", "", "a file of 'create table' statements to load before tuning")
	cmd.Flags().StringVar(&opt.statsPath, "stats-path", "", "a directory of table statistics to load before tuning")

	cmd.Flags().StringSliceVar(&opt.querySchemas, "query-schemas", []string{}, "a list of schema(database), e.g. 'test1, test2', queries that are running under these schemas will be considered")
	cmd.Flags().IntVar(&opt.queryExecTimeThreshold, "query-exec-time-threshold", 0, "the threshold of query execution time(in milliseconds), e.g. '300', queries that are running longer than this threshold will be considered")
	cmd.Flags().IntVar(&opt.queryExecCountThreshold, "query-exec-count-threshold", 0, "the threshold of query execution count, e.g. '20', queries that are executed more than this threshold will be considered")
	cmd.Flags().StringVar(&opt.queryPath, "query-path", "", "the path that contains queries, e.g. 'queries.sql', if this variable is specified, the above variables like 'query-*' will be ignored")
	return cmd
}

// loadTuneConfig reads the config file and applies the flags set explicitly.
func loadTuneConfig(cmd *cobra.Command, opt tuneCmdOpt) (config.Config, error) {
	cfg, err := config.Load(opt.configPath)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") || opt.configPath == "" {
		if !utils.ValidLogLevel(opt.logLevel) {
			return config.Config{}, fmt.Errorf("invalid log level %v", opt.logLevel)
		}
		cfg.LogLevel = opt.logLevel
	}
	if flags.Changed("max-hot-set-size") {
		cfg.Tuning.MaxHotSetSize = opt.maxHotSetSize
	}
	if flags.Changed("max-num-states") {
		cfg.Tuning.MaxNumStates = opt.maxNumStates
	}
	if flags.Changed("parallelism") {
		cfg.Profiler.Parallelism = opt.parallelism
	}
	return cfg, cfg.Validate()
}

func tuneOnline(cfg config.Config, opt tuneCmdOpt) (*tuneReport, error) {
	db, err := optimizer.NewTiDBWhatIfOptimizer(opt.dsn)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if reason := checkOnlineModeSupport(db); reason != "" {
		return nil, errors.New("online tuning is not supported: " + reason)
	}
	if _, err := loadSchemaIntoCluster(db, opt.schemaPath); err != nil {
		return nil, err
	}
	if err := loadStatsIntoCluster(db, opt.statsPath); err != nil {
		return nil, err
	}

	info, err := prepareWorkload(db, opt)
	if err != nil {
		return nil, err
	}
	if info.Queries.Size() == 0 {
		utils.Infof("no query is found")
		return nil, nil
	}
	queries := orderQueries(info.Queries)
	if opt.compress {
		queries = profiler.CompressByDigest(queries)
		utils.Infof("compress %v queries into %v", info.Queries.Size(), len(queries))
	}

	oracle, err := optimizer.NewCostOracle(db, cfg.Profiler.Parallelism)
	if err != nil {
		return nil, err
	}
	defer oracle.Close()

	pool := candidate.NewPool()
	sel, err := advisor.NewSelector(cfg.Tuning)
	if err != nil {
		return nil, err
	}
	if opt.metricsAddr != "" {
		stop := serveHTTP(opt.metricsAddr, newAdvisorMux(pool, sel))
		defer stop()
	}

	t := &tuner{
		pool:     pool,
		profiler: profiler.New(info.TableSchemas, pool, oracle, cfg.Profiler),
		selector: sel,
		follow:   opt.follow,
	}
	report, err := t.run(queries)
	if err != nil {
		return nil, err
	}
	utils.Infof("what-if optimizer stats: %v", oracle.Stats().Format())
	return report, nil
}

func prepareWorkload(db optimizer.WhatIfOptimizer, opt tuneCmdOpt) (*utils.WorkloadInfo, error) {
	var err error
	var queries utils.Set[utils.Query]
	if opt.queryPath == "" {
		queries, err = readQueriesFromStatementSummary(db, opt.querySchemas, opt.queryExecTimeThreshold, opt.queryExecCountThreshold)
		if err != nil {
			return nil, err
		}
	} else {
		var dbName string
		if dbName, err = dbNameFromDSN(opt.dsn); err != nil {
			return nil, err
		}
		queries, err = utils.LoadQueries(dbName, opt.queryPath)
		if err != nil {
			return nil, err
		}
	}
	if queries, err = filterQueries(queries, readsUserTables); err != nil {
		return nil, err
	}
	tableNames, err := utils.CollectTableNamesFromQueries(queries)
	if err != nil {
		return nil, err
	}
	tables, err := getTableSchemas(db, tableNames)
	if err != nil {
		return nil, err
	}
	if queries, err = filterQueries(queries, readsKnownTables(tables)); err != nil {
		return nil, err
	}
	return &utils.WorkloadInfo{
		Queries:      queries,
		TableSchemas: tables,
	}, nil
}

func dbNameFromDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	if cfg.DBName == "" {
		return "", errors.New("database name is not specified in DSN")
	}
	return cfg.DBName, nil
}

func outputTuneResult(report *tuneReport, savePath string) error {
	fmt.Println(report.Summary())
	if savePath == "" {
		return nil
	}
	if err := os.MkdirAll(savePath, 0777); err != nil {
		return err
	}
	if err := utils.SaveContentTo(path.Join(savePath, "summary.txt"), report.Summary()); err != nil {
		return err
	}
	return utils.SaveContentTo(path.Join(savePath, "ddl.sql"), report.DDL())
}
