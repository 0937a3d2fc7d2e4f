package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/qw4990/online_index_advisor/optimizer"
	"github.com/qw4990/online_index_advisor/utils"
)

func NewPreCheckCmd() *cobra.Command {
	var dsn string
	cmd := &cobra.Command{
		Use:   "precheck",
		Short: "check whether this cluster is suitable for online tuning",
		Long:  `check whether this cluster supports hypothetical indexes and exposes full SQL texts, which online tuning requires`,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := optimizer.NewTiDBWhatIfOptimizer(dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if reason := checkOnlineModeSupport(db); reason != "" {
				return errors.New(reason)
			}
			utils.Infof("the cluster is ready for online tuning")
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "root:@tcp(127.0.0.1:4000)/test", "the DSN of the TiDB cluster")
	return cmd
}
