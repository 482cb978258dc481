package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bisibesi/tablesync/internal/connbuild"
	"github.com/bisibesi/tablesync/internal/logging"
	"github.com/bisibesi/tablesync/internal/metadata"
	"github.com/bisibesi/tablesync/internal/model"
	"github.com/bisibesi/tablesync/internal/syncengine"
)

var (
	flagBatchSize         int
	flagThreads           int
	flagSourceConn        string
	flagTargetConn        string
	flagAllowNoPK         bool
	flagDeepCompare       bool
	flagClearTarget       bool
	flagTargetColumnsOnly bool
	flagIgnoreColumns     []string
	flagMapColumns        []string
	flagStartRow          string
	flagOrderByPK         bool
	flagOutputDir         string
	flagVerbose           bool
)

// syncCmd implements spec.md §6's CLI surface, generalizing db-pump's
// "fill" command (analyze -> filter -> clean? -> pump -> verify -> report)
// from one database to a source/target pair driven by the Run Coordinator.
var syncCmd = &cobra.Command{
	Use:   "sync [source_host] [source_db] [target_host] [target_db] [table_selection]",
	Short: "Replicate selected tables from source to target",
	Args:  cobra.MaximumNArgs(5),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.New(flagVerbose)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer logger.Sync()

		srcDB, tgtDB, err := openSourceAndTarget(args)
		if err != nil {
			return err
		}
		defer srcDB.Close()
		defer tgtDB.Close()

		tableSelection := ""
		if len(args) >= 5 {
			tableSelection = args[4]
		}

		params, err := buildSyncParameters(
			viper.GetInt("settings.batch_size"), viper.GetInt("settings.threads"),
			flagAllowNoPK, flagDeepCompare, flagClearTarget, flagTargetColumnsOnly, flagOrderByPK,
			flagIgnoreColumns, flagMapColumns, tableSelection, resolveOutputDir())
		if err != nil {
			return err
		}

		ctx := context.Background()
		if err := attachStartRowOffsets(ctx, srcDB, tgtDB, tableSelection, flagStartRow, &params); err != nil {
			return err
		}

		uiprogress.Start()
		bar := uiprogress.AddBar(1).AppendCompleted().PrependElapsed()
		completed := 0
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return fmt.Sprintf("Syncing tables (%d done): ", completed)
		})

		runID := uuid.New().String()
		start := time.Now()

		result, err := syncengine.Run(ctx, syncengine.Config{
			SrcDB:  srcDB,
			TgtDB:  tgtDB,
			Params: params,
			RunID:  runID,
			Logger: logger,
			OnTableDone: func(table model.QualifiedName, r model.TableSyncResult) {
				completed++
				bar.Set(completed)
				bar.Total = completed + 1
				fmt.Printf("[%s] %-32s inserted=%-8d skipped=%-8d status=%s\n",
					runID[:8], table.String(), r.Inserted, r.Skipped, r.Status)
			},
		})
		uiprogress.Stop()
		if err != nil {
			return fmt.Errorf("run failed: %w", err)
		}

		snap := result.Snapshot()
		fmt.Println("\nRun Summary:")
		fmt.Printf("  RunId:   %s\n", snap.RunId)
		fmt.Printf("  Status:  %s\n", snap.Status)
		fmt.Printf("  Tables:  %d\n", len(snap.Tables))
		fmt.Printf("  Elapsed: %s\n", time.Since(start))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)

	syncCmd.Flags().IntVar(&flagBatchSize, "batch-size", 100000, "rows per batch for the incremental and bulk-refresh paths")
	syncCmd.Flags().IntVar(&flagThreads, "threads", 4, "worker count per execution level")
	syncCmd.Flags().StringVar(&flagSourceConn, "source-conn", "", "full source connection string; overrides host/db positional args")
	syncCmd.Flags().StringVar(&flagTargetConn, "target-conn", "", "full target connection string; overrides host/db positional args")
	syncCmd.Flags().BoolVar(&flagAllowNoPK, "allow-no-pk", false, "permit the incremental path on tables with no primary key (requires --deep-compare)")
	syncCmd.Flags().BoolVar(&flagDeepCompare, "deep-compare", false, "use the full projection as the anti-join key")
	syncCmd.Flags().BoolVar(&flagClearTarget, "clear-target", false, "select the bulk-refresh path; activates the constraint/temporal warden")
	syncCmd.Flags().BoolVar(&flagTargetColumnsOnly, "target-columns-only", false, "restrict the projection to columns that exist in the target")
	syncCmd.Flags().StringArrayVar(&flagIgnoreColumns, "ignore-column", nil, "drop a column from the projection (schema.table.col, table.col, or col)")
	syncCmd.Flags().StringArrayVar(&flagMapColumns, "map-column", nil, "add a column mapping (schema.table.src=tgt or table.src=tgt)")
	syncCmd.Flags().StringVar(&flagStartRow, "start-row", "", "comma list of non-negative offsets, one per selected table, applied positionally")
	syncCmd.Flags().BoolVar(&flagOrderByPK, "order-by-pk", false, "page the source ordered by primary key instead of the first projection column")
	syncCmd.Flags().StringVar(&flagOutputDir, "output-dir", "", "directory for run-result files")
	syncCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "enable debug-level logging")

	viper.BindPFlag("settings.batch_size", syncCmd.Flags().Lookup("batch-size"))
	viper.BindPFlag("settings.threads", syncCmd.Flags().Lookup("threads"))
	viper.BindPFlag("settings.output_dir", syncCmd.Flags().Lookup("output-dir"))
	viper.SetDefault("settings.batch_size", 100000)
	viper.SetDefault("settings.threads", 4)
	viper.SetDefault("settings.output_dir", "./sync-results")
}

func resolveOutputDir() string {
	if flagOutputDir != "" {
		return flagOutputDir
	}
	return viper.GetString("settings.output_dir")
}

// openSourceAndTarget builds the two connections per spec.md §5/§6: a
// read-only, unbounded-timeout source connection and a read-write,
// unbounded-timeout target connection. Positional host/db args are used
// when --source-conn/--target-conn are not given.
func openSourceAndTarget(args []string) (*sql.DB, *sql.DB, error) {
	dbCfg, _ := GetDatabasesConfig()

	sourceDSN := flagSourceConn
	targetDSN := flagTargetConn

	if sourceDSN == "" && dbCfg != nil && dbCfg.Source.DSN != "" {
		sourceDSN = dbCfg.Source.DSN
	}
	if targetDSN == "" && dbCfg != nil && dbCfg.Target.DSN != "" {
		targetDSN = dbCfg.Target.DSN
	}

	if sourceDSN == "" {
		opts := connbuild.Options{Host: positional(args, 0), Database: positional(args, 1), ReadOnly: true}
		if opts.Host == "" && dbCfg != nil {
			c := dbCfg.Source
			opts = connbuild.Options{Host: c.Host, Port: c.Port, Database: c.Database, User: c.User, Password: c.Password, ReadOnly: true}
		}
		sourceDSN = connbuild.Build(opts)
	} else {
		sourceDSN = connbuild.EnsureReadOnlyIntent(connbuild.EnsureUnboundedTimeout(sourceDSN))
	}

	if targetDSN == "" {
		opts := connbuild.Options{Host: positional(args, 2), Database: positional(args, 3)}
		if opts.Host == "" && dbCfg != nil {
			c := dbCfg.Target
			opts = connbuild.Options{Host: c.Host, Port: c.Port, Database: c.Database, User: c.User, Password: c.Password}
		}
		targetDSN = connbuild.Build(opts)
	} else {
		targetDSN = connbuild.EnsureUnboundedTimeout(targetDSN)
	}

	srcDB, err := sql.Open("sqlserver", sourceDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open source: %w", err)
	}
	if err := srcDB.Ping(); err != nil {
		return nil, nil, fmt.Errorf("ping source: %w", err)
	}

	tgtDB, err := sql.Open("sqlserver", targetDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open target: %w", err)
	}
	if err := tgtDB.Ping(); err != nil {
		return nil, nil, fmt.Errorf("ping target: %w", err)
	}

	return srcDB, tgtDB, nil
}

func positional(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

// attachStartRowOffsets resolves the same table selection the Run
// Coordinator will compute, then zips --start-row's values onto it
// positionally, per spec.md §6 ("one per selected table, applied
// positionally").
func attachStartRowOffsets(ctx context.Context, srcDB, tgtDB *sql.DB, tableSelection, startRow string, params *model.SyncParameters) error {
	offsets, err := parseStartRows(startRow)
	if err != nil {
		return err
	}
	if len(offsets) == 0 {
		return nil
	}

	srcProbe := metadata.NewProbe(srcDB, nil)
	tgtProbe := metadata.NewProbe(tgtDB, nil)

	srcTables, err := srcProbe.ListBaseTables(ctx)
	if err != nil {
		return fmt.Errorf("enumerate source tables for --start-row: %w", err)
	}
	tgtTables, err := tgtProbe.ListBaseTables(ctx)
	if err != nil {
		return fmt.Errorf("enumerate target tables for --start-row: %w", err)
	}
	selected := syncengine.ResolveSelection(tableSelection, syncengine.IntersectByName(srcTables, tgtTables))

	params.StartRowOffsets = make(map[string]int64, len(offsets))
	for i, offset := range offsets {
		if i >= len(selected) {
			break
		}
		params.StartRowOffsets[selected[i].Key()] = offset
	}
	return nil
}
