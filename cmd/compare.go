package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bisibesi/tablesync/internal/logging"
	"github.com/bisibesi/tablesync/internal/metadata"
	"github.com/bisibesi/tablesync/internal/model"
	"github.com/bisibesi/tablesync/internal/reconcile"
	"github.com/bisibesi/tablesync/internal/syncengine"
)

var flagCompareCountsAndSchema bool

// compareCmd is the read-only counterpart to sync: it reports row counts
// and schema drift for the selected tables without touching the target, per
// spec.md §6 ("--compare-counts-and-schema ... performs no writes and does
// not enter the Constraint/Temporal Warden").
var compareCmd = &cobra.Command{
	Use:   "compare [source_host] [source_db] [target_host] [target_db] [table_selection]",
	Short: "Report row counts and schema drift between source and target, without writing",
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

		ctx := context.Background()
		srcProbe := metadata.NewProbe(srcDB, nil)
		tgtProbe := metadata.NewProbe(tgtDB, nil)

		srcTables, err := srcProbe.ListBaseTables(ctx)
		if err != nil {
			return fmt.Errorf("enumerate source tables: %w", err)
		}
		tgtTables, err := tgtProbe.ListBaseTables(ctx)
		if err != nil {
			return fmt.Errorf("enumerate target tables: %w", err)
		}
		selected := syncengine.ResolveSelection(tableSelection, syncengine.IntersectByName(srcTables, tgtTables))

		for _, table := range selected {
			if err := compareOne(ctx, srcProbe, tgtProbe, table); err != nil {
				fmt.Printf("%-32s ERROR %v\n", table.String(), err)
				logger.Warn("compare failed", zap.String("table", table.String()), zap.Error(err))
				continue
			}
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(compareCmd)
	compareCmd.Flags().BoolVar(&flagCompareCountsAndSchema, "compare-counts-and-schema", true, "report row counts and schema drift (always on; retained for CLI symmetry with sync)")
	compareCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "enable debug-level logging")
}

func compareOne(ctx context.Context, srcProbe, tgtProbe *metadata.Probe, table model.QualifiedName) error {
	sourceCols, err := srcProbe.Columns(ctx, table)
	if err != nil {
		return fmt.Errorf("source columns: %w", err)
	}
	targetCols, err := tgtProbe.Columns(ctx, table)
	if err != nil {
		return fmt.Errorf("target columns: %w", err)
	}
	pk, err := srcProbe.PrimaryKeyColumns(ctx, table)
	if err != nil {
		return fmt.Errorf("primary key: %w", err)
	}

	_, drift, reconcileErr := reconcile.Reconcile(sourceCols, targetCols, pk, model.NewColumnMapping(), model.NewColumnSet(), false)
	if excluded, exErr := mergedExcludedColumns(ctx, srcProbe, tgtProbe, table); exErr == nil {
		drift = reconcile.WithExcluded(drift, excluded)
	}

	sourceCount, err := srcProbe.RowCount(ctx, table)
	if err != nil {
		return fmt.Errorf("source row count: %w", err)
	}
	targetCount, err := tgtProbe.RowCount(ctx, table)
	if err != nil {
		return fmt.Errorf("target row count: %w", err)
	}

	status := "OK"
	if reconcileErr != nil {
		status = "PK-NOT-REPRESENTABLE"
	} else if len(drift.MissingColumnsInSource) > 0 || len(drift.MissingColumnsInTarget) > 0 {
		status = "DRIFT"
	}

	fmt.Printf("%-32s source=%-10d target=%-10d diff=%-10d status=%s\n",
		table.String(), sourceCount, targetCount, sourceCount-targetCount, status)
	if len(drift.MissingColumnsInTarget) > 0 {
		fmt.Printf("  missing in target: %v\n", drift.MissingColumnsInTarget)
	}
	if len(drift.MissingColumnsInSource) > 0 {
		fmt.Printf("  missing in source: %v\n", drift.MissingColumnsInSource)
	}
	if len(drift.ExcludedColumns) > 0 {
		fmt.Printf("  excluded (computed/generated-always): %v\n", drift.ExcludedColumns)
	}
	return nil
}

func mergedExcludedColumns(ctx context.Context, srcProbe, tgtProbe *metadata.Probe, table model.QualifiedName) ([]string, error) {
	srcExcluded, err := srcProbe.ExcludedColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	tgtExcluded, err := tgtProbe.ExcludedColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	var out []string
	seen := make(map[string]bool)
	for _, name := range append(srcExcluded, tgtExcluded...) {
		if !seen[strings.ToLower(name)] {
			seen[strings.ToLower(name)] = true
			out = append(out, name)
		}
	}
	return out, nil
}
