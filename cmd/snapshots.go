package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rakaly/cli/internal/watch"
)

var (
	snapshotsOutDir  string
	snapshotsCatalog string
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots <input>",
	Short: "List the snapshots taken of a save",
	Long:  "Lists the snapshots in the watch output directory, oldest first. When a catalog is configured it is reconciled with the directory first.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source, err := snapshotSource(args[0])
		if err != nil {
			return err
		}
		outDir := snapshotsOutDir
		if outDir == "" {
			outDir = watch.DefaultOutDir(source)
		}
		stem, ext := watch.SplitName(source)
		snaps, err := watch.List(outDir, stem, ext)
		if err != nil {
			return err
		}

		store, err := openCatalog(ctx, snapshotsCatalog)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close() //nolint:errcheck
			res, err := store.Reconcile(ctx, source, snaps)
			if err != nil {
				return err
			}
			zap.L().Info("catalog reconciled",
				zap.String("source", source),
				zap.Int("added", res.Added),
				zap.Int("removed", res.Removed),
			)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tPATH")
		for _, s := range snaps {
			fmt.Fprintf(tw, "%s\t%s\n", s.Date.ISO(), s.Path)
		}
		return tw.Flush()
	},
}

func init() {
	snapshotsCmd.Flags().StringVarP(&snapshotsOutDir, "out-dir", "o", "", "snapshot directory (default <parent>/<stem>)")
	snapshotsCmd.Flags().StringVar(&snapshotsCatalog, "catalog", "", "catalog database: a SQLite path or postgres:// URL (default from config)")
	rootCmd.AddCommand(snapshotsCmd)
}
