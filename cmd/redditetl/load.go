package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	recreateSchema bool
	sourceURI      string
	checkOnly      bool
)

var loadCmd = &cobra.Command{
	Use:   "load [YYYYMMDD]",
	Short: "Merge the staged CSV into the warehouse table",
	Long: `Copy the staged CSV into a temporary staging table, delete rows of the
permanent table whose id is staged, insert the staged rows and drop the
staging table, all in one transaction. On failure the transaction is
rolled back and recent load errors are logged.

Loading the same file twice leaves the table unchanged.`,
	Example: `  # Load today's staged file
  redditetl load

  # Check that the cluster can read a day's file without loading it
  redditetl load 20240301 --check

  # Drop and recreate the table before loading
  redditetl load 20240301 --recreate-schema`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

func addLoadFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&recreateSchema, "recreate-schema", false, "drop and recreate the permanent table, discarding its rows")
}

func init() {
	rootCmd.AddCommand(loadCmd)
	addLoadFlags(loadCmd)
	loadCmd.Flags().StringVar(&sourceURI, "source", "", "load from this URI or path instead of the date's staged file")
	loadCmd.Flags().BoolVar(&checkOnly, "check", false, "only verify the source is readable and parseable")
}

func loadFlags(cmd *cobra.Command) map[string]interface{} {
	flags := map[string]interface{}{}
	if cmd.Flags().Changed("recreate-schema") {
		flags["recreate-schema"] = recreateSchema
	}
	return flags
}

func runLoad(cmd *cobra.Command, args []string) error {
	date, err := runDate(args)
	if err != nil {
		return err
	}

	cfg, log, err := setup(loadFlags(cmd))
	if err != nil {
		return err
	}

	source := sourceURI
	if source == "" {
		if source, err = defaultSource(cfg, date); err != nil {
			return err
		}
	}

	loader, db, err := newLoader(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if checkOnly {
		if err := loader.Check(cmd.Context(), source); err != nil {
			return err
		}
		out.Success("Source can be loaded: " + source)
		return nil
	}

	if cfg.Warehouse.RecreateSchema {
		out.Warning("Recreating table " + cfg.Warehouse.Table + ", existing rows will be dropped")
	}

	res, err := loader.Load(cmd.Context(), source)
	if err != nil {
		return err
	}

	out.Stage("load", fmt.Sprintf("merged %s into %s", source, res.Table))
	out.Table([][2]string{
		{"Staged rows", strconv.FormatInt(res.StagingRows, 10)},
		{"Table rows", strconv.FormatInt(res.TableRows, 10)},
		{"Duration", res.Duration.String()},
	})
	return nil
}
