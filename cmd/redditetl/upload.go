package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"redditetl/pkg/storage"
)

var uploadCmd = &cobra.Command{
	Use:   "upload [YYYYMMDD]",
	Short: "Upload the dated CSV to the S3 bucket",
	Long: `Upload <output>/<YYYYMMDD>.csv to s3://<bucket>/<YYYYMMDD>.csv, creating
the bucket first if it does not exist. Re-uploading a date overwrites the
object.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVarP(&outputDir, "output", "o", "", "local output directory")
}

func runUpload(cmd *cobra.Command, args []string) error {
	date, err := runDate(args)
	if err != nil {
		return err
	}

	cfg, log, err := setup(map[string]interface{}{"output": outputDir})
	if err != nil {
		return err
	}

	store, err := storage.NewManager(cfg.Output.Directory)
	if err != nil {
		return err
	}

	stg, err := newStager(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}

	uri, err := stg.Stage(cmd.Context(), store.Path(date), date)
	if err != nil {
		return err
	}

	out.Stage("upload", fmt.Sprintf("staged %s", uri))
	return nil
}
