package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"redditetl/pkg/extractor"
)

var (
	subreddit  string
	timeFilter string
	limit      int
	outputDir  string
	account    string
)

var extractCmd = &cobra.Command{
	Use:   "extract [YYYYMMDD]",
	Short: "Fetch top posts and write the dated CSV",
	Long: `Fetch the top posts of the configured subreddit for the configured time
window and write them to <output>/<YYYYMMDD>.csv, with a summary sidecar.

The file is only written once every post has been fetched and normalised.`,
	Example: `  # Extract today's posts with the configured settings
  redditetl extract

  # Extract 50 posts of r/investing for a given date
  redditetl extract 20240301 --subreddit investing --limit 50`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func addExtractFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&subreddit, "subreddit", "", "subreddit to extract (default from config)")
	cmd.Flags().StringVar(&timeFilter, "time-filter", "", "time window: hour, day, week, month, year, all")
	cmd.Flags().IntVar(&limit, "limit", -1, "maximum number of posts, 0 for no limit (default from config)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "local output directory")
	cmd.Flags().StringVarP(&account, "account", "a", "", "stored Reddit credentials to use")
}

func extractFlags() map[string]interface{} {
	return map[string]interface{}{
		"subreddit":   subreddit,
		"time-filter": timeFilter,
		"limit":       limit,
		"output":      outputDir,
		"account":     account,
	}
}

func init() {
	rootCmd.AddCommand(extractCmd)
	addExtractFlags(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	date, err := runDate(args)
	if err != nil {
		return err
	}

	cfg, log, err := setup(extractFlags())
	if err != nil {
		return err
	}

	ext, _, err := newExtractor(cfg, log)
	if err != nil {
		return err
	}

	out.Info("Subreddit", "r/"+cfg.Extract.Subreddit)
	out.Info("Run date", date)

	res, err := ext.Run(cmd.Context(), extractor.Params{
		Subreddit:  cfg.Extract.Subreddit,
		TimeFilter: cfg.Extract.TimeFilter,
		Limit:      cfg.Extract.Limit,
		Date:       date,
	})
	if err != nil {
		return err
	}

	out.Stage("extract", fmt.Sprintf("%d posts written to %s", len(res.Posts), res.Path))
	s := res.Summary
	out.Table([][2]string{
		{"Rows", strconv.Itoa(s.Rows)},
		{"Fetched", strconv.Itoa(s.Fetched)},
		{"Duplicates skipped", strconv.Itoa(s.Duplicates)},
		{"Avg score", fmt.Sprintf("%.1f", s.AvgScore)},
		{"Max score", strconv.Itoa(s.MaxScore)},
		{"Avg comments", fmt.Sprintf("%.1f", s.AvgComments)},
		{"NSFW", strconv.Itoa(s.NSFW)},
		{"Deleted authors", strconv.Itoa(s.DeletedAuthors)},
	})
	return nil
}
