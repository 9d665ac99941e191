package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"redditetl/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage redditetl configuration files.

Configuration is loaded from, in order of priority:
  - Command line flags
  - Environment variables (REDDITETL_*, also read from .env)
  - Configuration file
  - Default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as 'redditetl.yaml' in the current directory unless
a different path is given with --config.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. Secrets are masked.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration and report which stages it is complete for.`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# redditetl configuration
#
# Every value can also be set with an environment variable prefixed with
# REDDITETL_, e.g. REDDITETL_CLIENT_SECRET or REDDITETL_REDSHIFT_PASSWORD.

reddit:
  # OAuth client of a Reddit "script" app. Leave empty to use credentials
  # stored with 'redditetl auth login'.
  client_id: ""
  client_secret: ""
  user_agent: "redditetl/1.0"
  # Name of the stored credentials to use when client_id is empty
  account: ""
  timeout: 30s

extract:
  subreddit: "stocks"
  # hour, day, week, month, year or all
  time_filter: "week"
  # 0 fetches every post the listing returns
  limit: 1000
  # Pause after every throttle_every posts
  throttle_every: 100
  throttle_pause: 1s

retry:
  # Attempts to connect to the API before giving up
  max_attempts: 3
  delay: 5s

rate_limit:
  requests_per_minute: 60

output:
  directory: "./tmp"
  # Write <date>.summary.json next to each dataset
  write_summary: true
  # Empty uses the platform data directory
  checkpoint_dir: ""

aws:
  bucket_name: ""
  region: "us-east-1"
  # Empty uses the default credential chain
  access_key_id: ""
  secret_access_key: ""
  # For S3-compatible stores such as MinIO
  endpoint: ""
  use_path_style: false

warehouse:
  # redshift, or sqlite for local runs
  driver: "redshift"
  host: ""
  port: 5439
  database: "dev"
  user: ""
  password: ""
  sslmode: "require"
  # IAM role the cluster assumes to read the bucket
  role_name: ""
  account_id: ""
  # Database file for the sqlite driver
  path: "./tmp/reddit.db"
  table: "reddit"
  # Drop and recreate the table on every load, discarding loaded rows
  recreate_schema: false
  # Rows the COPY may reject before the load fails
  max_errors: 100
  connect_timeout: 30s

logging:
  # debug, info, warn or error
  level: "info"
  # text or json
  format: "text"
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "redditetl.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	out.Success("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Fill in the Reddit, AWS and warehouse settings")
	fmt.Println("2. Run 'redditetl config validate' to check them")
	fmt.Println("3. Run 'redditetl run' for today's load")
	return nil
}

// masked returns a copy of cfg with secrets hidden
func masked(cfg *config.Config) config.Config {
	c := *cfg
	for _, s := range []*string{
		&c.Reddit.ClientSecret,
		&c.AWS.SecretAccessKey,
		&c.Warehouse.Password,
	} {
		if *s != "" {
			*s = "********"
		}
	}
	return c
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(nil)
	if err != nil {
		return err
	}

	display := masked(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out.Highlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup(nil)
	if err != nil {
		return err
	}

	checks := []struct {
		stage string
		err   error
	}{
		{"extract", cfg.RequireReddit()},
		{"upload", cfg.RequireStorage()},
		{"load", cfg.RequireWarehouse()},
	}

	ready := true
	for _, c := range checks {
		if c.err != nil {
			ready = false
			out.Warning(c.stage+" is not configured", c.err)
			continue
		}
		out.Stage(c.stage, "ok")
	}

	if cfg.Warehouse.RecreateSchema {
		out.Warning("recreate_schema is on: every load drops the table")
	}

	if !ready {
		out.Warning("Configuration is valid but incomplete")
		return nil
	}
	out.Success("Configuration is valid")
	return nil
}
