package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfigNotFound is returned when no configuration file can be located
var ErrConfigNotFound = errors.New("configuration file not found")

// Config holds all configuration options for the pipeline
type Config struct {
	// Reddit API credentials and endpoints
	Reddit RedditConfig `yaml:"reddit" json:"reddit"`

	// What to extract
	Extract ExtractConfig `yaml:"extract" json:"extract"`

	// Connection retry policy
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// API request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Local CSV output
	Output OutputConfig `yaml:"output" json:"output"`

	// Object storage
	AWS AWSConfig `yaml:"aws" json:"aws"`

	// Warehouse connection and merge behaviour
	Warehouse WarehouseConfig `yaml:"warehouse" json:"warehouse"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// RedditConfig holds Reddit API client configuration
type RedditConfig struct {
	ClientID     string `yaml:"client_id" json:"client_id"`
	ClientSecret string `yaml:"client_secret" json:"client_secret"`
	UserAgent    string `yaml:"user_agent" json:"user_agent"`
	BaseURL      string `yaml:"base_url" json:"base_url"`
	TokenURL     string `yaml:"token_url" json:"token_url"`
	// Account names a stored credential set to use when ClientID is empty
	Account string        `yaml:"account" json:"account"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// ExtractConfig holds extraction parameters
type ExtractConfig struct {
	Subreddit  string `yaml:"subreddit" json:"subreddit"`
	TimeFilter string `yaml:"time_filter" json:"time_filter"`
	// Limit caps the number of posts; 0 means unbounded
	Limit         int           `yaml:"limit" json:"limit"`
	ThrottleEvery int           `yaml:"throttle_every" json:"throttle_every"`
	ThrottlePause time.Duration `yaml:"throttle_pause" json:"throttle_pause"`
}

// RetryConfig holds the API connection retry policy
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Delay       time.Duration `yaml:"delay" json:"delay"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OutputConfig holds local output configuration
type OutputConfig struct {
	Directory     string `yaml:"directory" json:"directory"`
	WriteSummary  bool   `yaml:"write_summary" json:"write_summary"`
	CheckpointDir string `yaml:"checkpoint_dir" json:"checkpoint_dir"`
}

// AWSConfig holds object storage configuration
type AWSConfig struct {
	BucketName      string `yaml:"bucket_name" json:"bucket_name"`
	Region          string `yaml:"region" json:"region"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	// Endpoint overrides the S3 endpoint for S3-compatible stores
	Endpoint     string `yaml:"endpoint" json:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style" json:"use_path_style"`
}

// WarehouseConfig holds warehouse connection and load configuration
type WarehouseConfig struct {
	// Driver is either "redshift" or "sqlite"
	Driver    string `yaml:"driver" json:"driver"`
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	Database  string `yaml:"database" json:"database"`
	User      string `yaml:"user" json:"user"`
	Password  string `yaml:"password" json:"password"`
	SSLMode   string `yaml:"sslmode" json:"sslmode"`
	RoleName  string `yaml:"role_name" json:"role_name"`
	AccountID string `yaml:"account_id" json:"account_id"`
	// Path is the database file for the sqlite driver
	Path  string `yaml:"path" json:"path"`
	Table string `yaml:"table" json:"table"`
	// RecreateSchema drops and recreates the permanent table before loading
	RecreateSchema bool          `yaml:"recreate_schema" json:"recreate_schema"`
	MaxErrors      int           `yaml:"max_errors" json:"max_errors"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

var (
	validTimeFilters = map[string]bool{
		"hour": true, "day": true, "week": true, "month": true, "year": true, "all": true,
	}
	validLogLevels = map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Reddit: RedditConfig{
			UserAgent: "redditetl/1.0",
			BaseURL:   "https://oauth.reddit.com",
			TokenURL:  "https://www.reddit.com/api/v1/access_token",
			Timeout:   30 * time.Second,
		},
		Extract: ExtractConfig{
			Subreddit:     "stocks",
			TimeFilter:    "week",
			Limit:         1000,
			ThrottleEvery: 100,
			ThrottlePause: time.Second,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Delay:       5 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
		},
		Output: OutputConfig{
			Directory:    "./tmp",
			WriteSummary: true,
		},
		AWS: AWSConfig{
			Region: "us-east-1",
		},
		Warehouse: WarehouseConfig{
			Driver:         "redshift",
			Port:           5439,
			SSLMode:        "require",
			Table:          "reddit",
			RecreateSchema: false,
			MaxErrors:      100,
			ConnectTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"REDDITETL_CLIENT_ID":             &c.Reddit.ClientID,
		"REDDITETL_CLIENT_SECRET":         &c.Reddit.ClientSecret,
		"REDDITETL_USER_AGENT":            &c.Reddit.UserAgent,
		"REDDITETL_ACCOUNT":               &c.Reddit.Account,
		"REDDITETL_SUBREDDIT":             &c.Extract.Subreddit,
		"REDDITETL_TIME_FILTER":           &c.Extract.TimeFilter,
		"REDDITETL_OUTPUT_DIR":            &c.Output.Directory,
		"REDDITETL_BUCKET_NAME":           &c.AWS.BucketName,
		"REDDITETL_AWS_REGION":            &c.AWS.Region,
		"REDDITETL_AWS_ACCESS_KEY_ID":     &c.AWS.AccessKeyID,
		"REDDITETL_AWS_SECRET_ACCESS_KEY": &c.AWS.SecretAccessKey,
		"REDDITETL_S3_ENDPOINT":           &c.AWS.Endpoint,
		"REDDITETL_WAREHOUSE_DRIVER":      &c.Warehouse.Driver,
		"REDDITETL_REDSHIFT_HOST":         &c.Warehouse.Host,
		"REDDITETL_REDSHIFT_DATABASE":     &c.Warehouse.Database,
		"REDDITETL_REDSHIFT_USER":         &c.Warehouse.User,
		"REDDITETL_REDSHIFT_PASSWORD":     &c.Warehouse.Password,
		"REDDITETL_REDSHIFT_ROLE":         &c.Warehouse.RoleName,
		"REDDITETL_ACCOUNT_ID":            &c.Warehouse.AccountID,
		"REDDITETL_LOG_LEVEL":             &c.Logging.Level,
	}
	for key, target := range strs {
		if val := os.Getenv(key); val != "" {
			*target = val
		}
	}

	ints := map[string]*int{
		"REDDITETL_LIMIT":               &c.Extract.Limit,
		"REDDITETL_REQUESTS_PER_MINUTE": &c.RateLimit.RequestsPerMinute,
		"REDDITETL_REDSHIFT_PORT":       &c.Warehouse.Port,
	}
	for key, target := range ints {
		val := os.Getenv(key)
		if val == "" {
			continue
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		*target = n
	}

	if recreate := os.Getenv("REDDITETL_RECREATE_SCHEMA"); recreate != "" {
		c.Warehouse.RecreateSchema = strings.ToLower(recreate) == "true"
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return ErrConfigNotFound
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		"redditetl.yaml",
		"redditetl.yml",
		"configuration.yaml",
		filepath.Join(home, ".config", "redditetl", "config.yaml"),
		filepath.Join(home, ".config", "redditetl", "config.yml"),
		filepath.Join(home, ".redditetl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if !validTimeFilters[c.Extract.TimeFilter] {
		errs = append(errs, fmt.Errorf("invalid time filter %q (want hour, day, week, month, year or all)", c.Extract.TimeFilter))
	}
	if c.Extract.Limit < 0 {
		errs = append(errs, errors.New("limit cannot be negative"))
	}
	if c.Extract.ThrottleEvery < 0 {
		errs = append(errs, errors.New("throttle_every cannot be negative"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("retry max_attempts must be at least 1"))
	}
	if c.Retry.Delay < 0 {
		errs = append(errs, errors.New("retry delay cannot be negative"))
	}

	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	switch c.Warehouse.Driver {
	case "redshift", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("invalid warehouse driver %q", c.Warehouse.Driver))
	}
	if !identifierPattern.MatchString(c.Warehouse.Table) {
		errs = append(errs, fmt.Errorf("invalid warehouse table name %q", c.Warehouse.Table))
	}
	if c.Warehouse.MaxErrors < 0 {
		errs = append(errs, errors.New("max_errors cannot be negative"))
	}

	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// RequireReddit checks the Reddit credentials needed by the extract stage
func (c *Config) RequireReddit() error {
	var errs []error
	if c.Reddit.ClientID == "" {
		errs = append(errs, errors.New("reddit client_id is required"))
	}
	if c.Reddit.ClientSecret == "" {
		errs = append(errs, errors.New("reddit client_secret is required"))
	}
	return errors.Join(errs...)
}

// RequireStorage checks the settings needed by the upload stage
func (c *Config) RequireStorage() error {
	var errs []error
	if c.AWS.BucketName == "" {
		errs = append(errs, errors.New("aws bucket_name is required"))
	}
	if c.AWS.Region == "" {
		errs = append(errs, errors.New("aws region is required"))
	}
	return errors.Join(errs...)
}

// RequireWarehouse checks the settings needed by the load stage
func (c *Config) RequireWarehouse() error {
	var errs []error
	switch c.Warehouse.Driver {
	case "redshift":
		if c.Warehouse.Host == "" {
			errs = append(errs, errors.New("warehouse host is required"))
		}
		if c.Warehouse.Database == "" {
			errs = append(errs, errors.New("warehouse database is required"))
		}
		if c.Warehouse.User == "" {
			errs = append(errs, errors.New("warehouse user is required"))
		}
		if c.Warehouse.RoleName == "" || c.Warehouse.AccountID == "" {
			errs = append(errs, errors.New("warehouse role_name and account_id are required for COPY"))
		}
		if c.AWS.BucketName == "" {
			errs = append(errs, errors.New("aws bucket_name is required"))
		}
	case "sqlite":
		if c.Warehouse.Path == "" {
			errs = append(errs, errors.New("warehouse path is required for the sqlite driver"))
		}
	}
	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if subreddit, ok := flags["subreddit"].(string); ok && subreddit != "" {
		c.Extract.Subreddit = subreddit
	}
	if timeFilter, ok := flags["time-filter"].(string); ok && timeFilter != "" {
		c.Extract.TimeFilter = timeFilter
	}
	if limit, ok := flags["limit"].(int); ok && limit >= 0 {
		c.Extract.Limit = limit
	}
	if outputDir, ok := flags["output"].(string); ok && outputDir != "" {
		c.Output.Directory = outputDir
	}
	if account, ok := flags["account"].(string); ok && account != "" {
		c.Reddit.Account = account
	}
	if recreate, ok := flags["recreate-schema"].(bool); ok {
		c.Warehouse.RecreateSchema = recreate
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: command line flags > environment variables > .env file > config file > defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".redditetl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
