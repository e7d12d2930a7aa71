package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config captures all runtime options for the fuzz runner.
type Config struct {
	Driver string `yaml:"driver" toml:"driver"`
	// DSN is a file path template; %d is replaced by the worker number.
	DSN                string        `yaml:"dsn" toml:"dsn"`
	Database           string        `yaml:"database" toml:"database"`
	Seed               int64         `yaml:"seed" toml:"seed"`
	Iterations         int           `yaml:"iterations" toml:"iterations"`
	Workers            int           `yaml:"workers" toml:"workers"`
	QueriesPerDatabase int           `yaml:"queries_per_database" toml:"queries_per_database"`
	MaxTables          int           `yaml:"max_tables" toml:"max_tables"`
	MaxIndexes         int           `yaml:"max_indexes" toml:"max_indexes"`
	MaxInserts         int           `yaml:"max_inserts" toml:"max_inserts"`
	StatementTimeoutMs int           `yaml:"statement_timeout_ms" toml:"statement_timeout_ms"`
	Generator          Generator     `yaml:"generator" toml:"generator"`
	Oracles            OracleConfig  `yaml:"oracles" toml:"oracles"`
	Adaptive           Adaptive      `yaml:"adaptive" toml:"adaptive"`
	Logging            Logging       `yaml:"logging" toml:"logging"`
	Storage            StorageConfig `yaml:"storage" toml:"storage"`
}

// Generator toggles SQL capabilities in generation.
type Generator struct {
	MaxDepth       int  `yaml:"max_depth" toml:"max_depth"`
	Joins          bool `yaml:"joins" toml:"joins"`
	Functions      bool `yaml:"functions" toml:"functions"`
	In             bool `yaml:"in" toml:"in"`
	Match          bool `yaml:"match" toml:"match"`
	NullsFirstLast bool `yaml:"nulls_first_last" toml:"nulls_first_last"`
	Soundex        bool `yaml:"soundex" toml:"soundex"`
	Subqueries     bool `yaml:"subqueries" toml:"subqueries"`
	WithoutRowid   bool `yaml:"without_rowid" toml:"without_rowid"`
	// FloatingPoint lets the evaluator model real arithmetic and
	// concatenation.
	FloatingPoint bool `yaml:"floating_point" toml:"floating_point"`
}

// OracleConfig holds oracle selection and oracle-specific settings.
type OracleConfig struct {
	// Only runs a single oracle by name when set.
	Only     string         `yaml:"only" toml:"only"`
	Weights  OracleWeights  `yaml:"weights" toml:"weights"`
	CODDTest CODDTestConfig `yaml:"coddtest" toml:"coddtest"`
	// MaxRows abandons comparisons of larger result sets.
	MaxRows int `yaml:"max_rows" toml:"max_rows"`
}

// OracleWeights sets probabilities for oracle selection. Zero disables an
// oracle.
type OracleWeights struct {
	PQS               int `yaml:"pqs" toml:"pqs"`
	NoREC             int `yaml:"norec" toml:"norec"`
	Where             int `yaml:"where" toml:"where"`
	Distinct          int `yaml:"distinct" toml:"distinct"`
	GroupBy           int `yaml:"group_by" toml:"group_by"`
	Having            int `yaml:"having" toml:"having"`
	Aggregate         int `yaml:"aggregate" toml:"aggregate"`
	QueryPartitioning int `yaml:"query_partitioning" toml:"query_partitioning"`
	CODDTest          int `yaml:"coddtest" toml:"coddtest"`
	Fuzzer            int `yaml:"fuzzer" toml:"fuzzer"`
}

// CODDTestConfig enables optional folding variants. InTempTable allows
// folds that materialize an auxiliary result into a table; CTE allows
// replacing a common table expression by a VALUES list.
type CODDTestConfig struct {
	InTempTable bool `yaml:"in_temp_table" toml:"in_temp_table"`
	CTE         bool `yaml:"cte" toml:"cte"`
}

// Adaptive configures bandit-based oracle selection.
type Adaptive struct {
	Enabled        bool    `yaml:"enabled" toml:"enabled"`
	UCBExploration float64 `yaml:"ucb_exploration" toml:"ucb_exploration"`
}

// Logging controls stdout logging behavior.
type Logging struct {
	Verbose               bool   `yaml:"verbose" toml:"verbose"`
	ReportIntervalSeconds int    `yaml:"report_interval_seconds" toml:"report_interval_seconds"`
	LogFile               string `yaml:"log_file" toml:"log_file"`
	LogMaxSizeMB          int    `yaml:"log_max_size_mb" toml:"log_max_size_mb"`
	LogMaxBackups         int    `yaml:"log_max_backups" toml:"log_max_backups"`
	ReportDir             string `yaml:"report_dir" toml:"report_dir"`
}

// StorageConfig holds external storage settings.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3" toml:"s3"`
	GCS GCSConfig `yaml:"gcs" toml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (legacy and S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled" toml:"enabled"`
	Endpoint        string `yaml:"endpoint" toml:"endpoint"`
	Region          string `yaml:"region" toml:"region"`
	Bucket          string `yaml:"bucket" toml:"bucket"`
	Prefix          string `yaml:"prefix" toml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id" toml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" toml:"secret_access_key"`
	SessionToken    string `yaml:"session_token" toml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style" toml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled" toml:"enabled"`
	Bucket          string `yaml:"bucket" toml:"bucket"`
	Prefix          string `yaml:"prefix" toml:"prefix"`
	CredentialsFile string `yaml:"credentials_file" toml:"credentials_file"`
}

// Load reads configuration from a YAML or TOML file, chosen by extension.
func Load(path string) (Config, error) {
	cfg := defaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "decode %s", path)
		}
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrapf(err, "decode %s", path)
		}
	}
	normalizeConfig(&cfg)
	return cfg, nil
}

// Default returns the configuration used without a config file.
func Default() Config {
	cfg := defaultConfig()
	normalizeConfig(&cfg)
	return cfg
}

const (
	maxDepthDefault           = 3
	maxRowsDefault            = 100
	reportIntervalDefault     = 30
	statementTimeoutMsDefault = 10000
	queriesPerDatabaseDefault = 100
)

func normalizeConfig(cfg *Config) {
	if cfg.Driver == "" {
		cfg.Driver = "sqlite"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueriesPerDatabase <= 0 {
		cfg.QueriesPerDatabase = queriesPerDatabaseDefault
	}
	if cfg.MaxTables <= 0 {
		cfg.MaxTables = 1
	}
	if cfg.StatementTimeoutMs <= 0 {
		cfg.StatementTimeoutMs = statementTimeoutMsDefault
	}
	if cfg.Generator.MaxDepth <= 0 {
		cfg.Generator.MaxDepth = maxDepthDefault
	}
	if cfg.Oracles.MaxRows <= 0 {
		cfg.Oracles.MaxRows = maxRowsDefault
	}
	if cfg.Oracles.Only != "" {
		cfg.Adaptive.Enabled = false
	}
	if cfg.Logging.ReportIntervalSeconds <= 0 {
		cfg.Logging.ReportIntervalSeconds = reportIntervalDefault
	}
	if cfg.Logging.ReportDir == "" {
		cfg.Logging.ReportDir = "reports"
	}
	if !strings.Contains(cfg.DSN, "%d") && cfg.Workers > 1 && !strings.Contains(cfg.DSN, ":memory:") {
		ext := filepath.Ext(cfg.DSN)
		cfg.DSN = strings.TrimSuffix(cfg.DSN, ext) + "-%d" + ext
	}
}

func defaultConfig() Config {
	return Config{
		Driver:             "sqlite",
		DSN:                "databases/limbo-%d.db",
		Database:           "limbo_fuzz",
		Iterations:         1000,
		Workers:            1,
		QueriesPerDatabase: queriesPerDatabaseDefault,
		MaxTables:          4,
		MaxIndexes:         4,
		MaxInserts:         30,
		StatementTimeoutMs: statementTimeoutMsDefault,
		Generator: Generator{
			MaxDepth:       maxDepthDefault,
			Joins:          true,
			Functions:      true,
			In:             true,
			NullsFirstLast: true,
			WithoutRowid:   true,
			FloatingPoint:  true,
		},
		Oracles: OracleConfig{
			Weights: OracleWeights{
				PQS:               3,
				NoREC:             3,
				Where:             2,
				Distinct:          1,
				GroupBy:           1,
				Having:            1,
				Aggregate:         1,
				QueryPartitioning: 2,
				CODDTest:          2,
				Fuzzer:            1,
			},
			MaxRows: maxRowsDefault,
		},
		Adaptive: Adaptive{Enabled: true, UCBExploration: 1.5},
		Logging: Logging{
			ReportIntervalSeconds: reportIntervalDefault,
			LogFile:               "logs/limbofuzz.log",
			LogMaxSizeMB:          100,
			LogMaxBackups:         5,
			ReportDir:             "reports",
		},
	}
}
