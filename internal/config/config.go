// Package config defines the job configuration. Values come from a YAML file
// with environment overrides and defaults, read with cleanenv:
//
//	job: sparkify
//	input:
//	  root: s3a://udacity-dend/
//	output:
//	  root: s3a://my-lake/
//	sink:
//	  compression: snappy
//	runtime:
//	  workers: 8
//
// Every field also has an environment variable (see the env tags), so the job
// runs with no file at all.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// PathEnv names the variable holding the config file path.
const PathEnv = "ETL_CONFIG"

// DefaultPath is used when PathEnv is unset.
const DefaultPath = "dl.yml"

// Config is the full job configuration.
type Config struct {
	// Job labels logs and metrics.
	Job string `yaml:"job" env:"ETL_JOB" env-default:"sparkify"`

	Log       LogConfig       `yaml:"log"`
	Input     InputConfig     `yaml:"input"`
	Output    OutputConfig    `yaml:"output"`
	Sink      SinkConfig      `yaml:"sink"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	AWS       AWSConfig       `yaml:"aws"`
	Runtime   RuntimeConfig   `yaml:"runtime"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"console"` // console | json
}

// InputConfig locates the raw datasets. Globs are relative to Root.
type InputConfig struct {
	Root     string `yaml:"root" env:"INPUT_ROOT" env-default:"s3a://udacity-dend/"`
	SongGlob string `yaml:"song_glob" env:"INPUT_SONG_GLOB" env-default:"song_data/*/*/*/*.json"`
	LogGlob  string `yaml:"log_glob" env:"INPUT_LOG_GLOB" env-default:"log_data/*/*/*.json"`
	// ReadWorkers bounds concurrent file reads per dataset.
	ReadWorkers int `yaml:"read_workers" env:"INPUT_READ_WORKERS" env-default:"8"`
}

// OutputConfig locates the lake. Each table is written to Root/<name><Suffix>.
type OutputConfig struct {
	Root   string `yaml:"root" env:"OUTPUT_ROOT" env-default:"lake"`
	Suffix string `yaml:"suffix" env:"OUTPUT_SUFFIX" env-default:""`
}

// SinkConfig tunes the Parquet writer.
type SinkConfig struct {
	Compression    string `yaml:"compression" env:"SINK_COMPRESSION" env-default:"snappy"`
	RowGroupMB     int    `yaml:"row_group_mb" env:"SINK_ROW_GROUP_MB" env-default:"128"`
	MaxRowsPerFile int    `yaml:"max_rows_per_file" env:"SINK_MAX_ROWS_PER_FILE" env-default:"1000000"`
	// StagingDir holds tables while they are written. "" means
	// <output.root>/_temporary for a local root and os.TempDir for S3.
	StagingDir string `yaml:"staging_dir" env:"SINK_STAGING_DIR" env-default:""`
	// DryRun builds every table but writes nothing.
	DryRun bool `yaml:"dry_run" env:"SINK_DRY_RUN" env-default:"false"`
}

// WarehouseConfig enables the optional SQL mirror of the lake tables.
type WarehouseConfig struct {
	Kind      string `yaml:"kind" env:"WAREHOUSE_KIND" env-default:""` // "" | postgres | sqlite | mssql | mysql
	DSN       string `yaml:"-" env:"WAREHOUSE_DSN"`
	Schema    string `yaml:"schema" env:"WAREHOUSE_SCHEMA" env-default:""`
	BatchSize int    `yaml:"batch_size" env:"WAREHOUSE_BATCH_SIZE" env-default:"5000"`
}

// AWSConfig carries S3 access settings. Empty keys fall back to the SDK
// default credential chain.
type AWSConfig struct {
	AccessKeyID     string `yaml:"access_key_id" env:"AWS_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"-" env:"AWS_SECRET_ACCESS_KEY"`
	Region          string `yaml:"region" env:"AWS_REGION" env-default:"us-west-2"`
	Endpoint        string `yaml:"endpoint" env:"AWS_ENDPOINT" env-default:""`
}

// RuntimeConfig controls data parallelism.
type RuntimeConfig struct {
	Workers   int    `yaml:"workers" env:"RUNTIME_WORKERS" env-default:"0"` // 0 = GOMAXPROCS
	ChunkRows int    `yaml:"chunk_rows" env:"RUNTIME_CHUNK_ROWS" env-default:"65536"`
	Timezone  string `yaml:"timezone" env:"RUNTIME_TIMEZONE" env-default:"UTC"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend        string `yaml:"backend" env:"METRICS_BACKEND" env-default:"none"` // none | pushgateway | datadog
	PushgatewayURL string `yaml:"pushgateway_url" env:"METRICS_PUSHGATEWAY_URL" env-default:""`
	DatadogAddr    string `yaml:"datadog_addr" env:"METRICS_DATADOG_ADDR" env-default:"127.0.0.1:8125"`
}

// Load reads path with environment overrides. A missing file is not an
// error: the configuration then comes from the environment and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
		return cfg, nil
	}
	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// PathFromEnv returns the config file path named by PathEnv, or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv(PathEnv); p != "" {
		return p
	}
	return DefaultPath
}
