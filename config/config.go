// config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver         string `yaml:"driver"` // pgx, mysql or sqlite
	DSN            string `yaml:"dsn"`    // overrides the fields below when set
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	Schema         string `yaml:"schema"` // schema holding the simulation tables
	ConnectTimeout string `yaml:"connect_timeout"`

	ConnectTimeoutDuration time.Duration `yaml:"-"`
}

type StudyConfig struct {
	ID          int64  `yaml:"id"`
	WarmupYears int    `yaml:"warmup_years"`
	ModelYear   int    `yaml:"model_year"`
	Measure     string `yaml:"measure"` // occurrences, clinical or weighted
}

// MutationConfig is one tracked genotype marker. Pattern is a SQL LIKE
// pattern over the genotype name.
type MutationConfig struct {
	Key     string `yaml:"key"`
	Pattern string `yaml:"pattern"`
}

type PathsConfig struct {
	ReplicateDir  string `yaml:"replicate_dir"`
	DatasetDir    string `yaml:"dataset_dir"`
	CacheDir      string `yaml:"cache_dir"`
	ReplicateList string `yaml:"replicate_list"`
	OutputDir     string `yaml:"output_dir"`
	Compress      bool   `yaml:"compress"` // write datasets as .csv.gz
}

type ReferenceConfig struct {
	DistrictsMapping  string `yaml:"districts_mapping"`
	MutationsTemplate string `yaml:"mutations_template"` // fmt template taking the mutation key
	IndexURL          string `yaml:"index_url"`          // optional HTML page linking the reference files
	EitherKey         string `yaml:"either_key"`         // reference set drawn for the combined marker
}

// LabelConfig maps a dataset name (configuration filename without
// extension) to its display label and chart color.
type LabelConfig struct {
	Dataset string `yaml:"dataset"`
	Label   string `yaml:"label"`
	Color   string `yaml:"color"`
}

type PublishConfig struct {
	Driver    string `yaml:"driver"` // fs or s3
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
	Prefix    string `yaml:"prefix"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type Config struct {
	Database  DatabaseConfig   `yaml:"database"`
	Study     StudyConfig      `yaml:"study"`
	Mutations []MutationConfig `yaml:"mutations"`
	Paths     PathsConfig      `yaml:"paths"`
	Reference ReferenceConfig  `yaml:"reference"`
	Labels    []LabelConfig    `yaml:"labels"`
	Publish   PublishConfig    `yaml:"publish"`
	Server    ServerConfig     `yaml:"server"`
	Logging   LoggingConfig    `yaml:"logging"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:         "pgx",
			Port:           "5432",
			Schema:         "sim",
			ConnectTimeout: "60s",
		},
		Study: StudyConfig{
			ID:          5,
			WarmupYears: 7,
			ModelYear:   2004,
			Measure:     "occurrences",
		},
		Mutations: []MutationConfig{
			{Key: "469Y", Pattern: "_____Y__%"},
			{Key: "675V", Pattern: "______V_%"},
		},
		Paths: PathsConfig{
			ReplicateDir:  "data/replicates",
			DatasetDir:    "data/datasets",
			CacheDir:      "data/cache",
			ReplicateList: "data/replicates.csv",
			OutputDir:     "out",
		},
		Reference: ReferenceConfig{
			DistrictsMapping:  "../GIS/administrative/uga_districts.csv",
			MutationsTemplate: "../GIS/mutations/uga_%s_mutations.csv",
			EitherKey:         "675V",
		},
		Publish: PublishConfig{Driver: "fs"},
		Server:  ServerConfig{Port: "8080"},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from an optional YAML file on top of Default,
// then applies a .env file (if present) and MASIM_* environment variables.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"MASIM_DB_DRIVER":         &c.Database.Driver,
		"MASIM_DB_DSN":            &c.Database.DSN,
		"MASIM_DB_HOST":           &c.Database.Host,
		"MASIM_DB_PORT":           &c.Database.Port,
		"MASIM_DB_USER":           &c.Database.User,
		"MASIM_DB_PASSWORD":       &c.Database.Password,
		"MASIM_DB_NAME":           &c.Database.DBName,
		"MASIM_OUTPUT_DIR":        &c.Paths.OutputDir,
		"MASIM_PUBLISH_DRIVER":    &c.Publish.Driver,
		"MASIM_PUBLISH_BUCKET":    &c.Publish.Bucket,
		"MASIM_PUBLISH_REGION":    &c.Publish.Region,
		"MASIM_PUBLISH_ENDPOINT":  &c.Publish.Endpoint,
		"MASIM_LOG_LEVEL":         &c.Logging.Level,
		"MASIM_METRICS_TEXTFILE":  &c.Metrics.Textfile,
		"MASIM_SERVER_PORT":       &c.Server.Port,
		"MASIM_REFERENCE_INDEX":   &c.Reference.IndexURL,
		"MASIM_MEASURE":           &c.Study.Measure,
		"MASIM_REPLICATE_DIR":     &c.Paths.ReplicateDir,
		"MASIM_DATASET_DIR":       &c.Paths.DatasetDir,
		"MASIM_CACHE_DIR":         &c.Paths.CacheDir,
		"MASIM_REPLICATE_LIST":    &c.Paths.ReplicateList,
		"MASIM_DISTRICTS_MAPPING": &c.Reference.DistrictsMapping,
	}
	for name, dst := range str {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("MASIM_STUDY_ID"); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse MASIM_STUDY_ID: %w", err)
		}
		c.Study.ID = id
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a run and
// parses derived fields.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "pgx", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.ConnectTimeout != "" {
		d, err := time.ParseDuration(c.Database.ConnectTimeout)
		if err != nil {
			return fmt.Errorf("failed to parse connect_timeout: %w", err)
		}
		c.Database.ConnectTimeoutDuration = d
	}
	if c.Study.WarmupYears < 0 {
		return fmt.Errorf("warmup_years must not be negative")
	}
	if len(c.Mutations) == 0 {
		return fmt.Errorf("at least one mutation must be tracked")
	}
	seen := map[string]bool{}
	for _, m := range c.Mutations {
		if m.Key == "" || m.Pattern == "" {
			return fmt.Errorf("mutation entries need both key and pattern")
		}
		if m.Key == "either" || seen[m.Key] {
			return fmt.Errorf("mutation key %q is reserved or duplicated", m.Key)
		}
		seen[m.Key] = true
	}
	switch c.Publish.Driver {
	case "", "fs":
	case "s3":
		if c.Publish.Bucket == "" {
			return fmt.Errorf("publish.bucket required for s3 driver")
		}
	default:
		return fmt.Errorf("unsupported publish driver %q", c.Publish.Driver)
	}
	return nil
}

// MutationKeys returns the tracked keys in configured order.
func (c *Config) MutationKeys() []string {
	keys := make([]string, len(c.Mutations))
	for i, m := range c.Mutations {
		keys[i] = m.Key
	}
	return keys
}

// WarmupDays is the elapsed-day cutoff below which rows are not loaded.
func (c *Config) WarmupDays() int64 {
	return int64(c.Study.WarmupYears) * 365
}

// EnsureDirs creates the working directories. Output directories are never
// cleared.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{
		c.Paths.ReplicateDir,
		c.Paths.DatasetDir,
		c.Paths.CacheDir,
		c.Paths.OutputDir,
		filepath.Dir(c.Paths.ReplicateList),
	} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LabelFor returns the display label and color for a dataset name, falling
// back to the name itself.
func (c *Config) LabelFor(dataset string) (label, color string) {
	for _, l := range c.Labels {
		if l.Dataset == dataset {
			return l.Label, l.Color
		}
	}
	return dataset, ""
}
