package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kozaktomas/face-recognizer/internal/constants"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Store backends.
const (
	StoreBackendFile     = "file"
	StoreBackendPostgres = "postgres"
	StoreBackendMariaDB  = "mariadb"
)

// Embedder backends.
const (
	EmbedderBackendOpenCV = "opencv"
	EmbedderBackendRemote = "remote"
)

type Config struct {
	Data     DataConfig     `yaml:"data"`
	Detector DetectorConfig `yaml:"detector"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Matcher  MatcherConfig  `yaml:"matcher"`
	Store    StoreConfig    `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Web      WebConfig      `yaml:"web"`
}

type DataConfig struct {
	Dir      string `yaml:"dir"`       // raw photos, one directory per subject
	CropsDir string `yaml:"crops_dir"` // intermediate face crops written by enrollment
}

type DetectorConfig struct {
	Prototxt            string    `yaml:"prototxt"`
	Model               string    `yaml:"model"`
	InputSize           int       `yaml:"input_size"`
	Mean                []float64 `yaml:"mean"` // B, G, R
	CandidateConfidence float64   `yaml:"candidate_confidence"`
	MinConfidence       float64   `yaml:"min_confidence"`
}

type EmbedderConfig struct {
	Backend   string        `yaml:"backend"` // opencv or remote
	Model     string        `yaml:"model"`
	InputSize int           `yaml:"input_size"`
	Scale     float64       `yaml:"scale"`
	Mean      []float64     `yaml:"mean"`
	SwapRB    bool          `yaml:"swap_rb"`
	URL       string        `yaml:"url"` // embedding server for the remote backend
	Timeout   time.Duration `yaml:"timeout"`
	Dim       int           `yaml:"dim"` // expected output length, 0 disables the check
}

type MatcherConfig struct {
	Threshold  float64 `yaml:"threshold"`
	Candidates int     `yaml:"candidates"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // file, postgres or mariadb
	Path    string `yaml:"path"`    // artifact path for the file backend
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`         // PostgreSQL connection URL
	MariaDBDSN   string `yaml:"mariadb_dsn"` // MariaDB DSN (e.g., facerec:facerec@tcp(mariadb:3306)/facerec)
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"` // optional rotated log file
	MaxSizeMB   int    `yaml:"max_size_mb"`
	MaxBackups  int    `yaml:"max_backups"`
	MaxAgeDays  int    `yaml:"max_age_days"`
	Compress    bool   `yaml:"compress"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Addr returns the listen address.
func (c WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsCropsInside reports whether the crops directory lives inside the raw photo directory,
// in which case it must not be mistaken for a subject.
func (c DataConfig) IsCropsInside() bool {
	rel, err := filepath.Rel(filepath.Clean(c.Dir), filepath.Clean(c.CropsDir))
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..") && !strings.Contains(rel, string(filepath.Separator))
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envString returns the env var value or the default when unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envBool accepts anything strconv.ParseBool does.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envList splits a comma-separated env var, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the embedded default configuration.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

// Load builds the configuration from the embedded defaults, an optional YAML file
// and environment variables, in that order of precedence (later wins).
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv("FACEREC_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDefaults restores model settings a config file zeroed out.
func (c *Config) fillDefaults() {
	if c.Detector.InputSize == 0 {
		c.Detector.InputSize = constants.DetectorInputSize
	}
	if len(c.Detector.Mean) == 0 {
		c.Detector.Mean = append([]float64(nil), constants.DetectorMean[:]...)
	}
	if c.Detector.CandidateConfidence <= 0 {
		c.Detector.CandidateConfidence = min(constants.DefaultCandidateConfidence, c.Detector.MinConfidence)
	}
	if c.Matcher.Candidates <= 0 {
		c.Matcher.Candidates = constants.DefaultCandidateCount
	}
}

func (c *Config) applyEnv() {
	c.Data.Dir = envString("FACEREC_DATA_DIR", c.Data.Dir)
	c.Data.CropsDir = envString("FACEREC_CROPS_DIR", c.Data.CropsDir)

	c.Detector.Prototxt = envString("DETECTOR_PROTOTXT", c.Detector.Prototxt)
	c.Detector.Model = envString("DETECTOR_MODEL", c.Detector.Model)
	c.Detector.MinConfidence = envFloat("DETECTOR_MIN_CONFIDENCE", c.Detector.MinConfidence)

	c.Embedder.Backend = envString("EMBEDDER_BACKEND", c.Embedder.Backend)
	c.Embedder.Model = envString("EMBEDDER_MODEL", c.Embedder.Model)
	c.Embedder.URL = envString("EMBEDDING_URL", c.Embedder.URL)
	c.Embedder.Dim = envInt("EMBEDDING_DIM", c.Embedder.Dim)

	c.Matcher.Threshold = envFloat("MATCH_THRESHOLD", c.Matcher.Threshold)

	c.Store.Backend = envString("STORE_BACKEND", c.Store.Backend)
	c.Store.Path = envString("STORE_PATH", c.Store.Path)

	c.Database.URL = envString("DATABASE_URL", c.Database.URL)
	c.Database.MariaDBDSN = envString("MARIADB_DSN", c.Database.MariaDBDSN)
	c.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", c.Database.MaxIdleConns)

	c.Log.Level = envString("LOG_LEVEL", c.Log.Level)
	c.Log.File = envString("LOG_FILE", c.Log.File)
	c.Log.Development = envBool("LOG_DEVELOPMENT", c.Log.Development)

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
	c.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS", c.Web.AllowedOrigins)
}

// Validate checks ranges and backend names.
func (c *Config) Validate() error {
	var errs []error

	if c.Data.Dir == "" {
		errs = append(errs, errors.New("data.dir is required"))
	}
	if c.Data.CropsDir == "" {
		errs = append(errs, errors.New("data.crops_dir is required"))
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		errs = append(errs, fmt.Errorf("detector.min_confidence must be in [0,1], got %v", c.Detector.MinConfidence))
	}
	if c.Detector.CandidateConfidence > c.Detector.MinConfidence {
		errs = append(errs, errors.New("detector.candidate_confidence must not exceed detector.min_confidence"))
	}
	if len(c.Detector.Mean) != 3 {
		errs = append(errs, fmt.Errorf("detector.mean needs 3 values, got %d", len(c.Detector.Mean)))
	}
	if c.Detector.InputSize <= 0 {
		errs = append(errs, errors.New("detector.input_size must be positive"))
	}

	switch c.Embedder.Backend {
	case EmbedderBackendOpenCV:
		if len(c.Embedder.Mean) != 3 {
			errs = append(errs, fmt.Errorf("embedder.mean needs 3 values, got %d", len(c.Embedder.Mean)))
		}
		if c.Embedder.InputSize <= 0 {
			errs = append(errs, errors.New("embedder.input_size must be positive"))
		}
	case EmbedderBackendRemote:
		if c.Embedder.URL == "" {
			errs = append(errs, errors.New("embedder.url is required for the remote backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedder backend %q", c.Embedder.Backend))
	}

	if c.Matcher.Threshold <= 0 || c.Matcher.Threshold > 2 {
		errs = append(errs, fmt.Errorf("matcher.threshold must be in (0,2], got %v", c.Matcher.Threshold))
	}

	switch c.Store.Backend {
	case StoreBackendFile:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required for the file backend"))
		}
	case StoreBackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres backend"))
		}
	case StoreBackendMariaDB:
		if c.Database.MariaDBDSN == "" {
			errs = append(errs, errors.New("MARIADB_DSN is required for the mariadb backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}

	return errors.Join(errs...)
}
