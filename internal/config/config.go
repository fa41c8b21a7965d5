package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
	"github.com/alexanderjulianmartinez/load-watch/internal/warehouse"
)

const (
	DefaultKaggleBaseURL    = "https://www.kaggle.com/api/v1"
	DefaultDataDir          = "data"
	DefaultDownloadTimeout  = 10 * time.Minute
	DefaultWarehouseType    = "bigquery"
	DefaultWarehouseTimeout = 30 * time.Second
)

var datasetRefPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*/[A-Za-z0-9][A-Za-z0-9_.-]*$`)

type Config struct {
	Kaggle    KaggleConfig    `yaml:"kaggle"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Datasets  []DatasetConfig `yaml:"datasets" validate:"required,min=1,dive"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`

	// dir is the directory holding the config file; relative paths resolve
	// against it.
	dir string
}

type KaggleConfig struct {
	Dataset string   `yaml:"dataset"`
	BaseURL string   `yaml:"baseURL" validate:"omitempty,url"`
	DataDir string   `yaml:"dataDir"`
	Force   bool     `yaml:"force"`
	Retries int      `yaml:"retries" validate:"gte=0,lte=10"`
	Timeout Duration `yaml:"timeout"`

	// Credentials only come from the environment or kaggle.json.
	Username string `yaml:"-"`
	Key      string `yaml:"-"`
}

type WarehouseConfig struct {
	Type            string   `yaml:"type" validate:"omitempty,oneof=bigquery mysql sqlite"`
	Project         string   `yaml:"project"`
	Dataset         string   `yaml:"dataset"`
	Location        string   `yaml:"location"`
	CredentialsFile string   `yaml:"credentialsFile"`
	DSN             string   `yaml:"dsn"`
	Schema          string   `yaml:"schema"`
	Retries         int      `yaml:"retries" validate:"gte=0,lte=10"`
	Timeout         Duration `yaml:"timeout"`
}

type DatasetConfig struct {
	Name         string `yaml:"name" validate:"required"`
	File         string `yaml:"file" validate:"required"`
	Table        string `yaml:"table" validate:"required"`
	Header       *bool  `yaml:"header"`
	ExpectedRows *int64 `yaml:"expectedRows" validate:"omitempty,gte=0"`
}

// HasHeader reports whether the first CSV line is a header. Defaults to true.
func (d DatasetConfig) HasHeader() bool {
	return d.Header == nil || *d.Header
}

type PipelineConfig struct {
	Stages []StageConfig `yaml:"stages" validate:"dive"`
}

type StageConfig struct {
	Name    string            `yaml:"name" validate:"required"`
	Builtin string            `yaml:"builtin" validate:"omitempty,oneof=fetch validate"`
	Command string            `yaml:"command"`
	Dir     string            `yaml:"dir"`
	Env     map[string]string `yaml:"env"`
}

// Duration decodes Go duration strings ("30s", "5m") from YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, s, err)
	}
	d.Duration = parsed
	return nil
}

// LoadConfig reads the YAML file at path, loads .env files, applies
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, apperr.New(apperr.KindConfig, "config path is required")
	}

	_, err := os.Stat(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err, "config file not found")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err, "read config file")
	}

	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, err, "resolve config path")
	}
	cfg.dir = filepath.Dir(abs)

	LoadDotEnv(".", cfg.dir)
	cfg.ApplyEnv(NewEnv())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a config document and fills defaults. Unknown keys are
// rejected. It does not read the environment or validate.
func Parse(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, apperr.Wrap(apperr.KindConfig, err, "parse config")
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Kaggle.BaseURL == "" {
		c.Kaggle.BaseURL = DefaultKaggleBaseURL
	}
	if c.Kaggle.DataDir == "" {
		c.Kaggle.DataDir = DefaultDataDir
	}
	if c.Kaggle.Timeout.Duration == 0 {
		c.Kaggle.Timeout.Duration = DefaultDownloadTimeout
	}
	if c.Warehouse.Type == "" {
		c.Warehouse.Type = DefaultWarehouseType
	}
	if c.Warehouse.Timeout.Duration == 0 {
		c.Warehouse.Timeout.Duration = DefaultWarehouseTimeout
	}
}

// Validate checks struct tags first, then the rules that span fields.
func (c *Config) Validate() error {
	if err := validateStruct(c); err != nil {
		return err
	}
	return c.validate()
}

func (c *Config) validate() error {
	if c.Kaggle.Dataset != "" && !datasetRefPattern.MatchString(c.Kaggle.Dataset) {
		return apperr.Newf(apperr.KindConfig, "kaggle.dataset must look like owner/dataset, got %q", c.Kaggle.Dataset)
	}

	switch c.Warehouse.Type {
	case "bigquery":
		if c.Warehouse.Project == "" {
			return apperr.New(apperr.KindConfig, "warehouse.project is required for bigquery (or set GCP_PROJECT_ID)")
		}
	case "mysql", "sqlite":
		if c.Warehouse.DSN == "" {
			return apperr.Newf(apperr.KindConfig, "warehouse.dsn is required for %s", c.Warehouse.Type)
		}
	}

	seen := map[string]bool{}
	for _, d := range c.Datasets {
		if seen[d.Name] {
			return apperr.Newf(apperr.KindConfig, "dataset %s is defined more than once", d.Name)
		}
		seen[d.Name] = true

		ref, err := warehouse.ParseTableRef(d.Table)
		if err != nil {
			return apperr.Wrapf(apperr.KindConfig, err, "dataset %s", d.Name)
		}
		if c.Warehouse.Type == "bigquery" && ref.Dataset == "" && c.Warehouse.Dataset == "" {
			return apperr.Newf(apperr.KindConfig,
				"dataset %s: table %q needs a dataset, use dataset.table or set warehouse.dataset", d.Name, d.Table)
		}
	}

	stages := map[string]bool{}
	for _, s := range c.Pipeline.Stages {
		if stages[s.Name] {
			return apperr.Newf(apperr.KindConfig, "stage %s is defined more than once", s.Name)
		}
		stages[s.Name] = true
		if (s.Builtin == "") == (s.Command == "") {
			return apperr.Newf(apperr.KindConfig, "stage %s must define exactly one of builtin or command", s.Name)
		}
	}
	return nil
}

// Dir returns the directory relative paths are resolved against.
func (c *Config) Dir() string {
	if c.dir == "" {
		return "."
	}
	return c.dir
}

// SetDir overrides the base directory. Used when the config did not come
// from a file.
func (c *Config) SetDir(dir string) {
	c.dir = dir
}

// Resolve makes p absolute relative to the config directory.
func (c *Config) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

// DataDir is the resolved local directory holding the dataset files.
func (c *Config) DataDir() string {
	return c.Resolve(c.Kaggle.DataDir)
}

// DatasetPath returns the resolved path of the dataset's source file.
func (c *Config) DatasetPath(d DatasetConfig) string {
	if filepath.IsAbs(d.File) {
		return d.File
	}
	return filepath.Join(c.DataDir(), d.File)
}

// SelectDatasets returns the datasets named in names, in config order, or all
// of them when names is empty.
func (c *Config) SelectDatasets(names []string) ([]DatasetConfig, error) {
	if len(names) == 0 {
		return c.Datasets, nil
	}

	wanted := map[string]bool{}
	for _, n := range names {
		wanted[n] = true
	}

	var out []DatasetConfig
	for _, d := range c.Datasets {
		if wanted[d.Name] {
			out = append(out, d)
			delete(wanted, d.Name)
		}
	}
	for _, n := range names {
		if wanted[n] {
			return nil, apperr.Newf(apperr.KindConfig, "unknown dataset %s", n)
		}
	}
	return out, nil
}
