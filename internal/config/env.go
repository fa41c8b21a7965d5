package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment variables recognised on top of the YAML file.
const (
	EnvKaggleUsername  = "KAGGLE_USERNAME"
	EnvKaggleKey       = "KAGGLE_KEY"
	EnvDataDir         = "LOADWATCH_DATA_DIR"
	EnvProjectID       = "GCP_PROJECT_ID"
	EnvCloudProject    = "GOOGLE_CLOUD_PROJECT"
	EnvCredentialsFile = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvWarehouseDSN    = "LOADWATCH_WAREHOUSE_DSN"
	EnvConfigPath      = "LOADWATCH_CONFIG"
	DotEnvFile         = ".env"
)

// Env reads configuration keys from the process environment.
type Env struct {
	v *viper.Viper
}

func NewEnv() *Env {
	v := viper.New()
	_ = v.BindEnv("kaggle.username", EnvKaggleUsername)
	_ = v.BindEnv("kaggle.key", EnvKaggleKey)
	_ = v.BindEnv("kaggle.datadir", EnvDataDir)
	_ = v.BindEnv("warehouse.project", EnvProjectID, EnvCloudProject)
	_ = v.BindEnv("warehouse.credentialsfile", EnvCredentialsFile)
	_ = v.BindEnv("warehouse.dsn", EnvWarehouseDSN)
	return &Env{v: v}
}

// GetString returns the value bound to key, or "" when unset.
func (e *Env) GetString(key string) string {
	return e.v.GetString(key)
}

// ApplyEnv overrides file values with any environment values that are set.
func (c *Config) ApplyEnv(env *Env) {
	override := func(dst *string, key string) {
		if s := env.GetString(key); s != "" {
			*dst = s
		}
	}
	override(&c.Kaggle.Username, "kaggle.username")
	override(&c.Kaggle.Key, "kaggle.key")
	override(&c.Kaggle.DataDir, "kaggle.datadir")
	override(&c.Warehouse.Project, "warehouse.project")
	override(&c.Warehouse.CredentialsFile, "warehouse.credentialsfile")
	override(&c.Warehouse.DSN, "warehouse.dsn")
}

// LoadDotEnv loads ".env" from each dir that has one. Variables already in
// the environment take precedence, and so do files listed earlier.
func LoadDotEnv(dirs ...string) []string {
	var loaded []string
	seen := map[string]bool{}
	for _, dir := range dirs {
		path, err := filepath.Abs(filepath.Join(dir, DotEnvFile))
		if err != nil || seen[path] {
			continue
		}
		seen[path] = true

		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			continue
		}
		loaded = append(loaded, path)
	}
	return loaded
}
