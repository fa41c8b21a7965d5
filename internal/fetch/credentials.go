package fetch

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
)

const envKaggleConfigDir = "KAGGLE_CONFIG_DIR"

// Credentials authenticate against the Kaggle API.
type Credentials struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

func (c Credentials) complete() bool {
	return c.Username != "" && c.Key != ""
}

// ResolveCredentials returns the explicit username/key when both are set,
// otherwise reads kaggle.json from $KAGGLE_CONFIG_DIR or ~/.kaggle.
func ResolveCredentials(fs afero.Fs, username, key string) (Credentials, error) {
	creds := Credentials{Username: username, Key: key}
	if creds.complete() {
		return creds, nil
	}

	for _, path := range credentialFiles() {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			continue
		}
		var fromFile Credentials
		if err := json.Unmarshal(data, &fromFile); err != nil {
			return Credentials{}, apperr.Wrapf(apperr.KindConfig, err, "parse %s", path)
		}
		if fromFile.complete() {
			return fromFile, nil
		}
	}

	return Credentials{}, apperr.New(apperr.KindConfig,
		"kaggle credentials missing: set KAGGLE_USERNAME and KAGGLE_KEY or provide ~/.kaggle/kaggle.json")
}

func credentialFiles() []string {
	var paths []string
	if dir := os.Getenv(envKaggleConfigDir); dir != "" {
		paths = append(paths, filepath.Join(dir, "kaggle.json"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".kaggle", "kaggle.json"))
	}
	return paths
}
