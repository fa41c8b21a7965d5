package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
	"github.com/alexanderjulianmartinez/load-watch/internal/config"
)

func testConfig(t *testing.T, dir string, stages ...config.StageConfig) *config.Config {
	t.Helper()
	cfg := &config.Config{Pipeline: config.PipelineConfig{Stages: stages}}
	cfg.SetDir(dir)
	return cfg
}

func TestStagesFromConfig(t *testing.T) {
	cfg := testConfig(t, "/project",
		config.StageConfig{Name: "fetch", Builtin: BuiltinFetch},
		config.StageConfig{Name: "load", Command: `meltano run tap-csv "target-bigquery"`, Dir: "meltano"},
		config.StageConfig{Name: "transform", Command: "dbt build --profiles-dir .", Dir: "/abs/dbt", Env: map[string]string{"Z": "1", "DBT_TARGET": "dev"}},
	)

	stages, err := Stages(cfg)
	require.NoError(t, err)
	require.Len(t, stages, 3)

	assert.Equal(t, BuiltinFetch, stages[0].Builtin)
	assert.Empty(t, stages[0].Args)
	assert.Equal(t, []string{"meltano", "run", "tap-csv", "target-bigquery"}, stages[1].Args)
	assert.Equal(t, filepath.Join("/project", "meltano"), stages[1].Dir)
	assert.Equal(t, "/abs/dbt", stages[2].Dir)
	assert.Equal(t, []string{"DBT_TARGET=dev", "Z=1"}, stages[2].Env)
}

func TestStagesRejectsBadCommand(t *testing.T) {
	cfg := testConfig(t, "/project", config.StageConfig{Name: "load", Command: `meltano "unterminated`})
	_, err := Stages(cfg)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestSlice(t *testing.T) {
	stages := []Stage{{Name: "fetch"}, {Name: "load"}, {Name: "validate"}, {Name: "transform"}}
	names := func(s []Stage) []string {
		var out []string
		for _, st := range s {
			out = append(out, st.Name)
		}
		return out
	}

	got, err := Slice(stages, "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch", "load", "validate", "transform"}, names(got))

	got, err = Slice(stages, "load", "validate")
	require.NoError(t, err)
	assert.Equal(t, []string{"load", "validate"}, names(got))

	got, err = Slice(stages, "validate", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"validate", "transform"}, names(got))

	_, err = Slice(stages, "transform", "load")
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))

	_, err = Slice(stages, "predict", "")
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	var ran []string
	builtins := map[string]Builtin{
		BuiltinFetch: func(context.Context) error {
			ran = append(ran, "fetch")
			return nil
		},
		BuiltinValidate: func(context.Context) error {
			ran = append(ran, "validate")
			return apperr.New(apperr.KindMismatch, "1 of 9 datasets failed validation")
		},
	}
	stages := []Stage{
		{Name: "fetch", Builtin: BuiltinFetch},
		{Name: "validate", Builtin: BuiltinValidate},
		{Name: "transform", Args: []string{"sh", "-c", "echo should-not-run"}},
	}

	var stdout bytes.Buffer
	err := NewRunner(builtins, &stdout, &stdout, zap.NewNop()).Run(context.Background(), stages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage validate failed")
	assert.True(t, errors.Is(err, apperr.Mismatch))
	assert.Equal(t, []string{"fetch", "validate"}, ran)
	assert.NotContains(t, stdout.String(), "should-not-run")
}

func TestRunCommandStage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), nil, 0o644))

	stages := []Stage{{
		Name: "load",
		Args: []string{"sh", "-c", `test -f marker && echo "target=$DBT_TARGET"`},
		Dir:  dir,
		Env:  []string{"DBT_TARGET=dev"},
	}}

	var stdout, stderr bytes.Buffer
	err := NewRunner(nil, &stdout, &stderr, zap.NewNop()).Run(context.Background(), stages)
	require.NoError(t, err)
	assert.Equal(t, "target=dev", strings.TrimSpace(stdout.String()))
}

func TestRunCommandFailure(t *testing.T) {
	stages := []Stage{
		{Name: "load", Args: []string{"sh", "-c", "echo boom >&2; exit 4"}},
		{Name: "transform", Args: []string{"sh", "-c", "echo should-not-run"}},
	}

	var stdout, stderr bytes.Buffer
	err := NewRunner(nil, &stdout, &stderr, zap.NewNop()).Run(context.Background(), stages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage load failed")
	assert.Contains(t, err.Error(), "status 4")
	assert.Equal(t, "boom", strings.TrimSpace(stderr.String()))
	assert.Empty(t, stdout.String())
}

func TestRunMissingExecutable(t *testing.T) {
	stages := []Stage{{Name: "load", Args: []string{"loadwatch-no-such-binary"}}}
	err := NewRunner(nil, &bytes.Buffer{}, &bytes.Buffer{}, zap.NewNop()).Run(context.Background(), stages)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestRunUnknownBuiltin(t *testing.T) {
	stages := []Stage{{Name: "predict", Builtin: "predict"}}
	err := NewRunner(map[string]Builtin{}, &bytes.Buffer{}, &bytes.Buffer{}, zap.NewNop()).Run(context.Background(), stages)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestPlan(t *testing.T) {
	stages := []Stage{
		{Name: "fetch", Builtin: BuiltinFetch},
		{Name: "load", Args: []string{"meltano", "run", "tap-csv", "target-bigquery"}, Dir: "/project/meltano"},
	}
	var buf bytes.Buffer
	require.NoError(t, NewRunner(nil, nil, nil, zap.NewNop()).Plan(&buf, stages))
	assert.Equal(t,
		"1. fetch (builtin fetch)\n2. load: meltano run tap-csv target-bigquery (in /project/meltano)\n",
		buf.String())
}
