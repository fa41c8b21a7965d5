package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/shlex"

	"github.com/alexanderjulianmartinez/load-watch/internal/apperr"
	"github.com/alexanderjulianmartinez/load-watch/internal/config"
)

const (
	BuiltinFetch    = "fetch"
	BuiltinValidate = "validate"
)

// Stage is one step of the pipeline: either a builtin or an external command.
type Stage struct {
	Name    string
	Builtin string
	Args    []string
	Dir     string
	Env     []string
}

func (s Stage) String() string {
	if s.Builtin != "" {
		return fmt.Sprintf("%s (builtin %s)", s.Name, s.Builtin)
	}
	desc := fmt.Sprintf("%s: %s", s.Name, strings.Join(s.Args, " "))
	if s.Dir != "" {
		desc += fmt.Sprintf(" (in %s)", s.Dir)
	}
	return desc
}

// Stages builds the ordered stage list from cfg. Command lines are split with
// shell word rules; commands run in the config file's directory unless the
// stage names another one.
func Stages(cfg *config.Config) ([]Stage, error) {
	out := make([]Stage, 0, len(cfg.Pipeline.Stages))
	for _, sc := range cfg.Pipeline.Stages {
		st := Stage{Name: sc.Name, Builtin: sc.Builtin}
		if sc.Command != "" {
			args, err := shlex.Split(sc.Command)
			if err != nil {
				return nil, apperr.Wrapf(apperr.KindConfig, err, "stage %s: parse command", sc.Name)
			}
			if len(args) == 0 {
				return nil, apperr.Newf(apperr.KindConfig, "stage %s: empty command", sc.Name)
			}
			st.Args = args
			st.Dir = cfg.Dir()
			if sc.Dir != "" {
				st.Dir = cfg.Resolve(sc.Dir)
			}
		}

		keys := make([]string, 0, len(sc.Env))
		for k := range sc.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			st.Env = append(st.Env, k+"="+sc.Env[k])
		}

		out = append(out, st)
	}
	return out, nil
}

// Slice returns the contiguous run of stages from "from" through "to"
// inclusive. Empty bounds mean the first and last stage.
func Slice(stages []Stage, from, to string) ([]Stage, error) {
	start, end := 0, len(stages)-1
	if from != "" {
		start = indexOf(stages, from)
		if start < 0 {
			return nil, apperr.Newf(apperr.KindConfig, "unknown stage %s", from)
		}
	}
	if to != "" {
		end = indexOf(stages, to)
		if end < 0 {
			return nil, apperr.Newf(apperr.KindConfig, "unknown stage %s", to)
		}
	}
	if start > end {
		return nil, apperr.Newf(apperr.KindConfig, "stage %s comes after stage %s", from, to)
	}
	return stages[start : end+1], nil
}

func indexOf(stages []Stage, name string) int {
	for i, s := range stages {
		if s.Name == name {
			return i
		}
	}
	return -1
}
