package build

import (
	"os"
	"sort"
)

// Compiler-selection variables read by native build systems.
const (
	EnvCC  = "CC"
	EnvCXX = "CXX"
	EnvCPP = "CPP"
)

// Env is the compiler selection for one target.
type Env struct {
	CC  string `json:"cc,omitempty" yaml:"cc,omitempty"`
	CXX string `json:"cxx,omitempty" yaml:"cxx,omitempty"`
	CPP string `json:"cpp,omitempty" yaml:"cpp,omitempty"`
}

// Vars returns the non-empty variables keyed by name.
func (e Env) Vars() map[string]string {
	out := make(map[string]string, 3)
	for k, v := range map[string]string{EnvCC: e.CC, EnvCXX: e.CXX, EnvCPP: e.CPP} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// List returns the variables as sorted KEY=VALUE pairs.
func (e Env) List() []string {
	vars := e.Vars()
	out := make([]string, 0, len(vars))
	for k, v := range vars {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

// ApplyEnv sets env in the process environment and returns a function that
// restores the previous values, unsetting variables that were absent.
// Callers defer the returned function so every exit path restores.
func ApplyEnv(env Env) (restore func()) {
	type saved struct {
		key     string
		value   string
		present bool
	}
	var prior []saved
	for k, v := range env.Vars() {
		old, ok := os.LookupEnv(k)
		prior = append(prior, saved{key: k, value: old, present: ok})
		_ = os.Setenv(k, v)
	}

	return func() {
		for _, s := range prior {
			if s.present {
				_ = os.Setenv(s.key, s.value)
			} else {
				_ = os.Unsetenv(s.key)
			}
		}
	}
}
