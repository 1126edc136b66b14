package mirror

import (
	"sort"
	"strings"
)

const (
	EnvEndpoint   = "HF_ENDPOINT"
	EnvHFTransfer = "HF_HUB_ENABLE_HF_TRANSFER"
	EnvToken      = "HF_TOKEN"
)

// Environment is the set of variables the download client sees. It is passed
// to each child process explicitly and never written to the parent process.
type Environment struct {
	Endpoint   string
	Accelerate bool
	Token      string
}

// WithAcceleration returns a copy with accelerated transfer toggled.
func (e Environment) WithAcceleration(on bool) Environment {
	e.Accelerate = on
	return e
}

// Vars returns the variables this environment defines.
func (e Environment) Vars() map[string]string {
	vars := map[string]string{
		EnvHFTransfer: "0",
	}
	if e.Accelerate {
		vars[EnvHFTransfer] = "1"
	}
	if e.Endpoint != "" {
		vars[EnvEndpoint] = e.Endpoint
	}
	if e.Token != "" {
		vars[EnvToken] = e.Token
	}

	return vars
}

// Apply returns base with this environment's variables set, replacing any
// existing entries for the same keys.
func (e Environment) Apply(base []string) []string {
	vars := e.Vars()

	env := make([]string, 0, len(base)+len(vars))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := vars[key]; ok {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		env = append(env, k+"="+vars[k])
	}

	return env
}

// Lookup returns the value of key in an environment list, last entry wins.
func Lookup(env []string, key string) (string, bool) {
	value, found := "", false
	for _, kv := range env {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k == key {
			value, found = v, true
		}
	}

	return value, found
}
