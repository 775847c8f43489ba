// Package env reads .env files as a source for go-simpler.org/env.
package env

import (
	"os"
	"strings"

	"zapbox.lol/chk"
)

// Env is a key/value map of environment variables.
type Env map[string]string

// GetEnv reads a file of KEY=value lines in shell environment variable format.
// Blank lines and # comments are skipped, an export prefix is allowed, and
// values may be wrapped in single or double quotes.
func GetEnv(path string) (env Env, err error) {
	var s []byte
	if s, err = os.ReadFile(path); chk.T(err) {
		return
	}
	return Parse(string(s)), nil
}

// Parse reads .env formatted text. Lines without an = are ignored.
func Parse(s string) (env Env) {
	env = make(Env)
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if len(v) > 1 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
			v = v[1 : len(v)-1]
		}
		env[strings.TrimSpace(k)] = v
	}
	return
}

// LookupEnv returns the raw value of key. It makes Env a go-simpler.org/env
// Source.
func (env Env) LookupEnv(key string) (value string, ok bool) {
	value, ok = env[key]
	return
}
