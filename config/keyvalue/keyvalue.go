// Package keyvalue turns go-simpler.org/env tagged config structs into sorted
// key/value lists and renders them as a shell script that sets the variables.
package keyvalue

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"time"
)

// KV is a key/value pair.
type KV struct{ Key, Value string }

// KVSlice is a collection of key/value pairs.
type KVSlice []KV

func (kv KVSlice) Len() int           { return len(kv) }
func (kv KVSlice) Less(i, j int) bool { return kv[i].Key < kv[j].Key }
func (kv KVSlice) Swap(i, j int)      { kv[i], kv[j] = kv[j], kv[i] }

// Composit merges kv2 over kv, later values replacing earlier ones with the
// same key.
func (kv KVSlice) Composit(kv2 KVSlice) (out KVSlice) {
	out = append(out, kv...)
out:
	for _, p := range kv2 {
		for j, q := range out {
			if p.Key == q.Key {
				out[j].Value = p.Value
				continue out
			}
		}
		out = append(out, p)
	}
	return
}

// EnvKV lists the `env` tagged fields of a config struct value. Pass the
// struct, not a pointer to it. Fields without an env tag are skipped.
func EnvKV(cfg any) (m KVSlice) {
	t := reflect.TypeOf(cfg)
	v := reflect.ValueOf(cfg)
	for i := 0; i < t.NumField(); i++ {
		k := t.Field(i).Tag.Get("env")
		if k == "" {
			continue
		}
		var val string
		switch f := v.Field(i).Interface().(type) {
		case string:
			val = f
		case time.Duration:
			val = f.String()
		case int, int64, int32, uint64, uint32, float64, bool:
			val = fmt.Sprint(f)
		case []string:
			val = strings.Join(f, ",")
		}
		m = append(m, KV{k, val})
	}
	return
}

// PrintEnv writes the config as a bash script of exports, sorted by key.
// Values holding shell metacharacters are single quoted.
func PrintEnv(cfg any, printer io.Writer) {
	_, _ = fmt.Fprintln(printer, "#!/usr/bin/env bash")
	kvs := EnvKV(cfg)
	sort.Sort(kvs)
	for _, v := range kvs {
		_, _ = fmt.Fprintf(printer, "export %s=%s\n", v.Key, quote(v.Value))
	}
}

func quote(s string) string {
	if !strings.ContainsAny(s, "&?;|<>$`\"' \t*") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
