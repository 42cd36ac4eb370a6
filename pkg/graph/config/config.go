package config

import (
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config is a read-only view over decoded configuration.
//
// Keys may be dotted paths ("checkpoint.backend") that descend through nested
// sections. Accessors return the supplied default when a key is missing or its
// value cannot be converted.
type Config struct {
	data map[string]any
}

// New wraps data. A nil map yields an empty Config.
func New(data map[string]any) Config {
	if data == nil {
		data = map[string]any{}
	}
	return Config{data: data}
}

// lookup resolves a possibly dotted key. An exact top-level match wins over
// path traversal, so keys containing dots still work.
func (c Config) lookup(key string) (any, bool) {
	if v, ok := c.data[key]; ok {
		return v, true
	}

	section := c.data
	parts := strings.Split(key, ".")
	for i, part := range parts {
		v, ok := section[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		if section, ok = asMap(v); !ok {
			return nil, false
		}
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Config:
		return m.data, true
	}
	return nil, false
}

// text returns the env-expanded string stored at key.
func (c Config) text(key string) (string, bool) {
	v, ok := c.lookup(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return os.ExpandEnv(s), true
}

// String returns the string at key. ${VAR} and $VAR references are expanded
// from the environment, so secrets such as a Redis URL can stay out of the file.
func (c Config) String(key, defaultVal string) string {
	if s, ok := c.text(key); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration at key. Strings are parsed with
// time.ParseDuration; bare numbers are seconds.
func (c Config) Duration(key string, defaultVal time.Duration) time.Duration {
	if s, ok := c.text(key); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
		return defaultVal
	}
	if d, ok := c.lookup(key); ok {
		if d, ok := d.(time.Duration); ok {
			return d
		}
	}
	if secs, ok := c.number(key); ok {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultVal
}

// number reads numeric values, including strings such as "${MAX_STEPS}".
func (c Config) number(key string) (float64, bool) {
	v, ok := c.lookup(key)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(os.ExpandEnv(n)), 64)
		return f, err == nil
	}
	return 0, false
}

// Bool returns the boolean at key. Strings accepted by strconv.ParseBool
// are converted after env expansion.
func (c Config) Bool(key string, defaultVal bool) bool {
	v, ok := c.lookup(key)
	if !ok {
		return defaultVal
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(os.ExpandEnv(b)); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// Int returns the integer at key. Numbers with a fractional part yield
// defaultVal.
func (c Config) Int(key string, defaultVal int) int {
	f, ok := c.number(key)
	if !ok || f != float64(int(f)) {
		return defaultVal
	}
	return int(f)
}

// Float returns the number at key.
func (c Config) Float(key string, defaultVal float64) float64 {
	if f, ok := c.number(key); ok {
		return f
	}
	return defaultVal
}

// StringSlice returns the list at key. Any non-string element yields
// defaultVal.
func (c Config) StringSlice(key string, defaultVal []string) []string {
	v, _ := c.lookup(key)
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, len(list))
		for i, item := range list {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			out[i] = os.ExpandEnv(s)
		}
		return out
	}
	return defaultVal
}

// Sub returns the section at key, or an empty Config.
func (c Config) Sub(key string) Config {
	v, _ := c.lookup(key)
	m, _ := asMap(v)
	return New(m)
}

// Has reports whether key resolves to a value.
func (c Config) Has(key string) bool {
	_, ok := c.lookup(key)
	return ok
}

// Keys returns the top-level keys, sorted.
func (c Config) Keys() []string {
	return slices.Sorted(maps.Keys(c.data))
}

// Raw returns the underlying map. Callers must not modify it.
func (c Config) Raw() map[string]any {
	return c.data
}
