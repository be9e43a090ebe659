package datawedge

import (
	"fmt"
	"sort"
	"strings"
)

// Bundle holds intent extras. Values are string, bool, int64, float64, []string,
// Bundle or []Bundle.
type Bundle map[string]any

// Intent is a broadcast message exchanged with the scanner subsystem.
type Intent struct {
	Action   string
	Category string
	Extras   Bundle
}

// NewIntent returns an intent with an allocated extras bundle.
func NewIntent(action string) Intent {
	return Intent{Action: action, Extras: Bundle{}}
}

// String returns the string value stored under key.
func (b Bundle) String(key string) (string, bool) {
	if b == nil {
		return "", false
	}
	v, ok := b[key].(string)
	return v, ok
}

// Bundle returns the nested bundle stored under key.
func (b Bundle) Bundle(key string) (Bundle, bool) {
	if b == nil {
		return nil, false
	}
	switch v := b[key].(type) {
	case Bundle:
		return v, true
	case map[string]any:
		return Bundle(v), true
	default:
		return nil, false
	}
}

// Has reports whether key is present, whatever its type.
func (b Bundle) Has(key string) bool {
	if b == nil {
		return false
	}
	_, ok := b[key]
	return ok
}

// Clone returns a deep copy of b.
func (b Bundle) Clone() Bundle {
	if b == nil {
		return nil
	}
	out := make(Bundle, len(b))
	for k, v := range b {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case Bundle:
		return typed.Clone()
	case map[string]any:
		return Bundle(typed).Clone()
	case []Bundle:
		out := make([]Bundle, len(typed))
		for i, item := range typed {
			out[i] = item.Clone()
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return v
	}
}

// StringExtra returns a top-level string extra.
func (i Intent) StringExtra(key string) (string, bool) {
	return i.Extras.String(key)
}

// Keys returns sorted top-level extra keys, for logging.
func (i Intent) Keys() []string {
	keys := make([]string, 0, len(i.Extras))
	for k := range i.Extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (i Intent) String() string {
	return fmt.Sprintf("Intent{action=%s extras=[%s]}", i.Action, strings.Join(i.Keys(), ","))
}
