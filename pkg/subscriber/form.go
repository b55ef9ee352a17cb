package subscriber

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// formParams is a form body that keeps insertion order, unlike url.Values.
// Setting an existing key replaces its value in place.
type formParams struct {
	keys   []string
	values map[string]string
}

func newFormParams() *formParams {
	return &formParams{values: make(map[string]string)}
}

func (f *formParams) set(key, value string) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// setValue flattens v the way HTML forms do: nil is skipped, booleans
// become 1/0, lists become key[i] and maps key[name].
func (f *formParams) setValue(key string, v any) {
	switch val := v.(type) {
	case nil:
	case bool:
		if val {
			f.set(key, "1")
		} else {
			f.set(key, "0")
		}
	case string:
		f.set(key, val)
	case []string:
		for i, item := range val {
			f.set(key+"["+strconv.Itoa(i)+"]", item)
		}
	case []any:
		for i, item := range val {
			f.setValue(key+"["+strconv.Itoa(i)+"]", item)
		}
	case map[string]any:
		for _, k := range sortedKeys(val) {
			f.setValue(key+"["+k+"]", val[k])
		}
	default:
		f.set(key, fmt.Sprint(val))
	}
}

func (f *formParams) get(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

func (f *formParams) encode() string {
	var b strings.Builder
	for i, k := range f.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(f.values[k]))
	}
	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
