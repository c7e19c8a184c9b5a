// Package shape holds the shallow structural assertions applied to API
// responses: key presence on a sampled element, and loose decoding of that
// element into a typed record for display.
package shape

import (
	"fmt"
	"unicode/utf8"

	"github.com/go-viper/mapstructure/v2"
)

// MissingKeys returns the keys absent from obj, in the order they were asked for.
// A key whose value is JSON null counts as present.
func MissingKeys(obj map[string]any, keys ...string) []string {
	var missing []string
	for _, k := range keys {
		if _, ok := obj[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// FirstElement returns the first element of list when it is a JSON object.
func FirstElement(list []any) (map[string]any, bool) {
	if len(list) == 0 {
		return nil, false
	}
	obj, ok := list[0].(map[string]any)
	return obj, ok
}

// Decode copies obj into target (a pointer to a struct tagged with
// `mapstructure`). Types are converted loosely so a numeric id still lands in
// a string field.
func Decode(obj map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := dec.Decode(obj); err != nil {
		return fmt.Errorf("decoding record: %w", err)
	}
	return nil
}

// IDString renders an id value from a JSON document as a path segment.
// JSON numbers arrive as float64; integral ones are printed without a fraction.
func IDString(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		if id == float64(int64(id)) {
			return fmt.Sprintf("%d", int64(id)), true
		}
		return fmt.Sprintf("%g", id), true
	case nil:
		return "", false
	default:
		s := fmt.Sprintf("%v", id)
		return s, s != ""
	}
}

// Cut returns at most the first n runes of s.
func Cut(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// Truncate shortens s to at most n runes, appending "..." when it cut anything.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return Cut(s, n) + "..."
}
