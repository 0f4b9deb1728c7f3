// Package render substitutes named placeholders in template patterns.
// Rendering is pure: identical (pattern, data) always yields identical output,
// and a placeholder with no matching value fails the whole render rather than
// leaking a literal {name} into user-facing text.
package render

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/easypark/notification-service/internal/domain"
)

// Placeholders are written {name} for the natural string form, or
// {name:currency} to force two decimal places on numeric values.
var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)(:currency)?\}`)

// Render substitutes every placeholder in pattern with the matching value from
// data. It returns domain.ErrMissingVariable when a referenced name is absent
// or a currency-tagged value is not numeric.
func Render(pattern string, data map[string]any) (string, error) {
	var renderErr error

	result := placeholderPattern.ReplaceAllStringFunc(pattern, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		name := groups[1]
		asCurrency := groups[2] != ""

		value, ok := data[name]
		if !ok {
			if renderErr == nil {
				renderErr = fmt.Errorf("%w: %q", domain.ErrMissingVariable, name)
			}
			return match
		}

		if asCurrency {
			amount, ok := numericValue(value)
			if !ok {
				if renderErr == nil {
					renderErr = fmt.Errorf("%w: %q is tagged currency but value %v is not numeric",
						domain.ErrMissingVariable, name, value)
				}
				return match
			}
			return strconv.FormatFloat(amount, 'f', 2, 64)
		}

		return naturalString(value)
	})

	if renderErr != nil {
		return "", renderErr
	}
	return result, nil
}

// Placeholders returns the placeholder names referenced by a pattern, in order
// of first appearance. Used to validate templates at write time.
func Placeholders(pattern string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(pattern, -1)
	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

func numericValue(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int32:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	}
	return 0, false
}

func naturalString(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		// JSON numbers decode to float64; render 15 as "15", not "15.000000".
		return strconv.FormatFloat(value, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(value)
	default:
		return fmt.Sprint(value)
	}
}
