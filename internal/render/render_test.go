package render

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/easypark/notification-service/internal/domain"
)

func TestRender(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		data    map[string]any
		want    string
	}{
		{
			name:    "plain string substitution",
			pattern: "Your spot at {parking_name} is ready.",
			data:    map[string]any{"parking_name": "Centro"},
			want:    "Your spot at Centro is ready.",
		},
		{
			name:    "currency tag formats two decimals",
			pattern: "Total: {price:currency}",
			data:    map[string]any{"price": 15.0},
			want:    "Total: 15.00",
		},
		{
			name:    "currency tag on integer value",
			pattern: "Total: {price:currency}",
			data:    map[string]any{"price": 7},
			want:    "Total: 7.00",
		},
		{
			name:    "currency tag on json.Number",
			pattern: "{price:currency}",
			data:    map[string]any{"price": json.Number("15.5")},
			want:    "15.50",
		},
		{
			name:    "whole json float renders without trailing zeros",
			pattern: "Spot {spot_number}",
			data:    map[string]any{"spot_number": 15.0},
			want:    "Spot 15",
		},
		{
			name:    "repeated placeholder",
			pattern: "{name} and {name}",
			data:    map[string]any{"name": "Ana"},
			want:    "Ana and Ana",
		},
		{
			name:    "pattern without placeholders passes through",
			pattern: "No variables here.",
			data:    nil,
			want:    "No variables here.",
		},
		{
			name:    "unknown brace content is left untouched",
			pattern: "literal {not a placeholder}",
			data:    nil,
			want:    "literal {not a placeholder}",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Render(tt.pattern, tt.data)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	t.Parallel()

	pattern := "Hi {user}, your spot at {parking_name} costs {price:currency}."
	data := map[string]any{"user": "Ana", "parking_name": "Centro", "price": 12.5}

	first, err := Render(pattern, data)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Render(pattern, data)
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		if again != first {
			t.Fatalf("Render() = %q on run %d, want %q", again, i, first)
		}
	}
}

func TestRenderMissingVariable(t *testing.T) {
	t.Parallel()

	_, err := Render("Hello {name}", map[string]any{"other": "x"})
	if !errors.Is(err, domain.ErrMissingVariable) {
		t.Fatalf("Render() error = %v, want ErrMissingVariable", err)
	}
}

func TestRenderCurrencyOnNonNumericValue(t *testing.T) {
	t.Parallel()

	_, err := Render("Total: {price:currency}", map[string]any{"price": "fifteen"})
	if !errors.Is(err, domain.ErrMissingVariable) {
		t.Fatalf("Render() error = %v, want ErrMissingVariable", err)
	}
}

func TestPlaceholders(t *testing.T) {
	t.Parallel()

	got := Placeholders("{b} then {a:currency} then {b} again")
	want := []string{"b", "a"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Placeholders() = %v, want %v", got, want)
	}

	if n := len(Placeholders("nothing here")); n != 0 {
		t.Fatalf("Placeholders() on plain text returned %d names", n)
	}
}
