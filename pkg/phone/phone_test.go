package phone

import (
	"testing"

	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain international", "+34 600 000 000", "+34600000000"},
		{"dashes and parens", "(34) 600-000-000", "+34600000000"},
		{"already canonical", "+34600000000", "+34600000000"},
		{"local nine digits", "600000000", "+600000000"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.in)
			if err != nil {
				t.Fatalf("Normalize(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeRejectsShortInput(t *testing.T) {
	for _, in := range []string{"", "12345678", "hello", "+34 600"} {
		if _, err := Normalize(in); !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error for %q, got %v", in, err)
		}
	}
}
