// Package phone normalizes user-entered contact numbers to a canonical
// "+digits" form so the denormalized client_phone column matches across
// intake, admin search, and the WhatsApp identity space.
package phone

import (
	"strings"
	"unicode"

	pkgerrors "github.com/paquetebot/paquetebot-backend/pkg/errors"
)

const minDigits = 9

// Normalize strips formatting and returns the canonical "+digits" form.
// Inputs with fewer than nine digits are rejected.
func Normalize(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() < minDigits {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone must contain at least nine digits")
	}
	return "+" + digits.String(), nil
}
