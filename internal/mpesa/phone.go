package mpesa

import (
	"fmt"
	"strings"
)

// NormalizePhone strips formatting and rewrites local 07/01 numbers to the 254 country prefix.
func NormalizePhone(phone string) (string, error) {
	p := strings.NewReplacer("+", "", " ", "", "-", "").Replace(strings.TrimSpace(phone))
	if strings.HasPrefix(p, "0") && len(p) == 10 {
		p = "254" + p[1:]
	}
	if len(p) < 10 || len(p) > 12 {
		return "", fmt.Errorf("%w: %q must have 10 to 12 digits", ErrInvalidPhone, phone)
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: %q contains non-digit characters", ErrInvalidPhone, phone)
		}
	}
	return p, nil
}
