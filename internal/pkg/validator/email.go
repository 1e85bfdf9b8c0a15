package validator

import (
	"regexp"
	"strings"

	"traction/internal/pkg/errors"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

var emailTypes = map[string]bool{
	"work":     true,
	"personal": true,
	"other":    true,
}

func ValidateEmail(email string) error {
	if email == "" {
		return errors.Validation("email", "email is required")
	}
	if !emailPattern.MatchString(email) {
		return errors.Validation("email", "invalid email format")
	}
	return nil
}

func ValidateEmailType(emailType string) error {
	if !emailTypes[emailType] {
		return errors.Validation("email_type", "must be one of: work, personal, other")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address so per-contact uniqueness
// is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
