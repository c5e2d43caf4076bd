package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

var (
	// Supports E.164 and bare national formats.
	phoneRegex = regexp.MustCompile(`^(\+?[1-9]\d{0,14}|\d{10,15})$`)

	// Allows letters, spaces, hyphens, apostrophes.
	nameRegex = regexp.MustCompile(`^[\p{L}\s\-'\.]{2,100}$`)
)

// ValidatePhoneNumber validates phone number format.
func ValidatePhoneNumber(phone string) error {
	if phone == "" {
		return fmt.Errorf("phone number cannot be empty")
	}

	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, phone)

	if !phoneRegex.MatchString(cleaned) {
		return fmt.Errorf("invalid phone number format: %s", phone)
	}
	return nil
}

// ValidateEmail validates email format.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("invalid email format: %w", err)
	}
	if len(email) > 255 {
		return fmt.Errorf("email too long (max 255 characters)")
	}
	return nil
}

// ValidatePersonName validates a student or guardian name.
func ValidatePersonName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid name: %s", name)
	}
	return nil
}

// ValidateDuration validates call duration in seconds.
func ValidateDuration(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("duration cannot be negative")
	}
	// 24h cap guards against garbage webhook payloads
	if seconds > 86400 {
		return fmt.Errorf("duration exceeds maximum (86400s)")
	}
	return nil
}
