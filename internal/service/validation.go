package service

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validation limits.
const (
	// MaxNameLength is the maximum length for first and last names.
	MaxNameLength = 100

	// MaxEmailLength is the maximum length for an email address.
	MaxEmailLength = 254

	// MaxCINumberLength is the maximum length for an identity card number.
	MaxCINumberLength = 32

	// MinPasswordLength is the minimum length for a new password.
	MinPasswordLength = 8

	// MaxPasswordLength bounds the work done by the password hasher.
	MaxPasswordLength = 128
)

// Validation errors. Each wraps ErrInvalidInput.
var (
	ErrEmailRequired    = fmt.Errorf("%w: email is required", ErrInvalidInput)
	ErrEmailInvalid     = fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	ErrEmailTooLong     = fmt.Errorf("%w: email exceeds maximum length", ErrInvalidInput)
	ErrNameTooLong      = fmt.Errorf("%w: name exceeds maximum length", ErrInvalidInput)
	ErrNameInvalid      = fmt.Errorf("%w: name contains control characters", ErrInvalidInput)
	ErrCINumberInvalid  = fmt.Errorf("%w: ci_number contains invalid characters", ErrInvalidInput)
	ErrCINumberTooLong  = fmt.Errorf("%w: ci_number exceeds maximum length", ErrInvalidInput)
	ErrPasswordRequired = fmt.Errorf("%w: password is required", ErrInvalidInput)
	ErrPasswordTooShort = fmt.Errorf("%w: password is too short", ErrInvalidInput)
	ErrPasswordTooLong  = fmt.Errorf("%w: password exceeds maximum length", ErrInvalidInput)
)

// validCINumberPattern matches identity card numbers.
// Allowed: digits, ASCII letters, dot, hyphen
var validCINumberPattern = regexp.MustCompile(`^[0-9A-Za-z.-]+$`)

// ValidateEmail validates an already-normalized email address.
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmailRequired
	}

	if len(email) > MaxEmailLength {
		return ErrEmailTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return ErrEmailInvalid
	}

	// Token segments and header values must stay single-line
	if strings.ContainsAny(email, " \t\r\n") {
		return ErrEmailInvalid
	}

	return nil
}

// ValidateName validates a first or last name. Empty is allowed.
func ValidateName(name string) error {
	if utf8.RuneCountInString(name) > MaxNameLength {
		return ErrNameTooLong
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return ErrNameInvalid
		}
	}

	return nil
}

// ValidateCINumber validates an identity card number. Empty is allowed.
func ValidateCINumber(ci string) error {
	if ci == "" {
		return nil
	}

	if len(ci) > MaxCINumberLength {
		return ErrCINumberTooLong
	}

	if !validCINumberPattern.MatchString(ci) {
		return ErrCINumberInvalid
	}

	return nil
}

// ValidatePassword validates a new plaintext password.
func ValidatePassword(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}

	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if n > MaxPasswordLength {
		return ErrPasswordTooLong
	}

	return nil
}

// validateProfile runs the field validators shared by create and update.
func validateProfile(firstName, lastName, ciNumber, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	if err := ValidateName(firstName); err != nil {
		return err
	}
	if err := ValidateName(lastName); err != nil {
		return err
	}
	return ValidateCINumber(ciNumber)
}

// IsValidationError reports whether err is an input validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
