package tcgplayer

import (
	"fmt"
	"strings"
)

// ValidateID checks that a TCGplayer identifier (category, group, product,
// SKU, or order ID) is a positive integer.
func ValidateID(id int, name string) error {
	if id <= 0 {
		return newValidationError(fmt.Sprintf("%s must be a positive integer, got %d", name, id))
	}

	return nil
}

// ValidateIDs checks that a batch of identifiers is non-empty and that every
// entry is a positive integer.
func ValidateIDs(ids []int, name string) error {
	if len(ids) == 0 {
		return newValidationError(fmt.Sprintf("%s must contain at least one ID", name))
	}

	for _, id := range ids {
		if err := ValidateID(id, name); err != nil {
			return err
		}
	}

	return nil
}

// ValidatePositiveInt checks that a numeric parameter is greater than zero.
func ValidatePositiveInt(value int, name string) error {
	if value <= 0 {
		return newValidationError(fmt.Sprintf("%s must be greater than zero, got %d", name, value))
	}

	return nil
}

// ValidateNonNegativeInt checks that a numeric parameter is zero or greater.
func ValidateNonNegativeInt(value int, name string) error {
	if value < 0 {
		return newValidationError(fmt.Sprintf("%s must not be negative, got %d", name, value))
	}

	return nil
}

// ValidateStringNotEmpty checks that a required string parameter carries a
// non-blank value.
func ValidateStringNotEmpty(value, name string) error {
	if strings.TrimSpace(value) == "" {
		return newValidationError(fmt.Sprintf("%s must not be empty", name))
	}

	return nil
}

func newValidationError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}
