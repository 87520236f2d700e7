package connector

import (
	perr "testharvest/internal/platform/errors"
)

// Error constructors shared by backends. All are fatal for the fetch call
// that raises them; none are retryable

// UnsupportedCategoryf reports a category a backend does not produce.
// Raised before any I/O
func UnsupportedCategoryf(backend, category string) error {
	return perr.WithField(
		perr.InvalidArgf("backend %s does not produce category %q", backend, category),
		"category",
	)
}

// MalformedResponsef reports a page payload that is not valid JSON or lacks
// the expected structure
func MalformedResponsef(cause error, format string, a ...any) error {
	if cause == nil {
		return perr.JSONErrf(format, a...)
	}
	return perr.Wrapf(cause, perr.ErrorCodeJSON, format, a...)
}

// MissingFieldf reports a record lacking a field metadata extraction needs
func MissingFieldf(field string) error {
	return perr.WithField(perr.Validationf("record missing required field %q", field), field)
}

// MalformedTimestampf reports a record timestamp that cannot be parsed
func MalformedTimestampf(field string, cause error) error {
	return perr.WithField(
		perr.Wrapf(cause, perr.ErrorCodeValidation, "record field %q is not a parseable timestamp", field),
		field,
	)
}
