package domain

import "errors"

// The two error kinds callers are expected to branch on with errors.Is.
// Everything else that escapes the services is an unclassified fault.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrBusinessRule = errors.New("business rule violation")
)
