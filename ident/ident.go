// Package ident validates product identity fields (barcode, name, size)
// before any network or extraction work is attempted. All predicates are
// pure and total: they never touch the database or the wire.
package ident

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// MaxCodeLen bounds barcode length. EAN-13/UPC-A fit comfortably;
	// the slack covers internal codes and GS1-128 payloads.
	MaxCodeLen = 64
	// MaxNameLen bounds the product display name.
	MaxNameLen = 100
	// MaxSizeLen bounds the container size/weight string.
	MaxSizeLen = 50
)

// ErrInvalidInput is wrapped by CheckProductInput for every rejection.
var ErrInvalidInput = errors.New("ident: invalid input")

// ValidCode reports whether code is a well-formed barcode: 1-64 characters,
// alphanumeric plus underscore and hyphen.
func ValidCode(code string) bool {
	if len(code) == 0 || len(code) > MaxCodeLen {
		return false
	}
	for _, r := range code {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// ValidName reports whether name is non-blank after trimming and at most
// MaxNameLen characters.
func ValidName(name string) bool {
	trimmed := strings.TrimSpace(name)
	return trimmed != "" && len(name) <= MaxNameLen
}

// ValidSize reports whether size is non-blank after trimming and at most
// MaxSizeLen characters.
func ValidSize(size string) bool {
	trimmed := strings.TrimSpace(size)
	return trimmed != "" && len(size) <= MaxSizeLen
}

// CheckProductInput validates all three identity fields and returns a
// wrapped ErrInvalidInput naming the first failing field. Callers surface
// this as a client error and must not reach network code on failure.
func CheckProductInput(code, name, size string) error {
	if !ValidCode(code) {
		return fmt.Errorf("%w: barcode must be 1-%d alphanumeric/underscore/hyphen characters", ErrInvalidInput, MaxCodeLen)
	}
	if !ValidName(name) {
		return fmt.Errorf("%w: name must be non-blank and at most %d characters", ErrInvalidInput, MaxNameLen)
	}
	if !ValidSize(size) {
		return fmt.Errorf("%w: size must be non-blank and at most %d characters", ErrInvalidInput, MaxSizeLen)
	}
	return nil
}
