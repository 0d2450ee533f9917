// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks identifiers that arrive from users or the
// network before they reach the fix store.
//
// Fix ids are used as Badger key suffixes and contributor ids become part
// of vote keys, so both are restricted to a small alphabet.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// fixIDPattern matches a content-derived fix id: 32 lowercase hex chars.
var fixIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// contributorIDPattern allows ids such as UUIDs, emails and node names.
var contributorIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@:+\-]{0,255}$`)

// ValidateFixID validates a fix id.
//
// Valid ids are exactly 32 lowercase hexadecimal characters.
//
// Example:
//
//	if err := validation.ValidateFixID(id); err != nil {
//	    return usageError{msg: err.Error()}
//	}
func ValidateFixID(id string) error {
	if id == "" {
		return fmt.Errorf("fix id cannot be empty")
	}
	if !fixIDPattern.MatchString(id) {
		return fmt.Errorf("invalid fix id: %q (must be 32 lowercase hex chars)", id)
	}
	return nil
}

// SanitizeFixID trims and lowercases id, then validates it.
func SanitizeFixID(id string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(id))
	if err := ValidateFixID(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateContributorID validates a contributor id. Empty is allowed and
// means an anonymous report.
func ValidateContributorID(id string) error {
	if id == "" {
		return nil
	}
	if !contributorIDPattern.MatchString(id) {
		return fmt.Errorf("invalid contributor id: %q (1-256 chars of letters, digits and ._@:+-)", id)
	}
	return nil
}
