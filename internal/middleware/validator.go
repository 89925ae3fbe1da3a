package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	userIDPattern   = regexp.MustCompile(`^[A-Za-z0-9_.:@-]{1,64}$`)
	targetIDPattern = regexp.MustCompile(`^[0-9]{1,20}$`)
)

// ValidateUserID checks the caller id supplied by the chat gateway.
func ValidateUserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("user ID cannot be empty")
	}
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("invalid user ID format (alphanumeric and _.:@- only, max 64 chars)")
	}
	return nil
}

// ValidateTargetID accepts numeric Roblox user, group and universe ids.
func ValidateTargetID(id string) error {
	if !targetIDPattern.MatchString(id) {
		return fmt.Errorf("invalid target ID %q (numeric Roblox id expected)", id)
	}
	return nil
}

// ValidateFileName rejects names that could escape an object key prefix.
func ValidateFileName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("file name too long")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("path traversal detected")
	}
	dangerous := []string{"$(", "`", "\x00", "\n", "\r"}
	for _, d := range dangerous {
		if strings.Contains(name, d) {
			return fmt.Errorf("invalid characters in file name")
		}
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}
