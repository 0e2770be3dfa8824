package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// validBranchNameChars matches valid characters for git branch names
var validBranchNameChars = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

// invalidBranchNameChars matches characters replaced with hyphens during
// sanitization: git-prohibited chars, shell metacharacters, and other
// problematic punctuation.
var invalidBranchNameChars = regexp.MustCompile(`[\s~^:?*\[\]\\{}#@()&|;<>$` + "`" + `'"]+`)

// consecutiveHyphens matches two or more consecutive hyphens
var consecutiveHyphens = regexp.MustCompile(`-{2,}`)

// ValidateBranchName checks if a branch name is valid according to git
// rules. Stricter than git-check-ref-format because branch names end up
// in shell commands.
func ValidateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "/") || strings.HasPrefix(name, "-") {
		return fmt.Errorf("branch name cannot start with '.', '/' or '-'")
	}
	if strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("branch name cannot end with '.lock'")
	}
	if strings.HasSuffix(name, ".") || strings.HasSuffix(name, "/") || strings.HasSuffix(name, "-") {
		return fmt.Errorf("branch name cannot end with '.', '/' or '-'")
	}
	if strings.Contains(name, "..") || strings.Contains(name, "//") || strings.Contains(name, "@{") {
		return fmt.Errorf("branch name cannot contain '..', '//' or '@{'")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("branch name cannot contain control characters")
		}
	}
	if !validBranchNameChars.MatchString(name) {
		return fmt.Errorf("branch name contains invalid characters (only alphanumeric, '.', '_', '-', '/' allowed)")
	}
	if name == "@" {
		return fmt.Errorf("branch name cannot be '@'")
	}
	return nil
}

// SanitizeBranchName transforms a display name into a valid git branch
// name. Returns an error if the result would be empty.
func SanitizeBranchName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("cannot sanitize empty string")
	}

	result := strings.ToLower(name)

	var builder strings.Builder
	for _, r := range result {
		if !unicode.IsControl(r) {
			builder.WriteRune(r)
		}
	}
	result = builder.String()

	result = invalidBranchNameChars.ReplaceAllString(result, "-")
	result = strings.ReplaceAll(result, "..", "-")
	result = strings.ReplaceAll(result, "//", "/")
	result = strings.TrimLeft(result, "./-")
	result = strings.TrimSuffix(result, ".lock")
	result = strings.TrimRight(result, "./-")
	result = consecutiveHyphens.ReplaceAllString(result, "-")

	if result == "" {
		return "", fmt.Errorf("sanitization resulted in empty branch name")
	}
	if result == "@" {
		return "", fmt.Errorf("sanitization resulted in invalid branch name '@'")
	}
	return result, nil
}
