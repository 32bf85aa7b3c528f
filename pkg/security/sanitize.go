package security

import (
	"html"
	"regexp"
	"strings"
	"unicode"
)

var (
	// Defense in depth only; every query in the repositories is parameterized.
	sqlInjectionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(union\s+select|insert\s+into|delete\s+from|drop\s+table|update\s+.*set)`),
		regexp.MustCompile(`(?i)(exec\s*\(|execute\s*\(|script\s*>|javascript:)`),
	}

	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?i)<iframe[^>]*>.*?</iframe>`),
		regexp.MustCompile(`(?i)on\w+\s*=`), // onclick, onload, etc.
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)<embed[^>]*>`),
		regexp.MustCompile(`(?i)<object[^>]*>`),
	}

	htmlTagsRegex      = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex    = regexp.MustCompile(`\s+`)
	validFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)
)

// SanitizeString trims whitespace and strips null bytes and control
// characters from input.
func SanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return removeControlCharacters(input)
}

// SanitizeForXSS removes XSS attack vectors and HTML-encodes the result.
func SanitizeForXSS(input string) string {
	input = SanitizeString(input)
	for _, pattern := range xssPatterns {
		input = pattern.ReplaceAllString(input, "")
	}
	return html.EscapeString(input)
}

// SanitizeForSQL strips SQL injection patterns. Queries are parameterized
// everywhere; this only removes obvious payloads from logged values.
func SanitizeForSQL(input string) string {
	input = SanitizeString(input)
	for _, pattern := range sqlInjectionPatterns {
		if pattern.MatchString(input) {
			input = pattern.ReplaceAllString(input, "")
		}
	}
	return input
}

// SanitizeInput runs the full pipeline over one value. A maxLength of 0
// means no truncation.
func SanitizeInput(input string, maxLength int) string {
	input = SanitizeString(input)
	input = SanitizeForXSS(input)
	input = SanitizeForSQL(input)
	input = NormalizeWhitespace(input)
	if maxLength > 0 {
		input = TruncateString(input, maxLength)
	}
	return input
}

// SanitizeFilename strips path separators and special characters so uploaded
// document names cannot escape the uploads directory.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "")
	filename = strings.ReplaceAll(filename, "\\", "")
	filename = strings.ReplaceAll(filename, "..", "")
	filename = validFilenameChars.ReplaceAllString(filename, "_")

	if len(filename) > 255 {
		filename = filename[:255]
	}
	return filename
}

// StripHTMLTags removes all HTML tags from input.
func StripHTMLTags(input string) string {
	return htmlTagsRegex.ReplaceAllString(input, "")
}

// NormalizeWhitespace collapses runs of whitespace into single spaces.
func NormalizeWhitespace(input string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(input, " "))
}

// TruncateString truncates a string to a maximum length.
func TruncateString(input string, maxLength int) string {
	if len(input) <= maxLength {
		return input
	}
	return input[:maxLength]
}

func removeControlCharacters(input string) string {
	var result strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) || r == '\n' || r == '\t' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
