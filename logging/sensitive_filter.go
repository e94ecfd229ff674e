package logging

import (
	"regexp"
	"strings"
)

// RedactedPlaceholder is the string used to replace sensitive data
const RedactedPlaceholder = "[REDACTED]"

// sensitivePatterns match credentials embedded in free text such as error
// messages echoed back by an API.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(hf_[a-zA-Z0-9]{20,})`),                // Hugging Face tokens
	regexp.MustCompile(`(sk-[a-zA-Z0-9_-]{20,})`),              // OpenAI keys, incl. sk-proj-
	regexp.MustCompile(`(?i)(bearer\s+[a-zA-Z0-9._-]{20,})`),   // Authorization headers
	regexp.MustCompile(`(\$2[aby]\$\d{2}\$[./A-Za-z0-9]{53})`), // bcrypt hashes
	regexp.MustCompile(`(?i)(password\s*[:=]\s*[^\s,;]{6,})`),
	regexp.MustCompile(`(?i)(token\s*[:=]\s*[^\s,;]{8,})`),
	regexp.MustCompile(`(?i)(api_?key\s*[:=]\s*[^\s,;]{8,})`),
}

// sensitiveKeyParts mark a field or env var name as holding a secret.
var sensitiveKeyParts = []string{
	"HF_TOKEN",
	"OPENAI_API_KEY",
	"WEBUI_PASSWORD",
	"PASSWORD",
	"SECRET",
	"TOKEN",
	"API_KEY",
	"APIKEY",
	"AUTHORIZATION",
	"COOKIE",
}

// RedactSensitiveData replaces every credential-looking substring of value.
//
// Example:
//
//	RedactSensitiveData("401: invalid token hf_abcdefghijklmnopqrstuv")
//	// "401: invalid token [REDACTED]"
func RedactSensitiveData(value string) string {
	if value == "" {
		return value
	}

	result := value
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllString(result, RedactedPlaceholder)
	}
	return result
}

// RedactField redacts fieldValue entirely if fieldName names a secret,
// otherwise scans the value.
func RedactField(fieldName, fieldValue string) string {
	if IsSensitiveField(fieldName) {
		return RedactedPlaceholder
	}
	return RedactSensitiveData(fieldValue)
}

// IsSensitiveField returns true if the field name indicates sensitive data.
//
//	IsSensitiveField("hf_token")  // true
//	IsSensitiveField("prompt")    // false
func IsSensitiveField(fieldName string) bool {
	upperName := strings.ToUpper(fieldName)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(upperName, part) {
			return true
		}
	}
	return false
}

// ContainsSensitiveData returns true if the value matches any credential pattern.
func ContainsSensitiveData(value string) bool {
	if value == "" {
		return false
	}
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}
