package params

import (
	"strings"
	"unicode/utf8"
)

// Prompt length rules enforced by ValidatePrompt.
const (
	MinPromptChars    = 10
	StrictPromptChars = 2000
)

// Validation messages shown next to the prompt box.
const (
	MsgPromptEmpty    = "El prompt no puede estar vacío"
	MsgPromptTooShort = "El prompt debe tener al menos 10 caracteres"
	MsgPromptTooLong  = "El prompt no debe exceder 2000 caracteres"
	MsgPromptValid    = "Prompt válido"
)

// ValidatePrompt is the strict validator behind the live form hint. Unlike
// Sanitize it does not repair anything.
func ValidatePrompt(prompt string) (bool, string) {
	if strings.TrimSpace(prompt) == "" {
		return false, MsgPromptEmpty
	}
	n := utf8.RuneCountInString(prompt)
	if n < MinPromptChars {
		return false, MsgPromptTooShort
	}
	if n > StrictPromptChars {
		return false, MsgPromptTooLong
	}
	return true, MsgPromptValid
}
