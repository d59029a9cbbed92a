package validators

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	pkgerrors "github.com/angelmondragon/tradepost-backend/pkg/errors"
)

// SanitizeText trims input and drops control characters other than newline
// and tab. Text longer than maxLen runes is rejected, never shortened.
// maxLen <= 0 means no limit.
func SanitizeText(field, input string, maxLen int) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	if maxLen > 0 && utf8.RuneCountInString(cleaned) > maxLen {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s must be at most %d characters", field, maxLen)).
			WithDetails(map[string]any{"field": field, "max_length": maxLen})
	}
	return cleaned, nil
}
