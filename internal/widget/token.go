// Package widget parses and serializes the machine-readable reference tokens
// embedded inline in page content. A token is the literal text
// {{WIDGET_<KIND>:<id>}}; the surrounding rich text treats it as an opaque
// substring, and resolution to rendered content happens elsewhere.
package widget

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Kind enumerates the widget reference vocabulary. Values are case-sensitive
// and fixed by the content-model wire grammar.
type Kind string

const (
	// KindTier references a tier catalog entry.
	KindTier Kind = "TIER"
	// KindImage references an image catalog entry.
	KindImage Kind = "IMAGE"
	// KindButtons references a button-group catalog entry.
	KindButtons Kind = "BUTTONS"
)

// ErrUnknownKind indicates a kind outside the fixed vocabulary.
var ErrUnknownKind = errors.New("widget: unknown kind")

// ParseKind validates raw input against the fixed vocabulary.
func ParseKind(rawInput string) (Kind, error) {
	switch Kind(rawInput) {
	case KindTier, KindImage, KindButtons:
		return Kind(rawInput), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, rawInput)
	}
}

// Token is a typed reference to a catalog entry, embedded in page content.
type Token struct {
	Kind     Kind  `json:"kind"`
	TargetID int64 `json:"target_id"`
}

// Render serializes the token in its wire form. The form round-trips exactly
// through Scan.
func (t Token) Render() string {
	return fmt.Sprintf("{{WIDGET_%s:%d}}", t.Kind, t.TargetID)
}

const paragraphSeparator = "\n\n"

// Insert appends the rendered token plus a paragraph separator to the end of
// the content. Existing token occurrences are never touched.
func Insert(content string, token Token) string {
	return content + token.Render() + paragraphSeparator
}

var tokenPattern = regexp.MustCompile(`\{\{WIDGET_(TIER|IMAGE|BUTTONS):([0-9]+)\}\}`)

// Scan recovers all embedded tokens from the content, in document order.
// Text that merely resembles a token without matching the grammar is ignored.
func Scan(content string) []Token {
	matches := tokenPattern.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	tokens := make([]Token, 0, len(matches))
	for _, match := range matches {
		targetID, err := strconv.ParseInt(match[2], 10, 64)
		if err != nil {
			continue
		}
		tokens = append(tokens, Token{Kind: Kind(match[1]), TargetID: targetID})
	}
	return tokens
}
