package widget

import (
	"strings"
	"testing"
)

func TestInsertThenScanRoundTrips(t *testing.T) {
	tests := []struct {
		name    string
		content string
		token   Token
	}{
		{name: "tier-into-empty", content: "", token: Token{Kind: KindTier, TargetID: 7}},
		{name: "image-after-text", content: "Le armi del regno.", token: Token{Kind: KindImage, TargetID: 12}},
		{name: "buttons-after-token", content: "intro {{WIDGET_TIER:1}}\n\n", token: Token{Kind: KindButtons, TargetID: 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := Scan(tt.content)
			updated := Insert(tt.content, tt.token)

			if !strings.HasPrefix(updated, tt.content) {
				t.Fatalf("existing content must be untouched")
			}
			after := Scan(updated)
			if len(after) != len(before)+1 {
				t.Fatalf("expected exactly one new token, before %d after %d", len(before), len(after))
			}
			last := after[len(after)-1]
			if last != tt.token {
				t.Fatalf("round trip mismatch: inserted %+v, recovered %+v", tt.token, last)
			}
		})
	}
}

func TestScanRecoversTokensInDocumentOrder(t *testing.T) {
	content := "testo {{WIDGET_TIER:5}} altro {{WIDGET_IMAGE:2}} fine {{WIDGET_BUTTONS:9}}"

	tokens := Scan(content)

	want := []Token{
		{Kind: KindTier, TargetID: 5},
		{Kind: KindImage, TargetID: 2},
		{Kind: KindButtons, TargetID: 9},
	}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(tokens))
	}
	for i, token := range tokens {
		if token != want[i] {
			t.Fatalf("token %d: got %+v, want %+v", i, token, want[i])
		}
	}
}

func TestScanIgnoresMalformedTokens(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "lowercase-kind", content: "{{WIDGET_tier:5}}"},
		{name: "unknown-kind", content: "{{WIDGET_VIDEO:5}}"},
		{name: "missing-id", content: "{{WIDGET_TIER:}}"},
		{name: "non-numeric-id", content: "{{WIDGET_TIER:abc}}"},
		{name: "single-braces", content: "{WIDGET_TIER:5}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Scan(tt.content); len(got) != 0 {
				t.Fatalf("expected no tokens, got %v", got)
			}
		})
	}
}

func TestRenderMatchesWireGrammar(t *testing.T) {
	token := Token{Kind: KindTier, TargetID: 42}
	if got := token.Render(); got != "{{WIDGET_TIER:42}}" {
		t.Fatalf("unexpected wire form %q", got)
	}
}

func TestParseKindAcceptsOnlyFixedVocabulary(t *testing.T) {
	for _, valid := range []string{"TIER", "IMAGE", "BUTTONS"} {
		if _, err := ParseKind(valid); err != nil {
			t.Fatalf("expected %q to parse, got %v", valid, err)
		}
	}
	for _, invalid := range []string{"tier", "VIDEO", ""} {
		if _, err := ParseKind(invalid); err == nil {
			t.Fatalf("expected %q to be rejected", invalid)
		}
	}
}
