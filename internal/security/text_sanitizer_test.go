package security

import (
	"strings"
	"testing"
)

func TestTextSanitizer_StripsTags(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text", "Your soulmate is kind.", "Your soulmate is kind."},
		{"bold", "<b>Warm</b> eyes", "Warm eyes"},
		{"script removed with body", "Hi<script>alert(1)</script>", "Hi"},
		{"on attributes", `<p onclick="x()">Gentle</p>`, "Gentle"},
		{"apostrophe kept", "They're patient", "They're patient"},
		{"quotes kept", `A "true" romantic`, `A "true" romantic`},
		{"trimmed", "  \n Calm \n ", "Calm"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// 既にエスケープされたタグはタグとして復元されない
func TestTextSanitizer_DoesNotReintroduceMarkup(t *testing.T) {
	s := NewTextSanitizer()

	got := s.Sanitize("&lt;img src=x onerror=alert(1)&gt; & more")
	if strings.Contains(got, "<") || strings.Contains(got, ">") {
		t.Errorf("Sanitize reintroduced markup: %q", got)
	}
}

func TestTextSanitizer_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	input := "<i>Passionate</i> & devoted"

	once := s.Sanitize(input)
	if twice := s.Sanitize(once); twice != once {
		t.Errorf("Sanitize is not idempotent: %q -> %q", once, twice)
	}
}
