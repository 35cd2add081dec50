package generation

import (
	"fmt"
	"strings"

	"github.com/hitoshi/astroline/internal/model"
)

// maxFieldLength はリクエストの各項目の最大文字数。
const maxFieldLength = 500

// DefaultStyle はartisticStyle未指定時の画風。
const DefaultStyle = "soft pencil sketch"

// FallbackInterpretation は解釈テキストの生成に失敗した場合に返すテキスト。
const FallbackInterpretation = "The stars are still whispering about this soulmate. Trust your intuition: the person in this sketch reflects the warmth and devotion you are ready to receive."

// Request はラブスケッチ生成のリクエスト。
type Request struct {
	PromptDescription string `json:"promptDescription"`
	PhysicalTraits    string `json:"physicalTraits"`
	PersonalityTraits string `json:"personalityTraits"`
	ArtisticStyle     string `json:"artisticStyle"`
	UserSign          string `json:"userSign"`
	UserElement       string `json:"userElement"`
}

// Normalize は前後の空白を除去し、各項目の長さを検証する。
func (r *Request) Normalize() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"promptDescription", &r.PromptDescription},
		{"physicalTraits", &r.PhysicalTraits},
		{"personalityTraits", &r.PersonalityTraits},
		{"artisticStyle", &r.ArtisticStyle},
		{"userSign", &r.UserSign},
		{"userElement", &r.UserElement},
	}
	for _, f := range fields {
		*f.value = strings.TrimSpace(*f.value)
		if len([]rune(*f.value)) > maxFieldLength {
			return model.NewInvalidRequestError(fmt.Sprintf("%s must be at most %d characters", f.name, maxFieldLength))
		}
	}
	if r.ArtisticStyle == "" {
		r.ArtisticStyle = DefaultStyle
	}
	return nil
}

// ImagePrompt は画像生成用のプロンプトを組み立てる。
func (r Request) ImagePrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "A %s portrait of a person's destined soulmate.", r.ArtisticStyle)
	if r.PromptDescription != "" {
		fmt.Fprintf(&b, " %s.", strings.TrimRight(r.PromptDescription, "."))
	}
	if r.PhysicalTraits != "" {
		fmt.Fprintf(&b, " Physical traits: %s.", strings.TrimRight(r.PhysicalTraits, "."))
	}
	if r.PersonalityTraits != "" {
		fmt.Fprintf(&b, " Their expression conveys: %s.", strings.TrimRight(r.PersonalityTraits, "."))
	}
	if r.UserSign != "" || r.UserElement != "" {
		fmt.Fprintf(&b, " Subtle celestial motifs inspired by %s.", joinNonEmpty(" and the element of ", r.UserSign, r.UserElement))
	}
	b.WriteString(" Head and shoulders, gentle lighting, no text or lettering.")
	return b.String()
}

// InterpretationPrompt は解釈テキスト生成用のプロンプトを組み立てる。
func (r Request) InterpretationPrompt() string {
	var b strings.Builder
	b.WriteString("Write a short astrological interpretation (3 to 5 sentences) of the soulmate in this love sketch.")
	if r.UserSign != "" {
		fmt.Fprintf(&b, " The seeker's sun sign is %s.", r.UserSign)
	}
	if r.UserElement != "" {
		fmt.Fprintf(&b, " Their element is %s.", r.UserElement)
	}
	if r.PersonalityTraits != "" {
		fmt.Fprintf(&b, " The soulmate's personality: %s.", strings.TrimRight(r.PersonalityTraits, "."))
	}
	if r.PhysicalTraits != "" {
		fmt.Fprintf(&b, " Their appearance: %s.", strings.TrimRight(r.PhysicalTraits, "."))
	}
	return b.String()
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
