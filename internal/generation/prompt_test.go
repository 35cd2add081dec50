package generation

import (
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/astroline/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Normalize_DefaultsAndTrims(t *testing.T) {
	r := Request{PromptDescription: "  dreamy  ", UserSign: " Leo "}
	require.NoError(t, r.Normalize())

	assert.Equal(t, "dreamy", r.PromptDescription)
	assert.Equal(t, "Leo", r.UserSign)
	assert.Equal(t, DefaultStyle, r.ArtisticStyle)
}

func TestRequest_Normalize_TooLong(t *testing.T) {
	r := Request{PhysicalTraits: strings.Repeat("a", maxFieldLength+1)}

	err := r.Normalize()
	var apiErr *model.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, model.ErrCodeInvalidRequest, apiErr.Code)
	assert.Contains(t, apiErr.Message, "physicalTraits")
}

func TestRequest_ImagePrompt(t *testing.T) {
	r := Request{
		PromptDescription: "Someone I meet at a bookstore.",
		PhysicalTraits:    "curly hair, freckles",
		PersonalityTraits: "playful",
		ArtisticStyle:     "watercolor",
		UserSign:          "Pisces",
		UserElement:       "Water",
	}

	p := r.ImagePrompt()
	assert.Contains(t, p, "A watercolor portrait")
	assert.Contains(t, p, "Someone I meet at a bookstore.")
	assert.NotContains(t, p, "bookstore..")
	assert.Contains(t, p, "curly hair, freckles")
	assert.Contains(t, p, "Pisces and the element of Water")
	assert.Contains(t, p, "no text or lettering")
}

func TestRequest_ImagePrompt_OnlyElement(t *testing.T) {
	r := Request{ArtisticStyle: "charcoal", UserElement: "Fire"}
	assert.Contains(t, r.ImagePrompt(), "inspired by Fire.")
}

func TestRequest_InterpretationPrompt(t *testing.T) {
	r := Request{UserSign: "Aries", UserElement: "Fire", PersonalityTraits: "bold"}

	p := r.InterpretationPrompt()
	assert.Contains(t, p, "sun sign is Aries")
	assert.Contains(t, p, "element is Fire")
	assert.Contains(t, p, "personality: bold")
}
