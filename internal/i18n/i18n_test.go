package i18n

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatch(t *testing.T) {
	Init("en")

	assert.Equal(t, "vi", Match("vi-VN,vi;q=0.9,en;q=0.5"))
	assert.Equal(t, "en", Match("en-US"))
	assert.Equal(t, "en", Match("fr-FR"))
	assert.Equal(t, "en", Match(""))
	assert.Equal(t, "en", Match(";;;"))
}

func TestTranslate(t *testing.T) {
	Init("en")

	ctx := WithLocale(context.Background(), "vi")
	assert.Equal(t, "vi", LocaleFromContext(ctx))
	assert.Equal(t, "en", LocaleFromContext(context.Background()))

	got := T(ctx, "error.cooldown_active", map[string]any{"remainingMinutes": 60})
	assert.Contains(t, got, "60")
	assert.Contains(t, got, "phút")

	got = Default("error.cooldown_active", map[string]any{"remainingMinutes": 60})
	assert.Equal(t, "Please wait 60 more min before the next break.", got)
}

func TestUnknownMessageFallsBackToID(t *testing.T) {
	Init("en")
	assert.Equal(t, "no.such.message", T(context.Background(), "no.such.message"))
}
