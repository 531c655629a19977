package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

var (
	bundle        *i18n.Bundle
	supported     []language.Tag
	matcher       language.Matcher
	defaultLocale = "en"
	initOnce      sync.Once
)

type ctxKey struct{}

// Init loads all locale files and sets the default locale. It is safe to
// call more than once; only the first call loads the bundle.
func Init(defLocale string) {
	if defLocale != "" {
		defaultLocale = defLocale
	}
	initOnce.Do(load)
}

func load() {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		panic("i18n: read locales dir: " + err.Error())
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile("locales/" + e.Name())
		if err != nil {
			panic("i18n: read " + e.Name() + ": " + err.Error())
		}
		bundle.MustParseMessageFileBytes(data, e.Name())
	}
	supported = bundle.LanguageTags()
	matcher = language.NewMatcher(supported)
	slog.Debug("i18n: loaded locale files", "count", len(entries), "default", defaultLocale)
}

// WithLocale returns a new context carrying the given locale string (e.g. "vi", "en").
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, ctxKey{}, locale)
}

// LocaleFromContext extracts the locale from the context.
// Returns the configured default locale if not set.
func LocaleFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return defaultLocale
}

// Match picks the best supported locale for an Accept-Language header.
func Match(acceptLanguage string) string {
	initOnce.Do(load)
	if acceptLanguage == "" {
		return defaultLocale
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return defaultLocale
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return defaultLocale
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// T translates a message ID using the locale from the context.
// Optional templateData provides values for template placeholders.
func T(ctx context.Context, messageID string, templateData ...map[string]any) string {
	return translate(LocaleFromContext(ctx), messageID, templateData...)
}

// Default translates a message ID in the default locale. Audit entries use
// it so their text does not depend on who triggered them.
func Default(messageID string, templateData ...map[string]any) string {
	return translate(defaultLocale, messageID, templateData...)
}

func translate(lang, messageID string, templateData ...map[string]any) string {
	initOnce.Do(load)
	l := i18n.NewLocalizer(bundle, lang)

	cfg := &i18n.LocalizeConfig{MessageID: messageID}
	if len(templateData) > 0 && templateData[0] != nil {
		cfg.TemplateData = templateData[0]
	}

	msg, err := l.Localize(cfg)
	if err != nil {
		return messageID
	}
	return msg
}
