package utils

import (
	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

var (
	// Bundle is the global translation bundle.
	Bundle *i18n.Bundle
	// Localizer is the default (English) localizer.
	Localizer *i18n.Localizer
)

// InitI18n loads the locale files. Missing files are logged, not fatal —
// untranslated IDs fall through to the message ID.
func InitI18n() error {
	Bundle = i18n.NewBundle(language.English)
	Bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	if _, err := Bundle.LoadMessageFile("locales/active.en.toml"); err != nil {
		Log.Warnf("Failed to load English locale: %v", err)
	}
	if _, err := Bundle.LoadMessageFile("locales/active.ru.toml"); err != nil {
		Log.Warnf("Failed to load Russian locale: %v", err)
	}

	Localizer = i18n.NewLocalizer(Bundle, language.English.String())
	return nil
}

// GetLocalizer returns a localizer for the given language tag.
func GetLocalizer(lang string) *i18n.Localizer {
	if lang == "" {
		lang = "en"
	}
	return i18n.NewLocalizer(Bundle, lang)
}

// T translates a message ID, falling back to the ID itself.
func T(localizer *i18n.Localizer, messageID string) string {
	if localizer == nil {
		return messageID
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return messageID
	}
	return msg
}
