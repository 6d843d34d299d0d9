// Package i18n localizes the user-facing messages of the sync service.
//
// Catalogs are gettext .po files embedded under locales/{lang}/LC_MESSAGES.
// Message ids are English; a language without a catalog gets them back
// unchanged.
package i18n

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "captionsync"

// Catalog translates messages for one language.
type Catalog struct {
	lang string
	po   *gotext.Locale
}

// New loads the catalog for lang. An empty lang is detected from the
// environment.
func New(lang string) *Catalog {
	if lang == "" {
		lang = detectLanguage()
	}
	lang = normalize(lang)

	po := gotext.NewLocaleFSWithPath(lang, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
	return &Catalog{lang: lang, po: po}
}

// Lang returns the catalog's language.
func (c *Catalog) Lang() string {
	if c == nil {
		return "en"
	}
	return c.lang
}

// T translates msgid and formats it with vars.
func (c *Catalog) T(msgid string, vars ...any) string {
	if c == nil || c.po == nil {
		return format(msgid, vars...)
	}
	return c.po.Get(msgid, vars...)
}

// N translates a message with plural forms.
func (c *Catalog) N(singular, plural string, n int, vars ...any) string {
	if c == nil || c.po == nil {
		if n == 1 {
			return format(singular, vars...)
		}
		return format(plural, vars...)
	}
	return c.po.GetN(singular, plural, n, vars...)
}

// SyncSummary describes the outcome of a sync pass.
func (c *Catalog) SyncSummary(synced, deleted, inserted int) string {
	var parts []string
	if synced > 0 {
		parts = append(parts, c.N("%d synced", "%d synced", synced, synced))
	}
	if deleted > 0 {
		parts = append(parts, c.N("%d deleted", "%d deleted", deleted, deleted))
	}
	if inserted > 0 {
		parts = append(parts, c.N("%d added", "%d added", inserted, inserted))
	}
	if len(parts) == 0 {
		return c.T("Sync complete")
	}
	return c.T("Sentences updated: %s", strings.Join(parts, c.T(", ")))
}

func format(s string, vars ...any) string {
	if len(vars) == 0 {
		return s
	}
	return fmt.Sprintf(s, vars...)
}

// normalize turns tags like "zh", "zh-CN" or "zh_CN.UTF-8" into the
// directory names used under locales/.
func normalize(lang string) string {
	if idx := strings.IndexByte(lang, '.'); idx >= 0 {
		lang = lang[:idx]
	}
	lang = strings.ReplaceAll(lang, "-", "_")
	parts := strings.SplitN(lang, "_", 2)
	base := strings.ToLower(parts[0])
	if len(parts) == 2 {
		return base + "_" + strings.ToUpper(parts[1])
	}
	if base == "zh" {
		return "zh_CN"
	}
	return base
}

// detectLanguage reads the locale environment variables in GNU gettext
// order: LANGUAGE, LC_ALL, LC_MESSAGES, LANG.
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if val := os.Getenv(env); val != "" {
			if env == "LANGUAGE" {
				val = strings.SplitN(val, ":", 2)[0]
			}
			if idx := strings.IndexByte(val, '.'); idx >= 0 {
				val = val[:idx]
			}
			if val == "C" || val == "POSIX" || val == "" {
				continue
			}
			return val
		}
	}
	return "en"
}
