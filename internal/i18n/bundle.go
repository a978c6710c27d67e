// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package i18n holds the localized messages shown by the status page and
// the terminal client.
package i18n

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Bundle is a set of catalogs with a fallback language.
type Bundle struct {
	fallback language.Tag
	tags     []language.Tag
	catalogs map[language.Tag]Catalog
	matcher  language.Matcher
}

// NewBundle returns a bundle of the given catalogs. The fallback catalog
// is used for unknown languages and for keys missing from a catalog; it
// must be present in catalogs.
func NewBundle(fallback language.Tag, catalogs map[language.Tag]Catalog) *Bundle {
	tags := []language.Tag{fallback}
	for tag := range catalogs {
		if tag != fallback {
			tags = append(tags, tag)
		}
	}
	// The fallback stays first; the matcher treats index 0 as the default.
	rest := tags[1:]
	sort.Slice(rest, func(i, j int) bool {
		return rest[i].String() < rest[j].String()
	})
	return &Bundle{
		fallback: fallback,
		tags:     tags,
		catalogs: catalogs,
		matcher:  language.NewMatcher(tags),
	}
}

// Languages returns the supported languages, fallback first.
func (b *Bundle) Languages() []language.Tag {
	return append([]language.Tag(nil), b.tags...)
}

// Match picks the supported language best matching the preferences, each
// of which may be an Accept-Language header value, a BCP 47 tag or a POSIX
// locale such as "de_DE.UTF-8". Empty preferences are skipped.
func (b *Bundle) Match(prefs ...string) language.Tag {
	var wanted []language.Tag
	for _, pref := range prefs {
		pref = normalizeLocale(pref)
		if pref == "" {
			continue
		}
		tags, _, err := language.ParseAcceptLanguage(pref)
		if err != nil {
			continue
		}
		wanted = append(wanted, tags...)
	}
	if len(wanted) == 0 {
		return b.fallback
	}
	_, index, confidence := b.matcher.Match(wanted...)
	if confidence == language.No {
		return b.fallback
	}
	return b.tags[index]
}

// Localizer returns the localizer for tag, which should be one returned by
// Match.
func (b *Bundle) Localizer(tag language.Tag) Localizer {
	primary, ok := b.catalogs[tag]
	if !ok {
		tag = b.fallback
		primary = b.catalogs[b.fallback]
	}
	return Localizer{
		tag:      tag,
		primary:  primary,
		fallback: b.catalogs[b.fallback],
	}
}

// Localizer renders messages in one language.
type Localizer struct {
	tag      language.Tag
	primary  Catalog
	fallback Catalog
}

// IsZero reports whether l is the zero Localizer, which knows no
// messages.
func (l Localizer) IsZero() bool {
	return l.primary == nil && l.fallback == nil
}

// Language returns the language of the localizer.
func (l Localizer) Language() language.Tag {
	return l.tag
}

// Message returns the text for key, formatted with args if any. A key
// missing from the language falls back to the fallback language, and
// then to the key itself.
func (l Localizer) Message(key Key, args ...any) string {
	text, ok := l.primary[key]
	if !ok {
		text, ok = l.fallback[key]
	}
	if !ok {
		text = string(key)
	}
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(text, args...)
}

// Messages returns every known message with fallbacks applied, keyed by
// message key.
func (l Localizer) Messages() map[string]string {
	out := make(map[string]string, len(l.fallback))
	for key, text := range l.fallback {
		out[string(key)] = text
	}
	for key, text := range l.primary {
		out[string(key)] = text
	}
	return out
}

// normalizeLocale turns a POSIX locale into something ParseAcceptLanguage
// understands. "C" and "POSIX" carry no language preference.
func normalizeLocale(locale string) string {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, ".@"); i >= 0 && !strings.ContainsAny(locale, ",;") {
		locale = locale[:i]
	}
	switch locale {
	case "C", "POSIX":
		return ""
	}
	return strings.ReplaceAll(locale, "_", "-")
}
