// Package i18n holds the user-facing strings of the vote endpoint and widget
// in English and Russian, and picks one from an Accept-Language header.
package i18n

import (
	"fmt"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a translatable message.
type Key string

const (
	MsgGeneric         Key = "An error occurred. Please try again."
	MsgInvalidNonce    Key = "Your session has expired. Reload the page and try again."
	MsgInvalidVote     Key = "Vote value must be 1 or -1."
	MsgInvalidComment  Key = "Invalid comment id."
	MsgCommentNotFound Key = "Comment not found."
	MsgRateLimited     Key = "Too many votes. Slow down."
	MsgUnauthorized    Key = "Invalid credentials."
	MsgBadIdemKey      Key = "Invalid Idempotency-Key header."
	MsgIdemConflict    Key = "This Idempotency-Key was already used for a different vote."
	MsgRouteNotFound   Key = "Resource not found."
	MsgMethodNotAllow  Key = "Method not allowed."
	MsgUpvote          Key = "Upvote"
	MsgDownvote        Key = "Downvote"
	MsgScore           Key = "Score: %d"
	MsgVotes           Key = "%d votes"
)

// Supported lists the languages with a full translation, default first.
var Supported = []language.Tag{language.English, language.Russian}

var (
	cat     = build()
	matcher = language.NewMatcher(Supported)
)

// entry is one translation: a plain string or a plural selection.
type entry struct {
	tag language.Tag
	key Key
	msg catalog.Message
}

func str(tag language.Tag, k Key, s string) entry { return entry{tag, k, catalog.String(s)} }

// load adds entries to b, stopping at the first message that does not compile.
func load(b *catalog.Builder, entries []entry) error {
	for _, e := range entries {
		if err := b.Set(e.tag, string(e.key), e.msg); err != nil {
			return fmt.Errorf("i18n %s %q: %w", e.tag, e.key, err)
		}
	}
	return nil
}

func build() *catalog.Builder {
	var entries []entry
	for _, k := range []Key{
		MsgGeneric, MsgInvalidNonce, MsgInvalidVote, MsgInvalidComment,
		MsgCommentNotFound, MsgRateLimited, MsgUnauthorized, MsgBadIdemKey,
		MsgIdemConflict, MsgRouteNotFound, MsgMethodNotAllow, MsgUpvote,
		MsgDownvote, MsgScore,
	} {
		entries = append(entries, str(language.English, k, string(k)))
	}

	ru := language.Russian
	entries = append(entries,
		str(ru, MsgGeneric, "Произошла ошибка. Попробуйте еще раз."),
		str(ru, MsgInvalidNonce, "Сессия истекла. Обновите страницу и попробуйте еще раз."),
		str(ru, MsgInvalidVote, "Значение голоса должно быть 1 или -1."),
		str(ru, MsgInvalidComment, "Неверный идентификатор комментария."),
		str(ru, MsgCommentNotFound, "Комментарий не найден."),
		str(ru, MsgRateLimited, "Слишком много голосов. Подождите немного."),
		str(ru, MsgUnauthorized, "Неверные учетные данные."),
		str(ru, MsgBadIdemKey, "Неверный заголовок Idempotency-Key."),
		str(ru, MsgIdemConflict, "Этот Idempotency-Key уже использован для другого голоса."),
		str(ru, MsgRouteNotFound, "Ресурс не найден."),
		str(ru, MsgMethodNotAllow, "Метод не поддерживается."),
		str(ru, MsgUpvote, "Нравится"),
		str(ru, MsgDownvote, "Не нравится"),
		str(ru, MsgScore, "Рейтинг: %d"),

		entry{language.English, MsgVotes, plural.Selectf(1, "%d",
			plural.One, "%d vote",
			plural.Other, "%d votes",
		)},
		entry{ru, MsgVotes, plural.Selectf(1, "%d",
			plural.One, "%d голос",
			plural.Few, "%d голоса",
			plural.Many, "%d голосов",
			plural.Other, "%d голоса",
		)},
	)

	b := catalog.NewBuilder(catalog.Fallback(language.English))
	if err := load(b, entries); err != nil {
		panic(err)
	}
	return b
}

// Negotiate returns the supported language that best matches an
// Accept-Language header, or def when nothing matches.
func Negotiate(acceptLanguage string, def language.Tag) language.Tag {
	if acceptLanguage == "" {
		return def
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return def
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return def
	}
	return Supported[idx]
}

// Parse resolves a configured locale such as "ru" or "en-US" to a supported
// tag, falling back to English.
func Parse(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return Supported[idx]
}

// Printer returns a printer bound to the message catalog for tag.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(cat))
}

// T translates k for tag, formatting args into it.
func T(tag language.Tag, k Key, args ...any) string {
	return Printer(tag).Sprintf(string(k), args...)
}
