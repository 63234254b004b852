package domain

import (
	"strconv"
	"strings"
)

// ChannelRefKind различает формы ссылки на канал.
type ChannelRefKind int

const (
	// ChannelRefInvalid — ссылка, которую не удалось нормализовать.
	// Проверка членства по ней всегда отвечает «не участник».
	ChannelRefInvalid ChannelRefKind = iota
	// ChannelRefHandle — публичный алиас вида @channel.
	ChannelRefHandle
	// ChannelRefInviteURL — инвайт-ссылка, не сводимая к алиасу (t.me/+hash).
	ChannelRefInviteURL
	// ChannelRefChatID — числовой идентификатор приватного чата.
	ChannelRefChatID
)

// ChannelRef — нормализованная ссылка на обязательный канал.
// Разбор выполняется один раз при вводе, проверка членства не перечитывает текст.
type ChannelRef struct {
	Kind   ChannelRefKind
	Handle string
	URL    string
	ChatID int64
}

const tmePrefix = "https://t.me/"

// ParseChannelRef нормализует пользовательский ввод: @alias, https://t.me/alias
// или числовой id чата. URL с внутренним путём (t.me/alias/123) нормализации
// не поддаётся и отклоняется.
func ParseChannelRef(raw string) (ChannelRef, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return ChannelRef{}, ErrChannelRefInvalid
	}

	if id, err := strconv.ParseInt(v, 10, 64); err == nil && len(strings.TrimPrefix(v, "-")) > 3 {
		return ChannelRef{Kind: ChannelRefChatID, ChatID: id}, nil
	}

	if strings.HasPrefix(v, tmePrefix) {
		path := strings.TrimPrefix(v, tmePrefix)
		if path == "" || strings.Contains(path, "/") {
			return ChannelRef{}, ErrChannelRefInvalid
		}
		if strings.HasPrefix(path, "+") {
			return ChannelRef{Kind: ChannelRefInviteURL, URL: v}, nil
		}
		return ChannelRef{Kind: ChannelRefHandle, Handle: "@" + path}, nil
	}

	if strings.ContainsAny(v, "/ ") {
		return ChannelRef{}, ErrChannelRefInvalid
	}
	if strings.HasPrefix(v, "@") {
		if len(v) == 1 {
			return ChannelRef{}, ErrChannelRefInvalid
		}
		return ChannelRef{Kind: ChannelRefHandle, Handle: v}, nil
	}
	return ChannelRef{Kind: ChannelRefHandle, Handle: "@" + v}, nil
}

// ParseStoredChannelRef разбирает значение из хранилища. Нечитаемые записи
// превращаются в ChannelRefInvalid вместо ошибки: проверка по ним fail-closed.
func ParseStoredChannelRef(raw string) ChannelRef {
	ref, err := ParseChannelRef(raw)
	if err != nil {
		return ChannelRef{Kind: ChannelRefInvalid, URL: strings.TrimSpace(raw)}
	}
	return ref
}

// String возвращает каноничную строковую форму для хранения и вывода.
func (r ChannelRef) String() string {
	switch r.Kind {
	case ChannelRefHandle:
		return r.Handle
	case ChannelRefInviteURL:
		return r.URL
	case ChannelRefChatID:
		return strconv.FormatInt(r.ChatID, 10)
	default:
		return r.URL
	}
}

// JoinURL возвращает ссылку для кнопки «подписаться».
// Для приватных чатов по числовому id внешней ссылки нет.
func (r ChannelRef) JoinURL() string {
	switch r.Kind {
	case ChannelRefHandle:
		return tmePrefix + strings.TrimPrefix(r.Handle, "@")
	case ChannelRefInviteURL:
		return r.URL
	default:
		return ""
	}
}
