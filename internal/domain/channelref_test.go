package domain

import (
	"errors"
	"testing"
)

func TestParseChannelRefHandle(t *testing.T) {
	cases := map[string]string{
		"@myChannel":             "@myChannel",
		"myChannel":              "@myChannel",
		"https://t.me/myChannel": "@myChannel",
		"  @spaced  ":            "@spaced",
	}
	for input, expected := range cases {
		ref, err := ParseChannelRef(input)
		if err != nil {
			t.Fatalf("не ожидали ошибку для %q: %v", input, err)
		}
		if ref.Kind != ChannelRefHandle {
			t.Fatalf("ожидали Handle для %q, получили %v", input, ref.Kind)
		}
		if ref.String() != expected {
			t.Fatalf("ожидали %s, получили %s", expected, ref.String())
		}
	}
}

func TestParseChannelRefChatID(t *testing.T) {
	ref, err := ParseChannelRef("-1001234567890")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ref.Kind != ChannelRefChatID || ref.ChatID != -1001234567890 {
		t.Fatalf("некорректный разбор числового id: %+v", ref)
	}
	if ref.JoinURL() != "" {
		t.Fatalf("у приватного чата не должно быть ссылки для подписки")
	}
}

func TestParseChannelRefInviteURL(t *testing.T) {
	ref, err := ParseChannelRef("https://t.me/+AbCdEf123")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if ref.Kind != ChannelRefInviteURL {
		t.Fatalf("ожидали InviteURL, получили %v", ref.Kind)
	}
	if ref.JoinURL() != "https://t.me/+AbCdEf123" {
		t.Fatalf("инвайт-ссылка должна сохраняться как есть")
	}
}

func TestParseChannelRefRejectsPathSegments(t *testing.T) {
	for _, input := range []string{"https://t.me/myChannel/123", "https://t.me/", "", "@", "a b"} {
		if _, err := ParseChannelRef(input); !errors.Is(err, ErrChannelRefInvalid) {
			t.Fatalf("ожидали ErrChannelRefInvalid для %q, получили %v", input, err)
		}
	}
}

func TestParseStoredChannelRefFailClosed(t *testing.T) {
	ref := ParseStoredChannelRef("https://t.me/myChannel/123")
	if ref.Kind != ChannelRefInvalid {
		t.Fatalf("легаси-запись с путём должна становиться Invalid, получили %v", ref.Kind)
	}
}

func TestJoinURLFromHandle(t *testing.T) {
	ref, _ := ParseChannelRef("@req1")
	if ref.JoinURL() != "https://t.me/req1" {
		t.Fatalf("ожидали https://t.me/req1, получили %s", ref.JoinURL())
	}
}
