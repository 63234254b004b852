package membership

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Ilkhomjon13/YN2/internal/domain"
)

type fakeAPI struct {
	status  string
	err     error
	lastCfg tgbotapi.GetChatMemberConfig
}

func (f *fakeAPI) GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.lastCfg = cfg
	if f.err != nil {
		return tgbotapi.ChatMember{}, f.err
	}
	return tgbotapi.ChatMember{Status: f.status}, nil
}

func mustRef(t *testing.T, raw string) domain.ChannelRef {
	t.Helper()
	ref, err := domain.ParseChannelRef(raw)
	if err != nil {
		t.Fatalf("не удалось разобрать %q: %v", raw, err)
	}
	return ref
}

func TestIsMemberAllowedStatuses(t *testing.T) {
	cases := map[string]bool{
		"member":        true,
		"administrator": true,
		"creator":       true,
		"restricted":    false,
		"left":          false,
		"kicked":        false,
	}
	for status, expected := range cases {
		api := &fakeAPI{status: status}
		v := NewVerifier(api, zerolog.Nop())
		got := v.IsMember(context.Background(), 42, mustRef(t, "@req1"))
		if got != expected {
			t.Fatalf("статус %s: ожидали %v, получили %v", status, expected, got)
		}
	}
}

func TestIsMemberFailClosedOnError(t *testing.T) {
	api := &fakeAPI{err: errors.New("bad gateway")}
	v := NewVerifier(api, zerolog.Nop())
	if v.IsMember(context.Background(), 42, mustRef(t, "@req1")) {
		t.Fatal("ошибка проверки должна означать «не участник»")
	}
}

func TestIsMemberByHandleAndChatID(t *testing.T) {
	api := &fakeAPI{status: "member"}
	v := NewVerifier(api, zerolog.Nop())

	v.IsMember(context.Background(), 42, mustRef(t, "@req1"))
	if api.lastCfg.SuperGroupUsername != "@req1" {
		t.Fatalf("ожидали запрос по алиасу, получили %+v", api.lastCfg)
	}

	v.IsMember(context.Background(), 42, mustRef(t, "-1001234567890"))
	if api.lastCfg.ChatID != -1001234567890 {
		t.Fatalf("ожидали запрос по chat id, получили %+v", api.lastCfg)
	}
}

func TestIsMemberInvalidRefFailClosed(t *testing.T) {
	api := &fakeAPI{status: "member"}
	v := NewVerifier(api, zerolog.Nop())
	ref := domain.ParseStoredChannelRef("https://t.me/myChannel/123")
	if v.IsMember(context.Background(), 42, ref) {
		t.Fatal("ненормализуемая ссылка должна проверяться fail-closed")
	}
	if api.lastCfg.UserID != 0 {
		t.Fatal("для Invalid-ссылки запрос к API выполняться не должен")
	}
}

func TestIsMemberInviteURLFailClosed(t *testing.T) {
	api := &fakeAPI{status: "member"}
	v := NewVerifier(api, zerolog.Nop())
	if v.IsMember(context.Background(), 42, mustRef(t, "https://t.me/+AbCdEf")) {
		t.Fatal("членство по инвайт-ссылке подтвердить нельзя")
	}
}
