package bot

import (
	"strings"
	"testing"

	"github.com/Ilkhomjon13/YN2/internal/domain"
)

func TestParseToken(t *testing.T) {
	cases := []struct {
		data string
		verb string
		id   int64
		ok   bool
	}{
		{"open_7", "open", 7, true},
		{"vote_42", "vote", 42, true},
		{"recheck_3", "recheck", 3, true},
		{"admin_open_9", "admin_open", 9, true},
		{"stop_1", "stop", 1, true},
		{"delete_5", "delete", 5, true},
		{"vote_abc", "", 0, false},
		{"open_", "", 0, false},
		{"unknown_1", "", 0, false},
		{"", "", 0, false},
	}
	for _, tc := range cases {
		verb, id, ok := parseToken(tc.data)
		if verb != tc.verb || id != tc.id || ok != tc.ok {
			t.Fatalf("%q: ожидали (%s, %d, %v), получили (%s, %d, %v)", tc.data, tc.verb, tc.id, tc.ok, verb, id, ok)
		}
	}
}

func TestParseTokenAdminOpenBeforeOpen(t *testing.T) {
	verb, id, ok := parseToken("admin_open_12")
	if !ok || verb != "admin_open" || id != 12 {
		t.Fatalf("admin_open_12 должен разбираться как admin_open, получили %s/%d", verb, id)
	}
}

func TestVoteKeyboardLabels(t *testing.T) {
	markup := voteKeyboard([]domain.Candidate{
		{ID: 10, Name: "Alice", Votes: 3},
		{ID: 11, Name: "Bob", Votes: 0},
	})
	if markup == nil || len(markup.InlineKeyboard) != 2 {
		t.Fatal("ожидали по кнопке на кандидата")
	}
	first := markup.InlineKeyboard[0][0]
	if first.Text != "✨ Alice — 3 ovoz" {
		t.Fatalf("неожиданная подпись кнопки: %q", first.Text)
	}
	if first.CallbackData == nil || *first.CallbackData != "vote_10" {
		t.Fatalf("неожиданный токен кнопки: %v", first.CallbackData)
	}
}

func TestVoteKeyboardEmpty(t *testing.T) {
	if voteKeyboard(nil) != nil {
		t.Fatal("без кандидатов клавиатуры быть не должно")
	}
}

func TestJoinKeyboard(t *testing.T) {
	handle, _ := domain.ParseChannelRef("@req1")
	invite, _ := domain.ParseChannelRef("https://t.me/+AbCdEf")
	chatID, _ := domain.ParseChannelRef("-1001234567890")

	markup := joinKeyboard(5, []domain.ChannelRef{handle, invite, chatID})
	if len(markup.InlineKeyboard) != 4 {
		t.Fatalf("ожидали 3 кнопки подписки и кнопку проверки, получили %d рядов", len(markup.InlineKeyboard))
	}

	first := markup.InlineKeyboard[0][0]
	if first.Text != "➕ @req1 ga obuna bo‘lish" || first.URL == nil || *first.URL != "https://t.me/req1" {
		t.Fatalf("неожиданная кнопка алиаса: %+v", first)
	}
	second := markup.InlineKeyboard[1][0]
	if second.URL == nil || *second.URL != "https://t.me/+AbCdEf" {
		t.Fatalf("кнопка инвайта должна вести по исходной ссылке: %+v", second)
	}
	last := markup.InlineKeyboard[3][0]
	if last.Text != buttonRecheck || last.CallbackData == nil || *last.CallbackData != "recheck_5" {
		t.Fatalf("последний ряд должен быть кнопкой проверки: %+v", last)
	}
}

func TestSurveyListKeyboardTokens(t *testing.T) {
	markup := surveyListKeyboard([]domain.Survey{{ID: 3, Title: "S3"}})
	button := markup.InlineKeyboard[0][0]
	if button.Text != "S3" || *button.CallbackData != "open_3" {
		t.Fatalf("неожиданная кнопка: %+v", button)
	}

	admin := adminListKeyboard([]domain.Survey{{ID: 3, Title: "S3"}})
	adminButton := admin.InlineKeyboard[0][0]
	if adminButton.Text != "3: S3" || *adminButton.CallbackData != "admin_open_3" {
		t.Fatalf("неожиданная админская кнопка: %+v", adminButton)
	}
}

func TestAdminSurveyKeyboardTokens(t *testing.T) {
	markup := adminSurveyKeyboard(8)
	stop := markup.InlineKeyboard[0][0]
	del := markup.InlineKeyboard[1][0]
	if *stop.CallbackData != "stop_8" || *del.CallbackData != "delete_8" {
		t.Fatalf("неожиданные токены управления: %v, %v", *stop.CallbackData, *del.CallbackData)
	}
}

func TestSurveyTextListsChannels(t *testing.T) {
	ref, _ := domain.ParseChannelRef("@req1")
	text := surveyText(domain.SurveyView{
		Survey:   domain.Survey{ID: 1, Title: "S1", Description: "tavsif"},
		Channels: []domain.RequiredChannel{{Ref: ref}},
	})
	if !strings.Contains(text, "PREMIUM KO'RINISH: S1") {
		t.Fatalf("нет заголовка карточки:\n%s", text)
	}
	if !strings.Contains(text, "tavsif") {
		t.Fatalf("нет описания:\n%s", text)
	}
	if !strings.Contains(text, "Talab kanallar/guruhlar:\n- @req1") {
		t.Fatalf("нет списка каналов:\n%s", text)
	}
}

func TestAdminSurveyText(t *testing.T) {
	ref, _ := domain.ParseChannelRef("@req1")
	text := adminSurveyText(domain.SurveyView{
		Survey:     domain.Survey{ID: 4, Title: "S4"},
		Candidates: []domain.Candidate{{Name: "Alice", Votes: 2}},
		Channels:   []domain.RequiredChannel{{Ref: ref}},
	})
	if !strings.Contains(text, "🗳 So‘rovnoma: S4\nID: 4") {
		t.Fatalf("нет заголовка:\n%s", text)
	}
	if !strings.Contains(text, "- Alice : 2 ovoz") {
		t.Fatalf("нет кандидата:\n%s", text)
	}
	if !strings.Contains(text, "Talab kanallar:\n- @req1") {
		t.Fatalf("нет канала:\n%s", text)
	}
}

func TestDialogStateTransitions(t *testing.T) {
	d := newDialogs()
	if _, ok := d.get(1); ok {
		t.Fatal("диалога ещё нет")
	}

	d.start(1, stepTitle)
	st, ok := d.get(1)
	if !ok || st.step != stepTitle {
		t.Fatalf("ожидали шаг заголовка, получили %+v", st)
	}

	d.advance(1, stepCandidates, 7)
	st, _ = d.get(1)
	if st.step != stepCandidates || st.surveyID != 7 {
		t.Fatalf("ожидали шаг кандидатов для голосования 7, получили %+v", st)
	}

	d.clear(1)
	if _, ok := d.get(1); ok {
		t.Fatal("диалог должен быть закрыт")
	}
}

func TestMissingChannelsText(t *testing.T) {
	ref, _ := domain.ParseChannelRef("@req1")
	text := missingChannelsText([]domain.ChannelRef{ref})
	if !strings.Contains(text, "obuna bo‘lmagansiz") || !strings.Contains(text, "- @req1") {
		t.Fatalf("неожиданный текст:\n%s", text)
	}
}
