package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Ilkhomjon13/YN2/internal/domain"
)

const (
	buttonCreateSurvey  = "➕ So‘rovnoma yaratish"
	buttonListSurveys   = "📋 So‘rovnomalarni ko‘rish"
	buttonShowResults   = "📊 Natijalarni ko‘rish"
	buttonAddCandidate  = "➕ Nomzod qo‘shish"
	buttonAddChannel    = "📢 Kanal qo‘shish"
	buttonExportCSV     = "📤 CSV eksport"
	buttonBroadcast     = "📣 Xabar yuborish"
	buttonDone          = "✅ Tugatish"
	buttonRecheck       = "🔄 Tekshirish"
	channelPromptText   = "✍ Kanal/guruh nomini yuboring (@kanal, https://t.me/kanal yoki -100id):"
	candidatePromptText = "✍ Nomzod nomini yuboring:"
)

// adminKeyboard — постоянная reply-клавиатура админ-панели.
func adminKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonCreateSurvey),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonListSurveys),
			tgbotapi.NewKeyboardButton(buttonShowResults),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonAddCandidate),
			tgbotapi.NewKeyboardButton(buttonAddChannel),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonExportCSV),
			tgbotapi.NewKeyboardButton(buttonBroadcast),
		),
	)
}

// doneKeyboard — клавиатура шага диалога с единственной кнопкой завершения.
func doneKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(buttonDone)),
	)
}

// voteKeyboard строит кнопки кандидатов с текущими счётчиками.
func voteKeyboard(candidates []domain.Candidate) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(candidates))
	for _, c := range candidates {
		label := fmt.Sprintf("✨ %s — %d ovoz", c.Name, c.Votes)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("vote_%d", c.ID)),
		))
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// joinKeyboard строит кнопки подписки на недостающие каналы и кнопку повторной
// проверки. Для приватных чатов по числовому id внешней ссылки нет, кнопка
// ведёт на t.me.
func joinKeyboard(surveyID int64, missing []domain.ChannelRef) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(missing)+1)
	for _, ref := range missing {
		var button tgbotapi.InlineKeyboardButton
		switch ref.Kind {
		case domain.ChannelRefHandle:
			label := fmt.Sprintf("➕ %s ga obuna bo‘lish", ref.Handle)
			button = tgbotapi.NewInlineKeyboardButtonURL(label, ref.JoinURL())
		case domain.ChannelRefInviteURL:
			button = tgbotapi.NewInlineKeyboardButtonURL("➕ Obuna bo‘lish", ref.JoinURL())
		default:
			button = tgbotapi.NewInlineKeyboardButtonURL("➕ Kanal/guruhga obuna bo‘lish", "https://t.me")
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(buttonRecheck, fmt.Sprintf("recheck_%d", surveyID)),
	))
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// surveyListKeyboard — кнопки открытия активных голосований для пользователя.
func surveyListKeyboard(surveys []domain.Survey) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(surveys))
	for _, s := range surveys {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(s.Title, fmt.Sprintf("open_%d", s.ID)),
		))
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// adminListKeyboard — кнопки выбора голосования в админ-панели.
func adminListKeyboard(surveys []domain.Survey) *tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(surveys))
	for _, s := range surveys {
		label := fmt.Sprintf("%d: %s", s.ID, s.Title)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("admin_open_%d", s.ID)),
		))
	}
	if len(rows) == 0 {
		return nil
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// adminSurveyKeyboard — кнопки управления конкретным голосованием.
func adminSurveyKeyboard(surveyID int64) *tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⏹ Stop so‘rovnoma", fmt.Sprintf("stop_%d", surveyID)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Delete so‘rovnoma (butunlay o‘chirish)", fmt.Sprintf("delete_%d", surveyID)),
		),
	)
	return &markup
}

// surveyText строит пользовательскую карточку голосования.
func surveyText(view domain.SurveyView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🌟 PREMIUM KO'RINISH: %s\n\nSizga boyroq ko‘rinish taqdim etildi.", view.Survey.Title)
	if view.Survey.Description != "" {
		b.WriteString("\n\n" + view.Survey.Description)
	}
	if len(view.Channels) > 0 {
		b.WriteString("\n\nTalab kanallar/guruhlar:\n")
		lines := make([]string, 0, len(view.Channels))
		for _, ch := range view.Channels {
			lines = append(lines, fmt.Sprintf("- %s", ch.Ref.String()))
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}

// adminSurveyText строит админскую карточку голосования.
func adminSurveyText(view domain.SurveyView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🗳 So‘rovnoma: %s\nID: %d\n\nNomzodlar:\n", view.Survey.Title, view.Survey.ID)
	for _, c := range view.Candidates {
		fmt.Fprintf(&b, "- %s : %d ovoz\n", c.Name, c.Votes)
	}
	if len(view.Channels) > 0 {
		b.WriteString("\nTalab kanallar:\n")
		lines := make([]string, 0, len(view.Channels))
		for _, ch := range view.Channels {
			lines = append(lines, fmt.Sprintf("- %s", ch.Ref.String()))
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}

// missingChannelsText перечисляет каналы, подписка на которые ещё не подтверждена.
func missingChannelsText(missing []domain.ChannelRef) string {
	lines := make([]string, 0, len(missing))
	for _, ref := range missing {
		lines = append(lines, fmt.Sprintf("- %s", ref.String()))
	}
	return "Siz hali ham quyidagi kanal/guruhlarga obuna bo‘lmagansiz:\n" + strings.Join(lines, "\n")
}
