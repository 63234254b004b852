package bot

import (
	"context"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Ilkhomjon13/YN2/internal/adapters/telegram"
	"github.com/Ilkhomjon13/YN2/internal/domain"
	"github.com/Ilkhomjon13/YN2/internal/infra/metrics"
)

// Notifier отправляет тексты от имени бота. Используется остановкой
// голосований и рассылками, где нет исходного апдейта для ответа.
type Notifier struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

var _ domain.Notifier = (*Notifier)(nil)

// NewNotifier создаёт отправителя поверх Bot API.
func NewNotifier(bot *tgbotapi.BotAPI, log zerolog.Logger) *Notifier {
	return &Notifier{bot: bot, log: log}
}

// SendText отправляет текст в чат, длинные тексты режутся по лимиту Telegram.
func (n *Notifier) SendText(ctx context.Context, chatID int64, text string) error {
	for _, part := range telegram.SplitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		start := time.Now()
		_, err := n.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.IncBotSendError()
			return err
		}
	}
	return nil
}
