package membership

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Ilkhomjon13/YN2/internal/domain"
	"github.com/Ilkhomjon13/YN2/internal/infra/metrics"
)

// chatMemberAPI — минимальный срез Bot API, нужный проверке членства.
// *tgbotapi.BotAPI удовлетворяет его напрямую.
type chatMemberAPI interface {
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Verifier отвечает «состоит ли пользователь в канале сейчас» через getChatMember.
// Результат не кэшируется: членство меняется между вызовами.
type Verifier struct {
	api chatMemberAPI
	log zerolog.Logger
}

var _ domain.MembershipVerifier = (*Verifier)(nil)

// NewVerifier создаёт проверку членства поверх Bot API.
func NewVerifier(api chatMemberAPI, logger zerolog.Logger) *Verifier {
	return &Verifier{api: api, log: logger}
}

// IsMember выполняет проверку fail-closed: любой сбой вызова и любой статус
// вне позитивного списка означают «не участник».
func (v *Verifier) IsMember(ctx context.Context, userID int64, ref domain.ChannelRef) bool {
	cfg := tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{UserID: userID},
	}
	switch ref.Kind {
	case domain.ChannelRefHandle:
		cfg.SuperGroupUsername = ref.Handle
	case domain.ChannelRefChatID:
		cfg.ChatID = ref.ChatID
	default:
		// Инвайт-ссылки и нечитаемые записи разрешить нельзя.
		metrics.IncMembershipCheck(false)
		return false
	}

	start := time.Now()
	member, err := v.api.GetChatMember(cfg)
	metrics.ObserveNetworkRequest("telegram_bot", "get_chat_member", ref.String(), start, err)
	if err != nil {
		v.log.Debug().Err(err).Int64("user", userID).Str("channel", ref.String()).Msg("проверка членства не удалась")
		metrics.IncMembershipCheck(false)
		return false
	}

	ok := isAllowedStatus(member.Status)
	metrics.IncMembershipCheck(ok)
	return ok
}

// isAllowedStatus — позитивный список: member/administrator/creator.
// «restricted», «left», «kicked» и прочие статусы голосовать не дают.
func isAllowedStatus(status string) bool {
	switch strings.ToLower(status) {
	case "member", "administrator", "creator":
		return true
	default:
		return false
	}
}
