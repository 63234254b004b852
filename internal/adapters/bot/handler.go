package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Ilkhomjon13/YN2/internal/adapters/telegram"
	"github.com/Ilkhomjon13/YN2/internal/domain"
	"github.com/Ilkhomjon13/YN2/internal/infra/metrics"
	"github.com/Ilkhomjon13/YN2/internal/usecase/broadcast"
	"github.com/Ilkhomjon13/YN2/internal/usecase/lifecycle"
	"github.com/Ilkhomjon13/YN2/internal/usecase/voting"
)

// Handler обслуживает апдейты бота: пользовательское голосование и админ-панель.
type Handler struct {
	bot         *tgbotapi.BotAPI
	log         zerolog.Logger
	lifecycleUC *lifecycle.Service
	votingUC    *voting.Service
	broadcastUC *broadcast.Service
	users       domain.UserRepo
	adminID     int64
	dialogs     *dialogs
}

// NewHandler создаёт обработчик.
func NewHandler(bot *tgbotapi.BotAPI, log zerolog.Logger, lifecycleUC *lifecycle.Service, votingUC *voting.Service, broadcastUC *broadcast.Service, users domain.UserRepo, adminID int64) *Handler {
	return &Handler{
		bot:         bot,
		log:         log,
		lifecycleUC: lifecycleUC,
		votingUC:    votingUC,
		broadcastUC: broadcastUC,
		users:       users,
		adminID:     adminID,
		dialogs:     newDialogs(),
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	text := strings.TrimSpace(msg.Text)
	isAdmin := msg.From.ID == h.adminID

	if isAdmin && !strings.HasPrefix(text, "/") {
		if h.tryHandleDialogInput(ctx, msg) {
			return
		}
	}

	switch {
	case strings.HasPrefix(text, "/start"):
		h.handleStart(ctx, msg, isAdmin)
	case text == buttonCreateSurvey:
		if !h.requireAdmin(msg.Chat.ID, isAdmin) {
			return
		}
		h.dialogs.start(msg.From.ID, stepTitle)
		h.reply(msg.Chat.ID, "📝 So‘rovnoma nomini yuboring:", nil)
	case text == buttonListSurveys:
		if !h.requireAdmin(msg.Chat.ID, isAdmin) {
			return
		}
		h.handleAdminList(ctx, msg.Chat.ID)
	case text == buttonShowResults:
		if !h.requireAdmin(msg.Chat.ID, isAdmin) {
			return
		}
		h.handleResults(ctx, msg.Chat.ID)
	case text == buttonAddCandidate:
		if !h.requireAdmin(msg.Chat.ID, isAdmin) {
			return
		}
		h.startAppend(ctx, msg.Chat.ID, msg.From.ID, stepCandidates, candidatePromptText)
	case text == buttonAddChannel:
		if !h.requireAdmin(msg.Chat.ID, isAdmin) {
			return
		}
		h.startAppend(ctx, msg.Chat.ID, msg.From.ID, stepChannels, channelPromptText)
	case text == buttonExportCSV:
		if !h.requireAdmin(msg.Chat.ID, isAdmin) {
			return
		}
		h.handleExportCSV(ctx, msg.Chat.ID)
	case text == buttonBroadcast:
		if !h.requireAdmin(msg.Chat.ID, isAdmin) {
			return
		}
		h.dialogs.start(msg.From.ID, stepBroadcast)
		h.reply(msg.Chat.ID, "✍ Yuboriladigan xabar matnini kiriting:", nil)
	}
}

func (h *Handler) handleStart(ctx context.Context, msg *tgbotapi.Message, isAdmin bool) {
	user := domain.RegisteredUser{
		TGUserID:  msg.From.ID,
		Username:  msg.From.UserName,
		FullName:  strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
		FirstSeen: time.Now().UTC(),
	}
	if err := h.users.UpsertUser(ctx, user); err != nil {
		h.log.Error().Err(err).Int64("user", msg.From.ID).Msg("не удалось сохранить пользователя")
	}

	if isAdmin {
		h.replyWithReplyKeyboard(msg.Chat.ID, "👨‍💼 Admin panel:", adminKeyboard())
		return
	}

	surveys, err := h.lifecycleUC.ListActive(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось получить активные голосования")
		h.reply(msg.Chat.ID, "Xatolik yuz berdi. Keyinroq urinib ko‘ring.", nil)
		return
	}
	if len(surveys) == 0 {
		h.reply(msg.Chat.ID, "Hozircha aktiv so‘rovnoma yo‘q.", nil)
		return
	}
	h.reply(msg.Chat.ID, "Aktiv so‘rovnomalar:", surveyListKeyboard(surveys))
}

func (h *Handler) handleAdminList(ctx context.Context, chatID int64) {
	surveys, err := h.lifecycleUC.ListActive(ctx)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
		return
	}
	if len(surveys) == 0 {
		h.reply(chatID, "❌ Aktiv so‘rovnoma yo‘q.", nil)
		return
	}
	h.reply(chatID, "Admin: so‘rovnomani tanlang:", adminListKeyboard(surveys))
}

func (h *Handler) handleResults(ctx context.Context, chatID int64) {
	surveys, err := h.lifecycleUC.ListActive(ctx)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
		return
	}
	if len(surveys) == 0 {
		h.reply(chatID, "❌ Aktiv so‘rovnoma yo‘q.", nil)
		return
	}
	parts := make([]string, 0, len(surveys))
	for _, s := range surveys {
		view, err := h.lifecycleUC.View(ctx, s.ID)
		if err != nil {
			h.log.Error().Err(err).Int64("survey", s.ID).Msg("не удалось собрать результаты")
			continue
		}
		parts = append(parts, lifecycle.ResultsText(view))
	}
	h.reply(chatID, strings.Join(parts, "\n"), nil)
}

// startAppend открывает шаг дозаполнения последнего активного голосования.
func (h *Handler) startAppend(ctx context.Context, chatID, userID int64, step dialogStep, prompt string) {
	survey, err := h.lifecycleUC.LatestActive(ctx)
	if errors.Is(err, domain.ErrSurveyNotFound) {
		h.reply(chatID, "Aktiv so‘rovnoma yo‘q.", nil)
		return
	}
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
		return
	}
	h.dialogs.startFor(userID, step, survey.ID)
	h.replyWithReplyKeyboard(chatID, prompt, doneKeyboard())
}

func (h *Handler) handleExportCSV(ctx context.Context, chatID int64) {
	survey, err := h.lifecycleUC.LatestActive(ctx)
	if errors.Is(err, domain.ErrSurveyNotFound) {
		h.reply(chatID, "Aktiv so‘rovnoma yo‘q.", nil)
		return
	}
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
		return
	}
	view, err := h.lifecycleUC.View(ctx, survey.ID)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
		return
	}
	data, err := lifecycle.ResultsCSV(view)
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Eksport xatosi: %v", err), nil)
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  lifecycle.ResultsFileName(survey.ID),
		Bytes: data,
	})
	start := time.Now()
	_, err = h.bot.Send(doc)
	metrics.ObserveNetworkRequest("telegram_bot", "send_document", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось отправить CSV")
	}
}

// tryHandleDialogInput ведёт администратора по шагам диалога. Возвращает true,
// если сообщение потреблено диалогом.
func (h *Handler) tryHandleDialogInput(ctx context.Context, msg *tgbotapi.Message) bool {
	state, ok := h.dialogs.get(msg.From.ID)
	if !ok {
		return false
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)

	switch state.step {
	case stepTitle:
		surveyID, err := h.lifecycleUC.CreateDraft(ctx, text)
		if errors.Is(err, domain.ErrEmptyTitle) {
			h.reply(chatID, "Nom bo‘sh bo‘lmasin. Qayta yuboring.", nil)
			return true
		}
		if err != nil {
			h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
			return true
		}
		h.dialogs.advance(userID, stepDescription, surveyID)
		h.replyWithReplyKeyboard(chatID, "📝 Tavsif yuboring yoki '✅ Tugatish' tugmasini bosing", doneKeyboard())
	case stepDescription:
		if text != buttonDone && text != "" {
			if err := h.lifecycleUC.SetDescription(ctx, state.surveyID, text); err != nil {
				h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
				return true
			}
			h.reply(chatID, "✅ Tavsif qo‘shildi.", nil)
		}
		h.dialogs.advance(userID, stepImage, state.surveyID)
		h.replyWithReplyKeyboard(chatID, "📷 Rasm yuboring yoki '✅ Tugatish' tugmasini bosing", doneKeyboard())
	case stepImage:
		if len(msg.Photo) > 0 {
			fileID := msg.Photo[len(msg.Photo)-1].FileID
			if err := h.lifecycleUC.SetImage(ctx, state.surveyID, fileID); err != nil {
				h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
				return true
			}
			h.reply(chatID, "✅ Rasm qo‘shildi.", nil)
			return true
		}
		if text == buttonDone {
			h.dialogs.advance(userID, stepCandidates, state.surveyID)
			h.replyWithReplyKeyboard(chatID, candidatePromptText, doneKeyboard())
			return true
		}
		h.replyWithReplyKeyboard(chatID, "📷 Rasm yuboring yoki '✅ Tugatish' tugmasini bosing", doneKeyboard())
	case stepCandidates:
		if text == buttonDone {
			h.dialogs.advance(userID, stepChannels, state.surveyID)
			h.replyWithReplyKeyboard(chatID, channelPromptText, doneKeyboard())
			return true
		}
		if _, err := h.lifecycleUC.AddCandidate(ctx, state.surveyID, text); err != nil {
			if errors.Is(err, domain.ErrEmptyCandidateName) {
				h.reply(chatID, "Nomzod nomi bo‘sh bo‘lmasin.", nil)
				return true
			}
			h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
			return true
		}
		h.reply(chatID, fmt.Sprintf("✅ Nomzod qo‘shildi: %s", text), nil)
	case stepChannels:
		if text == buttonDone {
			h.dialogs.clear(userID)
			h.replyWithReplyKeyboard(chatID, "✅ So‘rovnoma tayyor!", adminKeyboard())
			return true
		}
		if _, err := h.lifecycleUC.AddRequiredChannel(ctx, state.surveyID, text); err != nil {
			if errors.Is(err, domain.ErrChannelRefInvalid) {
				h.reply(chatID, "Kanal/guruh nomi noto‘g‘ri. Qayta yuboring.", nil)
				return true
			}
			h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
			return true
		}
		h.reply(chatID, fmt.Sprintf("✅ Qo‘shildi: %s", text), nil)
	case stepBroadcast:
		if text == "" {
			h.reply(chatID, "✍ Yuboriladigan xabar matnini kiriting:", nil)
			return true
		}
		h.dialogs.clear(userID)
		if _, err := h.broadcastUC.Submit(ctx, chatID, text); err != nil {
			h.log.Error().Err(err).Msg("не удалось поставить рассылку в очередь")
			h.reply(chatID, "Xabarni navbatga qo‘yib bo‘lmadi. Keyinroq urinib ko‘ring.", nil)
			return true
		}
		h.replyWithReplyKeyboard(chatID, "✅ Xabar navbatga qo‘yildi.", adminKeyboard())
	default:
		return false
	}
	return true
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	chatID := cb.From.ID
	if cb.Message != nil {
		chatID = cb.Message.Chat.ID
	}
	isAdmin := cb.From.ID == h.adminID

	answer := ""
	verb, id, ok := parseToken(cb.Data)
	if !ok {
		h.log.Debug().Str("data", cb.Data).Msg("нераспознанный callback")
	} else {
		switch verb {
		case "open":
			h.handleOpenSurvey(ctx, chatID, id)
		case "vote":
			answer = h.handleVote(ctx, chatID, cb, id)
		case "recheck":
			h.handleRecheck(ctx, chatID, cb.From.ID, id)
		case "admin_open":
			if !h.requireAdmin(chatID, isAdmin) {
				break
			}
			h.handleAdminOpen(ctx, chatID, id)
		case "stop":
			if !h.requireAdmin(chatID, isAdmin) {
				break
			}
			answer = h.handleStop(ctx, chatID, id)
		case "delete":
			if !h.requireAdmin(chatID, isAdmin) {
				break
			}
			answer = h.handleDelete(ctx, chatID, id)
		}
	}

	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, answer))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(cb.From.ID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) handleOpenSurvey(ctx context.Context, chatID, surveyID int64) {
	view, err := h.lifecycleUC.View(ctx, surveyID)
	if errors.Is(err, domain.ErrSurveyNotFound) {
		h.reply(chatID, "So‘rovnoma topilmadi.", nil)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("survey", surveyID).Msg("не удалось открыть голосование")
		h.reply(chatID, "Xatolik yuz berdi. Keyinroq urinib ko‘ring.", nil)
		return
	}
	h.sendSurveyView(chatID, view)
}

func (h *Handler) handleVote(ctx context.Context, chatID int64, cb *tgbotapi.CallbackQuery, candidateID int64) string {
	outcome, err := h.votingUC.AttemptVote(ctx, candidateID, cb.From.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("candidate", candidateID).Msg("попытка голоса не удалась")
		h.reply(chatID, "Xatolik yuz berdi. Keyinroq urinib ko‘ring.", nil)
		return ""
	}
	switch outcome.Status {
	case domain.VoteCandidateNotFound:
		h.reply(chatID, "Nomzod topilmadi.", nil)
		return ""
	case domain.VoteSurveyClosed:
		h.reply(chatID, "So‘rovnoma yopilgan.", nil)
		return ""
	case domain.VoteAlreadyVoted:
		return "❗ Siz allaqachon ovoz berdingiz!"
	case domain.VoteMembershipRequired:
		text := "Ovoz berish uchun quyidagi kanal yoki guruhlarga obuna bo‘lish majburiy. Iltimos, obuna bo‘ling va keyin Tekshirish tugmasini bosing."
		h.reply(chatID, text, joinKeyboard(outcome.SurveyID, outcome.Missing))
		return "Avval talab qilingan kanallarga obuna bo‘ling."
	case domain.VoteAccepted:
		h.refreshVoteKeyboard(chatID, cb, outcome.Tallies)
		return "✔ Ovoz berildi!"
	}
	return ""
}

// refreshVoteKeyboard обновляет кнопки под исходным сообщением свежими
// счётчиками; если сообщение недоступно, отправляет результаты отдельно.
func (h *Handler) refreshVoteKeyboard(chatID int64, cb *tgbotapi.CallbackQuery, tallies []domain.Candidate) {
	markup := voteKeyboard(tallies)
	if markup == nil {
		return
	}
	if cb.Message != nil {
		edit := tgbotapi.NewEditMessageReplyMarkup(cb.Message.Chat.ID, cb.Message.MessageID, *markup)
		start := time.Now()
		_, err := h.bot.Request(edit)
		metrics.ObserveNetworkRequest("telegram_bot", "edit_reply_markup", strconv.FormatInt(chatID, 10), start, err)
		if err == nil {
			return
		}
		h.log.Debug().Err(err).Msg("не удалось обновить клавиатуру, отправляем новое сообщение")
	}
	h.reply(chatID, "Yangi natijalar:", markup)
}

func (h *Handler) handleRecheck(ctx context.Context, chatID, userID, surveyID int64) {
	outcome, err := h.votingUC.RecheckMembership(ctx, surveyID, userID)
	if errors.Is(err, domain.ErrSurveyNotFound) {
		h.reply(chatID, "So‘rovnoma topilmadi.", nil)
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("survey", surveyID).Msg("повторная проверка не удалась")
		h.reply(chatID, "Xatolik yuz berdi. Keyinroq urinib ko‘ring.", nil)
		return
	}
	if !outcome.Cleared {
		h.reply(chatID, missingChannelsText(outcome.Missing), joinKeyboard(surveyID, outcome.Missing))
		return
	}
	view, err := h.lifecycleUC.View(ctx, surveyID)
	if err != nil {
		h.reply(chatID, "A’zolik tasdiqlandi. Ovoz berishingiz mumkin.", nil)
		return
	}
	h.reply(chatID, "A’zolik tasdiqlandi. Endi ovoz bera olasiz.", nil)
	h.sendSurveyView(chatID, view)
}

func (h *Handler) handleAdminOpen(ctx context.Context, chatID, surveyID int64) {
	view, err := h.lifecycleUC.View(ctx, surveyID)
	if errors.Is(err, domain.ErrSurveyNotFound) {
		h.reply(chatID, "So‘rovnoma topilmadi.", nil)
		return
	}
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
		return
	}
	h.reply(chatID, adminSurveyText(view), adminSurveyKeyboard(surveyID))
}

func (h *Handler) handleStop(ctx context.Context, chatID, surveyID int64) string {
	report, err := h.lifecycleUC.Stop(ctx, surveyID)
	if errors.Is(err, domain.ErrSurveyNotFound) {
		h.reply(chatID, "So‘rovnoma topilmadi.", nil)
		return ""
	}
	if err != nil {
		h.log.Error().Err(err).Int64("survey", surveyID).Msg("не удалось остановить голосование")
		h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
		return ""
	}
	h.reply(chatID, fmt.Sprintf("So‘rovnoma '%s' yopildi.\nXabar yuborildi: %d; muvaffaqiyatsiz: %d.", report.Survey.Title, report.Sent, report.Failed), nil)
	return "So‘rovnoma yopildi va qatnashganlarga xabar yuborildi."
}

func (h *Handler) handleDelete(ctx context.Context, chatID, surveyID int64) string {
	survey, err := h.lifecycleUC.View(ctx, surveyID)
	if errors.Is(err, domain.ErrSurveyNotFound) {
		h.reply(chatID, "So‘rovnoma topilmadi yoki allaqachon o‘chirib yuborilgan.", nil)
		return ""
	}
	if err != nil {
		h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
		return ""
	}
	if err := h.lifecycleUC.Delete(ctx, surveyID); err != nil {
		if errors.Is(err, domain.ErrSurveyNotFound) {
			h.reply(chatID, "So‘rovnoma topilmadi yoki allaqachon o‘chirib yuborilgan.", nil)
			return ""
		}
		h.log.Error().Err(err).Int64("survey", surveyID).Msg("не удалось удалить голосование")
		h.reply(chatID, fmt.Sprintf("Xatolik: %v", err), nil)
		return ""
	}
	h.reply(chatID, fmt.Sprintf("✅ So‘rovnoma '%s' (ID: %d) butunlay o‘chirildi.", survey.Survey.Title, surveyID), nil)
	return "So‘rovnoma o‘chirildi."
}

// sendSurveyView отправляет карточку голосования: фото с подписью, если у
// голосования есть картинка, иначе текст.
func (h *Handler) sendSurveyView(chatID int64, view domain.SurveyView) {
	text := surveyText(view)
	markup := voteKeyboard(view.Candidates)
	if view.Survey.Image == "" {
		h.reply(chatID, text, markup)
		return
	}
	caption, rest := telegram.SplitCaption(text)
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(view.Survey.Image))
	photo.Caption = caption
	if len(rest) == 0 && markup != nil {
		photo.ReplyMarkup = markup
	}
	start := time.Now()
	_, err := h.bot.Send(photo)
	metrics.ObserveNetworkRequest("telegram_bot", "send_photo", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось отправить фото, отправляем текст")
		h.reply(chatID, text, markup)
		return
	}
	if len(rest) > 0 {
		h.reply(chatID, strings.Join(rest, "\n"), markup)
	}
}

func (h *Handler) requireAdmin(chatID int64, isAdmin bool) bool {
	if !isAdmin {
		h.reply(chatID, "Ruxsat yo‘q.", nil)
		return false
	}
	return true
}

// parseToken разбирает callback-токен вида <verb>_<id>. Порядок префиксов
// важен: admin_open_ проверяется раньше open_.
func parseToken(data string) (string, int64, bool) {
	verbs := []string{"admin_open", "open", "vote", "recheck", "stop", "delete"}
	for _, verb := range verbs {
		prefix := verb + "_"
		if !strings.HasPrefix(data, prefix) {
			continue
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(data, prefix), 10, 64)
		if err != nil {
			return "", 0, false
		}
		return verb, id, true
	}
	return "", 0, false
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			metrics.IncBotSendError()
			return
		}
	}
}

func (h *Handler) replyWithReplyKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	start := time.Now()
	_, err := h.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось отправить сообщение")
		metrics.IncBotSendError()
	}
}
