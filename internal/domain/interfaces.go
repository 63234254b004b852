package domain

import "context"

// SurveyRepo управляет голосованиями и их дочерними записями.
type SurveyRepo interface {
	CreateSurvey(ctx context.Context, title string) (int64, error)
	SetDescription(ctx context.Context, surveyID int64, description string) error
	SetImage(ctx context.Context, surveyID int64, fileID string) error
	AddCandidate(ctx context.Context, surveyID int64, name string) (int64, error)
	AddRequiredChannel(ctx context.Context, surveyID int64, ref ChannelRef) (int64, error)
	GetSurvey(ctx context.Context, surveyID int64) (Survey, error)
	ListActive(ctx context.Context) ([]Survey, error)
	LatestActive(ctx context.Context) (Survey, error)
	ListCandidates(ctx context.Context, surveyID int64) ([]Candidate, error)
	ListRequiredChannels(ctx context.Context, surveyID int64) ([]RequiredChannel, error)
	Deactivate(ctx context.Context, surveyID int64) error
	DeleteSurvey(ctx context.Context, surveyID int64) error
}

// VoteRepo управляет голосами.
type VoteRepo interface {
	GetCandidate(ctx context.Context, candidateID int64) (Candidate, error)
	HasVoted(ctx context.Context, surveyID, userID int64) (bool, error)
	// AddVote атомарно создаёт запись о голосе и увеличивает счётчик кандидата.
	// Повторный голос той же пары (survey, user) возвращает ErrAlreadyVoted.
	AddVote(ctx context.Context, surveyID, candidateID, userID int64) error
	ListVoters(ctx context.Context, surveyID int64) ([]int64, error)
}

// UserRepo управляет списком зарегистрированных пользователей.
type UserRepo interface {
	UpsertUser(ctx context.Context, user RegisteredUser) error
	ListUserIDs(ctx context.Context) ([]int64, error)
	CountUsers(ctx context.Context) (int, error)
}

// MembershipVerifier отвечает на вопрос «состоит ли пользователь в канале сейчас».
// Ошибки проверки трактуются как «не состоит»; результат не кэшируется.
type MembershipVerifier interface {
	IsMember(ctx context.Context, userID int64, ref ChannelRef) bool
}

// Notifier отправляет текстовое сообщение в чат. За ним стоит Telegram,
// но ядро видит только эту операцию.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// BroadcastQueue — очередь задач рассылки.
type BroadcastQueue interface {
	Enqueue(ctx context.Context, job BroadcastJob) error
	Pop(ctx context.Context) (BroadcastJob, error)
}
