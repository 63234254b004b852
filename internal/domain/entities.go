package domain

import "time"

// Survey описывает одно голосование: заголовок, опциональные описание и картинка,
// список кандидатов и обязательных каналов.
type Survey struct {
	ID          int64
	Title       string
	Description string
	Image       string
	Active      bool
	CreatedAt   time.Time
}

// Candidate описывает вариант ответа внутри голосования.
// Счётчик Votes увеличивается только атомарным инкрементом в хранилище.
type Candidate struct {
	ID       int64
	SurveyID int64
	Name     string
	Votes    int64
}

// RequiredChannel описывает канал, членство в котором обязательно для голоса.
type RequiredChannel struct {
	ID       int64
	SurveyID int64
	Ref      ChannelRef
}

// VotedRecord фиксирует факт голоса пользователя в конкретном голосовании.
// Пара (SurveyID, UserID) уникальна — это главный инвариант системы.
type VotedRecord struct {
	SurveyID int64
	UserID   int64
}

// RegisteredUser — пользователь, когда-либо запускавший бота.
// Используется только как список получателей рассылок.
type RegisteredUser struct {
	TGUserID  int64
	Username  string
	FullName  string
	FirstSeen time.Time
}

// SurveyView собирает голосование вместе с кандидатами и каналами для отрисовки.
type SurveyView struct {
	Survey     Survey
	Candidates []Candidate
	Channels   []RequiredChannel
}

// StopReport — итог остановки голосования: сколько участников удалось уведомить.
type StopReport struct {
	Survey Survey
	Sent   int
	Failed int
}

// BroadcastJob — задача рассылки произвольного сообщения всем пользователям.
type BroadcastJob struct {
	ID          string    `json:"id"`
	AdminChatID int64     `json:"admin_chat_id"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// BroadcastReport — итог доставки одной рассылки.
type BroadcastReport struct {
	JobID  string
	Sent   int
	Failed int
}
