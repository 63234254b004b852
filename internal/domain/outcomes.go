package domain

// VoteStatus — дискриминант результата попытки голоса.
type VoteStatus int

const (
	// VoteAccepted — голос принят, счётчик увеличен, запись о голосе создана.
	VoteAccepted VoteStatus = iota + 1
	// VoteAlreadyVoted — пользователь уже голосовал в этом голосовании.
	VoteAlreadyVoted
	// VoteCandidateNotFound — кандидат не существует.
	VoteCandidateNotFound
	// VoteSurveyClosed — голосование остановлено, новые голоса не принимаются.
	VoteSurveyClosed
	// VoteMembershipRequired — пользователь не состоит во всех обязательных каналах.
	VoteMembershipRequired
)

// VoteOutcome — результат AttemptVote. Ожидаемые отказы возвращаются значением,
// а не ошибкой; ошибкой ходят только сбои хранилища.
type VoteOutcome struct {
	Status   VoteStatus
	SurveyID int64
	// Missing — полный список каналов, в которых пользователь не состоит.
	Missing []ChannelRef
	// Tallies — свежие счётчики кандидатов после принятого голоса.
	Tallies []Candidate
}

// MembershipOutcome — результат повторной проверки членства. Чистая функция
// внешнего состояния: ни записи о голосах, ни счётчики не трогаются.
type MembershipOutcome struct {
	Cleared bool
	Missing []ChannelRef
}
