package domain

import "errors"

var (
	// ErrSurveyNotFound возвращается, когда голосование не существует или уже удалено.
	ErrSurveyNotFound = errors.New("голосование не найдено")
	// ErrCandidateNotFound возвращается при попытке голоса за несуществующего кандидата.
	ErrCandidateNotFound = errors.New("кандидат не найден")
	// ErrAlreadyVoted возвращается хранилищем при нарушении уникальности (survey, user).
	ErrAlreadyVoted = errors.New("пользователь уже голосовал")
	// ErrEmptyTitle возвращается при создании голосования без заголовка.
	ErrEmptyTitle = errors.New("пустой заголовок голосования")
	// ErrEmptyCandidateName возвращается при добавлении кандидата без имени.
	ErrEmptyCandidateName = errors.New("пустое имя кандидата")
	// ErrChannelRefInvalid возвращается, когда ссылку на канал нельзя нормализовать.
	ErrChannelRefInvalid = errors.New("некорректная ссылка на канал")
)
