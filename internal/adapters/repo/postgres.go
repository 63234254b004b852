package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ilkhomjon13/YN2/internal/domain"
	"github.com/Ilkhomjon13/YN2/internal/infra/metrics"
)

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.SurveyRepo = (*Postgres)(nil)
	_ domain.VoteRepo   = (*Postgres)(nil)
	_ domain.UserRepo   = (*Postgres)(nil)
)

const uniqueViolation = "23505"

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return p.connCtx()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// CreateSurvey вставляет новое голосование и возвращает его id.
func (p *Postgres) CreateSurvey(ctx context.Context, title string) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO surveys (title) VALUES ($1) RETURNING id
`, title).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "surveys_insert", "surveys", start, err)
	return id, err
}

// SetDescription сохраняет описание голосования.
func (p *Postgres) SetDescription(ctx context.Context, surveyID int64, description string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE surveys SET description=$2 WHERE id=$1`, surveyID, description)
	metrics.ObserveNetworkRequest("postgres", "surveys_set_description", "surveys", start, err)
	if err == nil && tag.RowsAffected() == 0 {
		return domain.ErrSurveyNotFound
	}
	return err
}

// SetImage сохраняет file_id картинки голосования.
func (p *Postgres) SetImage(ctx context.Context, surveyID int64, fileID string) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE surveys SET image=$2 WHERE id=$1`, surveyID, fileID)
	metrics.ObserveNetworkRequest("postgres", "surveys_set_image", "surveys", start, err)
	if err == nil && tag.RowsAffected() == 0 {
		return domain.ErrSurveyNotFound
	}
	return err
}

// AddCandidate добавляет кандидата в голосование.
func (p *Postgres) AddCandidate(ctx context.Context, surveyID int64, name string) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO candidates (survey_id, name) VALUES ($1, $2) RETURNING id
`, surveyID, name).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "candidates_insert", "candidates", start, err)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, domain.ErrSurveyNotFound
		}
		return 0, err
	}
	return id, nil
}

// AddRequiredChannel добавляет обязательный канал в нормализованной форме.
func (p *Postgres) AddRequiredChannel(ctx context.Context, surveyID int64, ref domain.ChannelRef) (int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var id int64
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
INSERT INTO required_channels (survey_id, channel) VALUES ($1, $2) RETURNING id
`, surveyID, ref.String()).Scan(&id)
	metrics.ObserveNetworkRequest("postgres", "required_channels_insert", "required_channels", start, err)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, domain.ErrSurveyNotFound
		}
		return 0, err
	}
	return id, nil
}

// GetSurvey возвращает голосование по id.
func (p *Postgres) GetSurvey(ctx context.Context, surveyID int64) (domain.Survey, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	s, err := scanSurvey(p.pool.QueryRow(ctx, `
SELECT id, title, description, image, active, created_at FROM surveys WHERE id=$1
`, surveyID))
	metrics.ObserveNetworkRequest("postgres", "surveys_get", "surveys", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Survey{}, domain.ErrSurveyNotFound
	}
	return s, err
}

// ListActive возвращает активные голосования, новые первыми.
func (p *Postgres) ListActive(ctx context.Context) ([]domain.Survey, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, title, description, image, active, created_at
FROM surveys WHERE active=true ORDER BY id DESC
`)
	metrics.ObserveNetworkRequest("postgres", "surveys_list_active", "surveys", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var surveys []domain.Survey
	for rows.Next() {
		s, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		surveys = append(surveys, s)
	}
	return surveys, rows.Err()
}

// LatestActive возвращает последнее созданное активное голосование.
func (p *Postgres) LatestActive(ctx context.Context) (domain.Survey, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	s, err := scanSurvey(p.pool.QueryRow(ctx, `
SELECT id, title, description, image, active, created_at
FROM surveys WHERE active=true ORDER BY id DESC LIMIT 1
`))
	metrics.ObserveNetworkRequest("postgres", "surveys_latest_active", "surveys", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Survey{}, domain.ErrSurveyNotFound
	}
	return s, err
}

// ListCandidates возвращает кандидатов голосования в порядке добавления.
func (p *Postgres) ListCandidates(ctx context.Context, surveyID int64) ([]domain.Candidate, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, survey_id, name, votes FROM candidates WHERE survey_id=$1 ORDER BY id
`, surveyID)
	metrics.ObserveNetworkRequest("postgres", "candidates_list", "candidates", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var candidates []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		if err := rows.Scan(&c.ID, &c.SurveyID, &c.Name, &c.Votes); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ListRequiredChannels возвращает обязательные каналы голосования.
func (p *Postgres) ListRequiredChannels(ctx context.Context, surveyID int64) ([]domain.RequiredChannel, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT id, survey_id, channel FROM required_channels WHERE survey_id=$1 ORDER BY id
`, surveyID)
	metrics.ObserveNetworkRequest("postgres", "required_channels_list", "required_channels", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var channels []domain.RequiredChannel
	for rows.Next() {
		var (
			rc  domain.RequiredChannel
			raw string
		)
		if err := rows.Scan(&rc.ID, &rc.SurveyID, &raw); err != nil {
			return nil, err
		}
		rc.Ref = domain.ParseStoredChannelRef(raw)
		channels = append(channels, rc)
	}
	return channels, rows.Err()
}

// Deactivate переводит голосование в остановленное состояние.
func (p *Postgres) Deactivate(ctx context.Context, surveyID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE surveys SET active=false WHERE id=$1`, surveyID)
	metrics.ObserveNetworkRequest("postgres", "surveys_deactivate", "surveys", start, err)
	if err == nil && tag.RowsAffected() == 0 {
		return domain.ErrSurveyNotFound
	}
	return err
}

// DeleteSurvey удаляет голосование; дочерние записи уходят каскадом.
func (p *Postgres) DeleteSurvey(ctx context.Context, surveyID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM surveys WHERE id=$1`, surveyID)
	metrics.ObserveNetworkRequest("postgres", "surveys_delete", "surveys", start, err)
	if err == nil && tag.RowsAffected() == 0 {
		return domain.ErrSurveyNotFound
	}
	return err
}

// GetCandidate возвращает кандидата по id.
func (p *Postgres) GetCandidate(ctx context.Context, candidateID int64) (domain.Candidate, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var c domain.Candidate
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT id, survey_id, name, votes FROM candidates WHERE id=$1
`, candidateID).Scan(&c.ID, &c.SurveyID, &c.Name, &c.Votes)
	metrics.ObserveNetworkRequest("postgres", "candidates_get", "candidates", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Candidate{}, domain.ErrCandidateNotFound
	}
	return c, err
}

// HasVoted проверяет наличие записи о голосе пары (survey, user).
func (p *Postgres) HasVoted(ctx context.Context, surveyID, userID int64) (bool, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM voted_users WHERE survey_id=$1 AND user_id=$2)
`, surveyID, userID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "voted_users_exists", "voted_users", start, err)
	return exists, err
}

// AddVote выполняет принимающий путь одной транзакцией: запись о голосе и
// атомарный инкремент счётчика либо применяются вместе, либо не применяются вовсе.
// Конкурирующий дубль упирается в первичный ключ voted_users и превращается
// в ErrAlreadyVoted.
func (p *Postgres) AddVote(ctx context.Context, surveyID, candidateID, userID int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", "voted_users", start, err)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	start = time.Now()
	_, err = tx.Exec(ctx, `
INSERT INTO voted_users (survey_id, user_id) VALUES ($1, $2)
`, surveyID, userID)
	metrics.ObserveNetworkRequest("postgres", "voted_users_insert", "voted_users", start, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrAlreadyVoted
		}
		return err
	}

	start = time.Now()
	tag, err := tx.Exec(ctx, `
UPDATE candidates SET votes = votes + 1 WHERE id=$1 AND survey_id=$2
`, candidateID, surveyID)
	metrics.ObserveNetworkRequest("postgres", "candidates_increment", "candidates", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCandidateNotFound
	}

	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit", "voted_users", start, err)
	return err
}

// ListVoters возвращает идентификаторы всех проголосовавших в голосовании.
func (p *Postgres) ListVoters(ctx context.Context, surveyID int64) ([]int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT user_id FROM voted_users WHERE survey_id=$1`, surveyID)
	metrics.ObserveNetworkRequest("postgres", "voted_users_list", "voted_users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertUser сохраняет пользователя при каждом /start.
func (p *Postgres) UpsertUser(ctx context.Context, user domain.RegisteredUser) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO registered_users (tg_user_id, username, full_name)
VALUES ($1, NULLIF($2,''), NULLIF($3,''))
ON CONFLICT (tg_user_id) DO UPDATE SET username = EXCLUDED.username, full_name = EXCLUDED.full_name
`, user.TGUserID, user.Username, user.FullName)
	metrics.ObserveNetworkRequest("postgres", "registered_users_upsert", "registered_users", start, err)
	return err
}

// ListUserIDs возвращает список получателей рассылки.
func (p *Postgres) ListUserIDs(ctx context.Context) ([]int64, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT tg_user_id FROM registered_users ORDER BY first_seen`)
	metrics.ObserveNetworkRequest("postgres", "registered_users_list", "registered_users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountUsers считает зарегистрированных пользователей.
func (p *Postgres) CountUsers(ctx context.Context) (int, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	var count int
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registered_users`).Scan(&count)
	metrics.ObserveNetworkRequest("postgres", "registered_users_count", "registered_users", start, err)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSurvey(row rowScanner) (domain.Survey, error) {
	var (
		s           domain.Survey
		description sql.NullString
		image       sql.NullString
	)
	if err := row.Scan(&s.ID, &s.Title, &description, &image, &s.Active, &s.CreatedAt); err != nil {
		return domain.Survey{}, err
	}
	if description.Valid {
		s.Description = description.String
	}
	if image.Valid {
		s.Image = image.String
	}
	return s, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
