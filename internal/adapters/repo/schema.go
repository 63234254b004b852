package repo

import (
	"context"
	"time"

	"github.com/Ilkhomjon13/YN2/internal/infra/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS surveys (
    id BIGSERIAL PRIMARY KEY,
    title TEXT NOT NULL,
    description TEXT,
    image TEXT,
    active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS candidates (
    id BIGSERIAL PRIMARY KEY,
    survey_id BIGINT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    votes BIGINT NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS required_channels (
    id BIGSERIAL PRIMARY KEY,
    survey_id BIGINT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
    channel TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS voted_users (
    survey_id BIGINT NOT NULL REFERENCES surveys(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL,
    PRIMARY KEY (survey_id, user_id)
);
CREATE TABLE IF NOT EXISTS registered_users (
    tg_user_id BIGINT PRIMARY KEY,
    username TEXT,
    full_name TEXT,
    first_seen TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// EnsureSchema создаёт таблицы, если их ещё нет.
// Каскадные внешние ключи обеспечивают удаление дочерних записей вместе с голосованием.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, schema)
	metrics.ObserveNetworkRequest("postgres", "ensure_schema", "schema", start, err)
	return err
}
