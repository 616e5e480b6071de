package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/link-gateway/internal/entity"
)

const uniqueViolationErrCode = "23505"

func isUniqueViolationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.SQLState() == uniqueViolationErrCode
}

const linkColumns = `id, short_id, encrypted_url, kind, domain, category, title_alias,
	click_count, created_at, expires_at, created_by`

type linkRecord struct {
	ID           string         `db:"id"`
	ShortID      string         `db:"short_id"`
	EncryptedURL string         `db:"encrypted_url"`
	Kind         string         `db:"kind"`
	Domain       string         `db:"domain"`
	Category     sql.NullString `db:"category"`
	TitleAlias   string         `db:"title_alias"`
	ClickCount   int64          `db:"click_count"`
	CreatedAt    time.Time      `db:"created_at"`
	ExpiresAt    sql.NullTime   `db:"expires_at"`
	CreatedBy    sql.NullString `db:"created_by"`
}

// toEntity maps a row onto a link. An unknown kind is left as the zero Kind,
// which the link store treats as unreadable.
func (r *linkRecord) toEntity() *entity.WrappedLink {
	kind, _ := entity.ParseKind(r.Kind)

	link := &entity.WrappedLink{
		ID:           r.ID,
		ShortID:      r.ShortID,
		EncryptedURL: r.EncryptedURL,
		Kind:         kind,
		Domain:       r.Domain,
		Category:     entity.Category(r.Category.String),
		TitleAlias:   r.TitleAlias,
		ClickCount:   r.ClickCount,
		CreatedAt:    r.CreatedAt,
		CreatedBy:    r.CreatedBy.String,
	}

	if r.ExpiresAt.Valid {
		exp := r.ExpiresAt.Time
		link.ExpiresAt = &exp
	}

	return link
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type LinkRepository struct {
	db *sqlx.DB
}

func NewLinkRepository(db *sqlx.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) Insert(ctx context.Context, link *entity.WrappedLink) error {
	const op = "adapter.repository.postgres.LinkRepository.Insert"
	const query = `INSERT INTO wrapped_links(` + linkColumns + `)
		SELECT $1::uuid, $2::varchar, $3::text, $4::varchar, $5::varchar, $6::varchar, $7::varchar,
			$8::bigint, $9::timestamptz, $10::timestamptz, $11::varchar
		WHERE NOT EXISTS (SELECT 1 FROM retired_short_ids WHERE short_id = $2::varchar)`

	res, err := r.db.ExecContext(ctx, query,
		link.ID,
		link.ShortID,
		link.EncryptedURL,
		link.Kind.String(),
		link.Domain,
		nullString(string(link.Category)),
		link.TitleAlias,
		link.ClickCount,
		link.CreatedAt,
		nullTime(link.ExpiresAt),
		nullString(link.CreatedBy),
	)
	if err != nil {
		if isUniqueViolationError(err) {
			return fmt.Errorf("%s: %w", op, entity.ErrShortIDExists)
		}

		return fmt.Errorf("%s: failed to insert into wrapped_links table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%s: short id retired: %w", op, entity.ErrShortIDExists)
	}

	return nil
}

func (r *LinkRepository) SelectByShortID(ctx context.Context, shortID string) (*entity.WrappedLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.SelectByShortID"
	const query = `SELECT ` + linkColumns + ` FROM wrapped_links WHERE short_id = $1`

	var rec linkRecord

	if err := r.db.GetContext(ctx, &rec, query, shortID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from wrapped_links table: %w", op, err)
	}

	return rec.toEntity(), nil
}

func (r *LinkRepository) ShortIDTaken(ctx context.Context, shortID string) (bool, error) {
	const op = "adapter.repository.postgres.LinkRepository.ShortIDTaken"
	const query = `SELECT EXISTS (SELECT 1 FROM wrapped_links WHERE short_id = $1)
		OR EXISTS (SELECT 1 FROM retired_short_ids WHERE short_id = $1)`

	var taken bool

	if err := r.db.GetContext(ctx, &taken, query, shortID); err != nil {
		return false, fmt.Errorf("%s: failed to check short id: %w", op, err)
	}

	return taken, nil
}

func (r *LinkRepository) IncrementClicks(ctx context.Context, id string) error {
	const op = "adapter.repository.postgres.LinkRepository.IncrementClicks"
	const query = `UPDATE wrapped_links SET click_count = click_count + 1 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: failed to update wrapped_links table row: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
	}

	return nil
}

// DeleteExpired removes the links expired at now and moves their short ids to
// retired_short_ids in the same statement.
func (r *LinkRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	const op = "adapter.repository.postgres.LinkRepository.DeleteExpired"
	const query = `WITH deleted AS (
			DELETE FROM wrapped_links
			WHERE expires_at IS NOT NULL AND expires_at <= $1
			RETURNING short_id
		), retired AS (
			INSERT INTO retired_short_ids(short_id, retired_at)
			SELECT short_id, $1 FROM deleted
			ON CONFLICT (short_id) DO NOTHING
		)
		SELECT COUNT(*) FROM deleted`

	var deleted int64

	if err := r.db.GetContext(ctx, &deleted, query, now); err != nil {
		return 0, fmt.Errorf("%s: failed to delete from wrapped_links table: %w", op, err)
	}

	return deleted, nil
}

type statsRecord struct {
	TotalClicks    int64 `db:"total_clicks"`
	NormalLinks    int64 `db:"normal_links"`
	SensitiveLinks int64 `db:"sensitive_links"`
}

type domainCountRecord struct {
	Domain string `db:"domain"`
	Links  int64  `db:"links"`
	Clicks int64  `db:"clicks"`
}

func (r *LinkRepository) Stats(ctx context.Context, ownerID string, topDomains int) (*entity.Stats, error) {
	const op = "adapter.repository.postgres.LinkRepository.Stats"
	const totalsQuery = `SELECT
			COALESCE(SUM(click_count), 0) AS total_clicks,
			COUNT(*) FILTER (WHERE kind = 'normal') AS normal_links,
			COUNT(*) FILTER (WHERE kind = 'sensitive') AS sensitive_links
		FROM wrapped_links
		WHERE ($1::varchar = '' OR created_by = $1::varchar)`
	const topQuery = `SELECT domain, COUNT(*) AS links, COALESCE(SUM(click_count), 0) AS clicks
		FROM wrapped_links
		WHERE ($1::varchar = '' OR created_by = $1::varchar)
		GROUP BY domain
		ORDER BY clicks DESC, domain ASC
		LIMIT $2`

	var totals statsRecord

	if err := r.db.GetContext(ctx, &totals, totalsQuery, ownerID); err != nil {
		return nil, fmt.Errorf("%s: failed to aggregate wrapped_links table: %w", op, err)
	}

	var rows []domainCountRecord

	if err := r.db.SelectContext(ctx, &rows, topQuery, ownerID, topDomains); err != nil {
		return nil, fmt.Errorf("%s: failed to rank domains: %w", op, err)
	}

	stats := &entity.Stats{
		TotalClicks:    totals.TotalClicks,
		NormalLinks:    totals.NormalLinks,
		SensitiveLinks: totals.SensitiveLinks,
		TopDomains:     make([]entity.DomainCount, 0, len(rows)),
	}

	for _, row := range rows {
		stats.TopDomains = append(stats.TopDomains, entity.DomainCount{
			Domain: row.Domain,
			Links:  row.Links,
			Clicks: row.Clicks,
		})
	}

	return stats, nil
}

func (r *LinkRepository) Update(ctx context.Context, shortID string, upd entity.LinkUpdate) (*entity.WrappedLink, error) {
	const op = "adapter.repository.postgres.LinkRepository.Update"
	const query = `UPDATE wrapped_links SET
			title_alias = COALESCE($2::varchar, title_alias),
			expires_at = CASE
				WHEN $3::boolean THEN NULL
				WHEN $4::timestamptz IS NOT NULL THEN $4::timestamptz
				ELSE expires_at
			END
		WHERE short_id = $1
		RETURNING ` + linkColumns

	var alias sql.NullString
	if upd.TitleAlias != nil {
		alias = sql.NullString{String: *upd.TitleAlias, Valid: true}
	}

	var rec linkRecord

	if err := r.db.GetContext(ctx, &rec, query, shortID, alias, upd.ClearExpiry, nullTime(upd.ExpiresAt)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrLinkNotFound)
		}

		return nil, fmt.Errorf("%s: failed to update wrapped_links table row: %w", op, err)
	}

	return rec.toEntity(), nil
}
