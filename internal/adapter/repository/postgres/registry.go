package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/link-gateway/internal/entity"
)

type registryRecord struct {
	Domain   string `db:"domain"`
	Category string `db:"category"`
	Alias    string `db:"alias"`
}

// DomainRegistry is the administrable sensitive-domain registry backed by the
// sensitive_domains table.
type DomainRegistry struct {
	db *sqlx.DB
}

func NewDomainRegistry(db *sqlx.DB) *DomainRegistry {
	return &DomainRegistry{db: db}
}

func (r *DomainRegistry) Lookup(ctx context.Context, domain string) (entity.RegistryEntry, error) {
	const op = "adapter.repository.postgres.DomainRegistry.Lookup"
	const query = `SELECT domain, category, alias FROM sensitive_domains WHERE domain = $1`

	var rec registryRecord

	if err := r.db.GetContext(ctx, &rec, query, domain); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.RegistryEntry{}, fmt.Errorf("%s: %w", op, entity.ErrDomainNotFound)
		}

		return entity.RegistryEntry{}, fmt.Errorf("%s: failed to get row from sensitive_domains table: %w", op, err)
	}

	return entity.RegistryEntry{
		Domain:   rec.Domain,
		Category: entity.Category(rec.Category),
		Alias:    rec.Alias,
	}, nil
}

// Put adds or replaces a registry entry.
func (r *DomainRegistry) Put(ctx context.Context, e entity.RegistryEntry) error {
	const op = "adapter.repository.postgres.DomainRegistry.Put"
	const query = `INSERT INTO sensitive_domains(domain, category, alias) VALUES ($1, $2, $3)
		ON CONFLICT (domain) DO UPDATE SET category = EXCLUDED.category, alias = EXCLUDED.alias`

	if _, err := r.db.ExecContext(ctx, query, e.Domain, string(e.Category), e.Alias); err != nil {
		return fmt.Errorf("%s: failed to upsert into sensitive_domains table: %w", op, err)
	}

	return nil
}

func (r *DomainRegistry) Remove(ctx context.Context, domain string) error {
	const op = "adapter.repository.postgres.DomainRegistry.Remove"
	const query = `DELETE FROM sensitive_domains WHERE domain = $1`

	res, err := r.db.ExecContext(ctx, query, domain)
	if err != nil {
		return fmt.Errorf("%s: failed to delete from sensitive_domains table: %w", op, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: failed to get number of affected rows: %w", op, err)
	}

	if rowsAffected != 1 {
		return fmt.Errorf("%s: %w", op, entity.ErrDomainNotFound)
	}

	return nil
}
