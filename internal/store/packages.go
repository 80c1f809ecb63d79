// internal/store/packages.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"letter-service/internal/models"
	"letter-service/internal/workflow"

	"github.com/redis/go-redis/v9"
)

const (
	packagesCacheKey = "packages:active"
	packagesCacheTTL = 5 * time.Minute
)

// Packages stores service tiers in PostgreSQL with a Redis read-through
// cache on the public listing. Writes invalidate the cache.
type Packages struct {
	db    *sql.DB
	redis *redis.Client
}

func NewPackages(db *sql.DB, rdb *redis.Client) *Packages {
	return &Packages{db: db, redis: rdb}
}

func (s *Packages) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, price_cents, field_schema, active, created_at, updated_at
		FROM packages
		WHERE id = $1`, id)
	return scanPackage(row)
}

// ListActive returns the purchasable tiers, from cache when warm.
func (s *Packages) ListActive(ctx context.Context) ([]*models.Package, error) {
	if s.redis != nil {
		if val, err := s.redis.Get(ctx, packagesCacheKey).Result(); err == nil {
			var pkgs []*models.Package
			if err := json.Unmarshal([]byte(val), &pkgs); err == nil {
				return pkgs, nil
			}
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, price_cents, field_schema, active, created_at, updated_at
		FROM packages
		WHERE active = true
		ORDER BY price_cents`)
	if err != nil {
		return nil, fmt.Errorf("query packages: %w", err)
	}
	defer rows.Close()

	var pkgs []*models.Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(pkgs); err == nil {
			_ = s.redis.Set(ctx, packagesCacheKey, data, packagesCacheTTL).Err()
		}
	}
	return pkgs, nil
}

func (s *Packages) Create(ctx context.Context, pkg *models.Package) error {
	schema, err := json.Marshal(pkg.FieldSchema)
	if err != nil {
		return fmt.Errorf("marshal field schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO packages (id, name, description, price_cents, field_schema, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		pkg.ID, pkg.Name, pkg.Description, pkg.PriceCents, schema, pkg.Active, pkg.CreatedAt, pkg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert package: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Packages) Update(ctx context.Context, pkg *models.Package) error {
	schema, err := json.Marshal(pkg.FieldSchema)
	if err != nil {
		return fmt.Errorf("marshal field schema: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE packages
		SET name = $2, description = $3, price_cents = $4, field_schema = $5, active = $6, updated_at = $7
		WHERE id = $1`,
		pkg.ID, pkg.Name, pkg.Description, pkg.PriceCents, schema, pkg.Active, pkg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update package: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return workflow.ErrNotFound
	}
	s.invalidate(ctx)
	return nil
}

func (s *Packages) invalidate(ctx context.Context) {
	if s.redis != nil {
		_ = s.redis.Del(ctx, packagesCacheKey).Err()
	}
}

func scanPackage(row rowScanner) (*models.Package, error) {
	var (
		pkg         models.Package
		description sql.NullString
		schema      []byte
	)
	err := row.Scan(&pkg.ID, &pkg.Name, &description, &pkg.PriceCents, &schema, &pkg.Active, &pkg.CreatedAt, &pkg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, workflow.ErrNotFound
		}
		return nil, fmt.Errorf("scan package: %w", err)
	}
	pkg.Description = description.String
	if len(schema) > 0 {
		if err := json.Unmarshal(schema, &pkg.FieldSchema); err != nil {
			return nil, fmt.Errorf("unmarshal field schema: %w", err)
		}
	}
	return &pkg, nil
}
