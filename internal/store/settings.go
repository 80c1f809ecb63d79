// internal/store/settings.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"letter-service/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	settingsCacheKey = "settings:all"
	settingsCacheTTL = 5 * time.Minute
)

// Settings stores white-label site configuration (branding, role display
// names) as key/value rows, with the full map cached in Redis since every
// page render reads it.
type Settings struct {
	db    *sql.DB
	redis *redis.Client
}

func NewSettings(db *sql.DB, rdb *redis.Client) *Settings {
	return &Settings{db: db, redis: rdb}
}

// All returns the full settings map.
func (s *Settings) All(ctx context.Context) (map[string]string, error) {
	if s.redis != nil {
		if val, err := s.redis.Get(ctx, settingsCacheKey).Result(); err == nil {
			var out map[string]string
			if err := json.Unmarshal([]byte(val), &out); err == nil {
				return out, nil
			}
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM site_settings`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(out); err == nil {
			_ = s.redis.Set(ctx, settingsCacheKey, data, settingsCacheTTL).Err()
		}
	}
	return out, nil
}

// Set upserts one setting and drops the cache.
func (s *Settings) Set(ctx context.Context, setting *models.SiteSetting) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO site_settings (key, value, updated_by, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_by = $3, updated_at = $4`,
		setting.Key, setting.Value, setting.UpdatedBy, setting.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	if s.redis != nil {
		_ = s.redis.Del(ctx, settingsCacheKey).Err()
	}
	return nil
}
