package registry

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// OverrideStore abstracts the DB query for testability.
type OverrideStore interface {
	FetchOverrides(ctx context.Context) ([]OverrideRow, error)
}

// OverrideRow is one row of the tool_overrides table. TimeoutClass is
// empty when the row only disables a tool.
type OverrideRow struct {
	Tool         string
	Disabled     bool
	TimeoutClass string
}

// sqlOverrideStore is the real implementation using *sql.DB.
type sqlOverrideStore struct {
	db *sql.DB
}

func (s *sqlOverrideStore) FetchOverrides(ctx context.Context) ([]OverrideRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tool_name, disabled, COALESCE(timeout_class, '')
		FROM tool_overrides
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OverrideRow
	for rows.Next() {
		var r OverrideRow
		if err := rows.Scan(&r.Tool, &r.Disabled, &r.TimeoutClass); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadOverrides reads tool overrides from Postgres once at startup.
// Overrides change rarely; operators restart the gateway to pick up new
// rows, so there is no background refresh.
func LoadOverrides(ctx context.Context, db *sql.DB, logger *zap.Logger) (Overrides, error) {
	return loadOverridesFromStore(ctx, &sqlOverrideStore{db: db}, logger)
}

// loadOverridesFromStore loads from a custom store (for testing).
func loadOverridesFromStore(ctx context.Context, store OverrideStore, logger *zap.Logger) (Overrides, error) {
	rows, err := store.FetchOverrides(ctx)
	if err != nil {
		return Overrides{}, fmt.Errorf("LoadOverrides: %w", err)
	}

	var o Overrides
	for _, row := range rows {
		if row.Disabled {
			o.Disabled = append(o.Disabled, row.Tool)
		}
		if row.TimeoutClass != "" {
			if o.Timeouts == nil {
				o.Timeouts = make(map[string]string)
			}
			o.Timeouts[row.Tool] = row.TimeoutClass
		}
	}

	logger.Info("loaded tool overrides",
		zap.Int("rows", len(rows)),
		zap.Int("disabled", len(o.Disabled)),
		zap.Int("timeouts", len(o.Timeouts)),
	)
	return o, nil
}
