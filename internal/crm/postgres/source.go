// Package postgres reads a snapshot of open deals from a PostgreSQL table,
// for pipelines whose CRM data is already replicated into the warehouse.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/iWorld-y/deal_radar/internal/config"
	"github.com/iWorld-y/deal_radar/internal/crm"
)

// Source is a read-only deal snapshot source backed by PostgreSQL.
type Source struct {
	db    *sql.DB
	table string
}

// NewSource opens the database connection and verifies it.
func NewSource(cfg config.PostgresConfig) (*Source, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "open_deals"
	}
	return &Source{db: db, table: table}, nil
}

var _ crm.Source = (*Source)(nil)

// Close releases the underlying connection pool.
func (s *Source) Close() error {
	return s.db.Close()
}

// FetchDeals reads up to limit open deals ordered by identifier. Nullable
// columns are only set in the raw map when present, so the normalizer sees
// them as absent rather than as zero values.
func (s *Source) FetchDeals(ctx context.Context, limit int) ([]map[string]any, error) {
	query := fmt.Sprintf(`SELECT deal_id, name, stage, amount, owner_id, created_at, last_activity_at, stage_entered_at, last_message
FROM %s ORDER BY deal_id LIMIT $1`, s.table)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query deals: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var (
			id           string
			name         sql.NullString
			stage        sql.NullString
			amount       sql.NullFloat64
			owner        sql.NullString
			createdAt    sql.NullTime
			lastActivity sql.NullTime
			stageEntered sql.NullTime
			lastMessage  sql.NullString
		)
		if err := rows.Scan(&id, &name, &stage, &amount, &owner, &createdAt, &lastActivity, &stageEntered, &lastMessage); err != nil {
			return nil, fmt.Errorf("scan deal row: %w", err)
		}

		raw := map[string]any{crm.FieldID: id}
		if name.Valid {
			raw[crm.FieldName] = name.String
		}
		if stage.Valid {
			raw[crm.FieldStage] = stage.String
		}
		if amount.Valid {
			raw[crm.FieldAmount] = amount.Float64
		}
		if owner.Valid {
			raw[crm.FieldOwner] = owner.String
		}
		if createdAt.Valid {
			raw[crm.FieldCreatedAt] = createdAt.Time
		}
		if lastActivity.Valid {
			raw[crm.FieldLastActivityAt] = lastActivity.Time
		}
		if stageEntered.Valid {
			raw[crm.FieldStageEnteredAt] = stageEntered.Time
		}
		if lastMessage.Valid {
			raw[crm.FieldLastMessage] = lastMessage.String
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}
