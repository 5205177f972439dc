package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AntoineBreitwillerCSTB/addok/internal/index"
	"github.com/AntoineBreitwillerCSTB/addok/pkg/postgres"
	"github.com/lib/pq"
)

// Postgres stores raw documents as JSONB rows keyed by document key.
type Postgres struct {
	db    *postgres.Client
	table string // quoted
}

func quoteTable(table string) (string, error) {
	if table == "" {
		return "", errors.New("document table name must not be empty")
	}
	return pq.QuoteIdentifier(table), nil
}

// NewPostgres creates the table if needed.
func NewPostgres(ctx context.Context, db *postgres.Client, table string) (*Postgres, error) {
	quoted, err := quoteTable(table)
	if err != nil {
		return nil, err
	}
	p := &Postgres{db: db, table: quoted}
	_, err = db.DB.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (key TEXT PRIMARY KEY, fields JSONB NOT NULL)`, quoted))
	if err != nil {
		return nil, fmt.Errorf("creating table %s: %w", table, err)
	}
	return p, nil
}

func (p *Postgres) Fetch(ctx context.Context, key string) (index.RawDocument, error) {
	var data []byte
	err := p.db.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT fields FROM %s WHERE key = $1`, p.table), key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading document %s: %w", key, err)
	}
	var raw index.RawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", key, err)
	}
	return raw, nil
}

func (p *Postgres) Apply(ctx context.Context, ops []Op) error {
	if len(ops) == 0 {
		return nil
	}
	upsert := fmt.Sprintf(`INSERT INTO %s (key, fields) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET fields = EXCLUDED.fields`, p.table)
	del := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, p.table)
	return p.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, op := range ops {
			if op.Raw == nil {
				if _, err := tx.ExecContext(ctx, del, op.Key); err != nil {
					return fmt.Errorf("deleting %s: %w", op.Key, err)
				}
				continue
			}
			data, err := json.Marshal(op.Raw)
			if err != nil {
				return fmt.Errorf("encoding %s: %w", op.Key, err)
			}
			if _, err := tx.ExecContext(ctx, upsert, op.Key, data); err != nil {
				return fmt.Errorf("storing %s: %w", op.Key, err)
			}
		}
		return nil
	})
}

func (p *Postgres) Close() error {
	return p.db.Close()
}
