package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/compressed-token-wallet/internal/models"
)

type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseStore is the append-only action history.
type ClickHouseStore struct {
	conn driver.Conn
}

const createActionsTable = `
	CREATE TABLE IF NOT EXISTS actions (
		signature   String,
		kind        LowCardinality(String),
		owner       String,
		mint        String,
		output_mint String,
		amount      UInt64,
		timestamp   DateTime64(3, 'UTC'),
		success     Bool,
		error       String
	) ENGINE = MergeTree
	ORDER BY (owner, timestamp)
`

func NewClickHouseStore(ctx context.Context, cfg ClickHouseConfig, logger *logrus.Logger) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	if err := conn.Exec(ctx, createActionsTable); err != nil {
		return nil, fmt.Errorf("failed to create actions table: %w", err)
	}

	if logger != nil {
		logger.WithField("addr", cfg.Addr).Info("connected to ClickHouse")
	}
	return &ClickHouseStore{conn: conn}, nil
}

func (c *ClickHouseStore) InsertAction(ctx context.Context, ev *models.ActionEvent) error {
	query := `
		INSERT INTO actions (
			signature, kind, owner, mint, output_mint,
			amount, timestamp, success, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := c.conn.Exec(ctx, query,
		ev.Signature,
		string(ev.Kind),
		ev.Owner,
		ev.Mint,
		ev.OutputMint,
		ev.Amount,
		ev.Timestamp,
		ev.Success,
		ev.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	return nil
}

// RecentActions returns the newest actions of owner first.
func (c *ClickHouseStore) RecentActions(ctx context.Context, owner string, limit int) ([]models.ActionEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := c.conn.Query(ctx, `
		SELECT signature, kind, owner, mint, output_mint, amount, timestamp, success, error
		FROM actions
		WHERE owner = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var out []models.ActionEvent
	for rows.Next() {
		var (
			ev   models.ActionEvent
			kind string
		)
		if err := rows.Scan(&ev.Signature, &kind, &ev.Owner, &ev.Mint, &ev.OutputMint,
			&ev.Amount, &ev.Timestamp, &ev.Success, &ev.Error); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		ev.Kind = models.ActionKind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (c *ClickHouseStore) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }

func (c *ClickHouseStore) Close() error { return c.conn.Close() }
