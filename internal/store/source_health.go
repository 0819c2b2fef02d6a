package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Fantasim/vaultscan/internal/config"
	"github.com/Fantasim/vaultscan/internal/models"
)

// SourceHealthRow represents a row in the source_health table.
type SourceHealthRow struct {
	SourceName       string `json:"source"`
	Chain            string `json:"chain"`
	Kind             string `json:"kind"`
	Status           string `json:"status"`
	ConsecutiveFails int    `json:"consecutiveFails"`
	LastSuccess      string `json:"lastSuccess,omitempty"`
	LastError        string `json:"lastError,omitempty"`
	LastReason       string `json:"lastReason,omitempty"`
	LastErrorMsg     string `json:"lastErrorMsg,omitempty"`
	LastEndpoint     string `json:"lastEndpoint,omitempty"`
	CircuitState     string `json:"circuitState"`
	UpdatedAt        string `json:"updatedAt"`
}

const selectSourceHealth = `SELECT source_name, chain, kind, status, consecutive_fails,
	        COALESCE(last_success, ''), COALESCE(last_error, ''),
	        COALESCE(last_reason, ''), COALESCE(last_error_msg, ''),
	        COALESCE(last_endpoint, ''), circuit_state, updated_at
	 FROM source_health`

// UpsertSourceHealth inserts or replaces a source health record.
func (s *Store) UpsertSourceHealth(ctx context.Context, h SourceHealthRow) error {
	if h.CircuitState == "" {
		h.CircuitState = config.CircuitClosed
	}
	if h.Status == "" {
		h.Status = config.SourceStatusHealthy
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_health (source_name, chain, kind, status, consecutive_fails, last_success, last_error, last_reason, last_error_msg, last_endpoint, circuit_state)
		 VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?)
		 ON CONFLICT(source_name) DO UPDATE SET
		   chain = excluded.chain,
		   kind = excluded.kind,
		   status = excluded.status,
		   consecutive_fails = excluded.consecutive_fails,
		   last_success = excluded.last_success,
		   last_error = excluded.last_error,
		   last_reason = excluded.last_reason,
		   last_error_msg = excluded.last_error_msg,
		   last_endpoint = excluded.last_endpoint,
		   circuit_state = excluded.circuit_state,
		   updated_at = datetime('now')`,
		h.SourceName, h.Chain, h.Kind, h.Status, h.ConsecutiveFails,
		h.LastSuccess, h.LastError, h.LastReason, h.LastErrorMsg, h.LastEndpoint,
		h.CircuitState,
	)
	if err != nil {
		return fmt.Errorf("upsert source health %s: %w", h.SourceName, err)
	}

	slog.Debug("source health upserted",
		"source", h.SourceName,
		"status", h.Status,
		"circuitState", h.CircuitState,
	)
	return nil
}

// GetSourceHealth returns a single source's health record.
// Returns nil if not found.
func (s *Store) GetSourceHealth(ctx context.Context, name string) (*SourceHealthRow, error) {
	row := s.db.QueryRowContext(ctx, selectSourceHealth+` WHERE source_name = ?`, name)

	var h SourceHealthRow
	err := row.Scan(
		&h.SourceName, &h.Chain, &h.Kind, &h.Status, &h.ConsecutiveFails,
		&h.LastSuccess, &h.LastError, &h.LastReason, &h.LastErrorMsg,
		&h.LastEndpoint, &h.CircuitState, &h.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query source health %s: %w", name, err)
	}
	return &h, nil
}

// GetAllSourceHealth returns all source health records ordered by chain then name.
func (s *Store) GetAllSourceHealth(ctx context.Context) ([]SourceHealthRow, error) {
	rows, err := s.db.QueryContext(ctx, selectSourceHealth+` ORDER BY chain ASC, source_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all source health: %w", err)
	}
	defer rows.Close()

	results := []SourceHealthRow{}
	for rows.Next() {
		var h SourceHealthRow
		if err := rows.Scan(
			&h.SourceName, &h.Chain, &h.Kind, &h.Status, &h.ConsecutiveFails,
			&h.LastSuccess, &h.LastError, &h.LastReason, &h.LastErrorMsg,
			&h.LastEndpoint, &h.CircuitState, &h.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan source health row: %w", err)
		}
		results = append(results, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate source health rows: %w", err)
	}
	return results, nil
}

// RecordOutcomes folds one aggregate call's outcomes into the stored health.
// Skipped outcomes carry no health signal and are ignored.
func (s *Store) RecordOutcomes(ctx context.Context, outcomes []models.FetchOutcome) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin source health transaction: %w", err)
	}
	defer tx.Rollback()

	recorded := 0
	for _, o := range outcomes {
		if o.Skipped || o.Source == "" {
			continue
		}

		circuit := o.CircuitState
		if circuit == "" {
			circuit = config.CircuitClosed
		}

		if o.OK() {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO source_health (source_name, chain, kind, status, consecutive_fails, last_success, last_endpoint, circuit_state)
				 VALUES (?, ?, ?, ?, 0, datetime('now'), NULLIF(?, ''), ?)
				 ON CONFLICT(source_name) DO UPDATE SET
				   chain = excluded.chain,
				   kind = excluded.kind,
				   status = excluded.status,
				   consecutive_fails = 0,
				   last_success = excluded.last_success,
				   last_endpoint = excluded.last_endpoint,
				   circuit_state = excluded.circuit_state,
				   updated_at = datetime('now')`,
				o.Source, o.Chain, string(o.Kind), statusFor(true, circuit), o.Endpoint, circuit,
			)
		} else {
			msg := ""
			if o.Err != nil {
				msg = o.Err.Error()
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO source_health (source_name, chain, kind, status, consecutive_fails, last_error, last_reason, last_error_msg, last_endpoint, circuit_state)
				 VALUES (?, ?, ?, ?, 1, datetime('now'), ?, ?, NULLIF(?, ''), ?)
				 ON CONFLICT(source_name) DO UPDATE SET
				   chain = excluded.chain,
				   kind = excluded.kind,
				   status = excluded.status,
				   consecutive_fails = source_health.consecutive_fails + 1,
				   last_error = excluded.last_error,
				   last_reason = excluded.last_reason,
				   last_error_msg = excluded.last_error_msg,
				   last_endpoint = excluded.last_endpoint,
				   circuit_state = excluded.circuit_state,
				   updated_at = datetime('now')`,
				o.Source, o.Chain, string(o.Kind), statusFor(false, circuit), string(o.Reason), msg, o.Endpoint, circuit,
			)
		}
		if err != nil {
			return fmt.Errorf("record outcome of %s: %w", o.Source, err)
		}
		recorded++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit source health: %w", err)
	}

	slog.Debug("source outcomes recorded", "count", recorded)
	return nil
}

// statusFor derives the health status: an open breaker means down, a
// failure or a probing breaker means degraded.
func statusFor(ok bool, circuit string) string {
	switch {
	case circuit == config.CircuitOpen:
		return config.SourceStatusDown
	case !ok || circuit == config.CircuitHalfOpen:
		return config.SourceStatusDegraded
	default:
		return config.SourceStatusHealthy
	}
}
