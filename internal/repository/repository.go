package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/railagent/railagent/internal/domain"
	"github.com/shopspring/decimal"
)

// TransferRepository is the system of record for transfers, their
// idempotency keys and their full status history.
type TransferRepository struct {
	store *Store
}

func NewTransferRepository(store *Store) *TransferRepository {
	return &TransferRepository{store: store}
}

// CreateTransferParams carries everything needed to persist a freshly
// executed transfer.
type CreateTransferParams struct {
	ID             string
	QuoteID        string
	Recipient      string
	Amount         decimal.Decimal
	FromToken      string
	ToToken        string
	ProviderName   string
	ProviderMode   domain.ProviderMode
	TxHash         string
	IdempotencyKey string
	SettleAfter    time.Time
}

// CreateTransfer inserts the transfer row with initial status submitted, the
// first history row, and the key->id mapping when an idempotency key was
// supplied. All three writes commit together or not at all.
func (r *TransferRepository) CreateTransfer(ctx context.Context, params CreateTransferParams) (*domain.Transfer, error) {
	err := r.store.RunInTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO transfers
				(id, quote_id, recipient, amount, from_token, to_token, provider_name, provider_mode, status, tx_hash, settle_after, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, NOW(), NOW())`,
			params.ID, params.QuoteID, params.Recipient, params.Amount,
			params.FromToken, params.ToToken, params.ProviderName, string(params.ProviderMode),
			string(domain.StatusSubmitted), params.TxHash, params.SettleAfter)
		if err != nil {
			return fmt.Errorf("insert transfer: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO transfer_state_history (transfer_id, status, tx_hash, created_at)
			VALUES ($1, $2, NULLIF($3, ''), NOW())`,
			params.ID, string(domain.StatusSubmitted), params.TxHash)
		if err != nil {
			return fmt.Errorf("insert initial history row: %w", err)
		}

		if params.IdempotencyKey != "" {
			_, err = tx.Exec(ctx, `
				INSERT INTO transfer_idempotency (idempotency_key, transfer_id, created_at)
				VALUES ($1, $2, NOW())`,
				params.IdempotencyKey, params.ID)
			if err != nil {
				return fmt.Errorf("insert idempotency mapping: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.GetTransfer(ctx, params.ID)
}

// AppendStatus atomically updates the current status, tx hash and updated_at
// and appends one history row. History rows are never edited or deleted.
func (r *TransferRepository) AppendStatus(ctx context.Context, id string, status domain.TransferStatus, txHash string) (*domain.Transfer, error) {
	err := r.store.RunInTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE transfers
			SET status = $2, tx_hash = COALESCE(NULLIF($3, ''), tx_hash), updated_at = NOW()
			WHERE id = $1`,
			id, string(status), txHash)
		if err != nil {
			return fmt.Errorf("update transfer status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrTransferNotFound
		}

		return appendHistoryRow(ctx, tx, id, status, txHash)
	})
	if err != nil {
		return nil, err
	}

	return r.GetTransfer(ctx, id)
}

// SettleSubmitted transitions a transfer from submitted to settled, guarded
// so concurrent settlement workers cannot double-fire. Returns
// domain.ErrNoPendingSettlement when the transfer is already final.
func (r *TransferRepository) SettleSubmitted(ctx context.Context, id string) (*domain.Transfer, error) {
	err := r.store.RunInTx(ctx, func(tx pgx.Tx) error {
		var txHash *string
		err := tx.QueryRow(ctx, `
			UPDATE transfers
			SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = $3
			RETURNING tx_hash`,
			id, string(domain.StatusSettled), string(domain.StatusSubmitted)).Scan(&txHash)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNoPendingSettlement
			}
			return fmt.Errorf("settle transfer: %w", err)
		}

		hash := ""
		if txHash != nil {
			hash = *txHash
		}
		return appendHistoryRow(ctx, tx, id, domain.StatusSettled, hash)
	})
	if err != nil {
		return nil, err
	}

	return r.GetTransfer(ctx, id)
}

func appendHistoryRow(ctx context.Context, tx pgx.Tx, id string, status domain.TransferStatus, txHash string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transfer_state_history (transfer_id, status, tx_hash, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NOW())`,
		id, string(status), txHash)
	if err != nil {
		return fmt.Errorf("append history row: %w", err)
	}
	return nil
}

// GetTransfer reconstructs the full entity including the ordered history and
// the idempotency key, if any. A missing key mapping is not an error.
func (r *TransferRepository) GetTransfer(ctx context.Context, id string) (*domain.Transfer, error) {
	t := &domain.Transfer{}
	var txHash, idemKey *string

	err := r.store.Pool().QueryRow(ctx, `
		SELECT t.id, t.quote_id, t.recipient, t.amount, t.from_token, t.to_token,
		       t.provider_name, t.provider_mode, t.status, t.tx_hash, t.created_at, t.updated_at,
		       ti.idempotency_key
		FROM transfers t
		LEFT JOIN transfer_idempotency ti ON ti.transfer_id = t.id
		WHERE t.id = $1`,
		id).Scan(&t.ID, &t.QuoteID, &t.Recipient, &t.Amount, &t.FromToken, &t.ToToken,
		&t.ProviderName, &t.ProviderMode, &t.Status, &txHash, &t.CreatedAt, &t.UpdatedAt, &idemKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if txHash != nil {
		t.TxHash = *txHash
	}
	if idemKey != nil {
		t.IdempotencyKey = *idemKey
	}

	rows, err := r.store.Pool().Query(ctx, `
		SELECT status, tx_hash, created_at
		FROM transfer_state_history
		WHERE transfer_id = $1
		ORDER BY id ASC`,
		id)
	if err != nil {
		return nil, fmt.Errorf("get transfer history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var change domain.StateChange
		var changeHash *string
		if err := rows.Scan(&change.Status, &changeHash, &change.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if changeHash != nil {
			change.TxHash = *changeHash
		}
		t.StateHistory = append(t.StateHistory, change)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read transfer history: %w", err)
	}

	return t, nil
}

// GetTransferByIdempotencyKey resolves the key mapping and delegates to
// GetTransfer. Callers use this to short-circuit duplicate submissions.
func (r *TransferRepository) GetTransferByIdempotencyKey(ctx context.Context, key string) (*domain.Transfer, error) {
	var transferID string
	err := r.store.Pool().QueryRow(ctx,
		`SELECT transfer_id FROM transfer_idempotency WHERE idempotency_key = $1`,
		key).Scan(&transferID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransferNotFound
		}
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return r.GetTransfer(ctx, transferID)
}

// ListAudit returns transfers newest first, bounded by limit.
func (r *TransferRepository) ListAudit(ctx context.Context, limit int32) ([]domain.AuditRecord, error) {
	rows, err := r.store.Pool().Query(ctx, `
		SELECT id, quote_id, from_token, to_token, amount, status, provider_mode, tx_hash, created_at, updated_at
		FROM transfers
		ORDER BY created_at DESC
		LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var txHash *string
		if err := rows.Scan(&rec.ID, &rec.QuoteID, &rec.FromToken, &rec.ToToken, &rec.Amount,
			&rec.Status, &rec.ProviderMode, &txHash, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		if txHash != nil {
			rec.TxHash = *txHash
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read audit rows: %w", err)
	}
	return records, nil
}

// ListSettleDue returns ids of submitted transfers whose settle-after
// deadline has elapsed, oldest first.
func (r *TransferRepository) ListSettleDue(ctx context.Context, limit int32) ([]string, error) {
	rows, err := r.store.Pool().Query(ctx, `
		SELECT id FROM transfers
		WHERE status = $1 AND settle_after <= NOW()
		ORDER BY settle_after ASC
		LIMIT $2`,
		string(domain.StatusSubmitted), limit)
	if err != nil {
		return nil, fmt.Errorf("list due settlements: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan settlement id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read settlement ids: %w", err)
	}
	return ids, nil
}

// SaveQuoteSnapshot upserts the served quote so a later transfer can be
// audited against what was quoted.
func (r *TransferRepository) SaveQuoteSnapshot(ctx context.Context, quoteID, fromToken, toToken string, amount decimal.Decimal, payload any, mode domain.ProviderMode) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode quote payload: %w", err)
	}

	_, err = r.store.Pool().Exec(ctx, `
		INSERT INTO quote_snapshots (quote_id, from_token, to_token, amount, payload, provider_mode, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (quote_id) DO UPDATE
		SET payload = EXCLUDED.payload, provider_mode = EXCLUDED.provider_mode`,
		quoteID, fromToken, toToken, amount, body, string(mode))
	if err != nil {
		return fmt.Errorf("save quote snapshot: %w", err)
	}
	return nil
}

// EnsureSchema creates the transfer tables when they do not exist yet.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	_, err := db.Exec(ctx, schemaSQL)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS transfers (
		id TEXT PRIMARY KEY,
		quote_id TEXT NOT NULL,
		recipient TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		from_token TEXT NOT NULL,
		to_token TEXT NOT NULL,
		provider_name TEXT NOT NULL,
		provider_mode TEXT NOT NULL,
		status TEXT NOT NULL,
		tx_hash TEXT,
		settle_after TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS transfer_idempotency (
		idempotency_key TEXT PRIMARY KEY,
		transfer_id TEXT NOT NULL REFERENCES transfers(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS transfer_state_history (
		id BIGSERIAL PRIMARY KEY,
		transfer_id TEXT NOT NULL REFERENCES transfers(id),
		status TEXT NOT NULL,
		tx_hash TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS quote_snapshots (
		quote_id TEXT PRIMARY KEY,
		from_token TEXT NOT NULL,
		to_token TEXT NOT NULL,
		amount NUMERIC NOT NULL,
		payload JSONB NOT NULL,
		provider_mode TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_created_at ON transfers(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transfers_settle_due ON transfers(settle_after) WHERE status = 'submitted';
	CREATE INDEX IF NOT EXISTS idx_history_transfer_id ON transfer_state_history(transfer_id, id);
`
