package store

import (
	"context"
	"database/sql"

	"wallet/internal/db"
	"wallet/internal/models"
	"wallet/internal/money"

	"github.com/shopspring/decimal"
)

// AuditStore is append-only. The schema rejects UPDATE and DELETE on audit_logs.
type AuditStore struct {
	db      DB
	dialect db.Dialect
}

func NewAuditStore(conn DB, dialect db.Dialect) *AuditStore {
	return &AuditStore{db: conn, dialect: dialect}
}

func (s *AuditStore) Append(ctx context.Context, tx Getter, senderID, receiverID int64, amount decimal.Decimal, note sql.NullString) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, s.dialect.Rebind(`
		INSERT INTO audit_logs (sender_id, receiver_id, amount, note, status)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`), senderID, receiverID, money.Format(amount), note, models.AuditStatusSuccess)
	return id, err
}

func (s *AuditStore) Get(ctx context.Context, q Getter, id int64) (models.AuditLog, error) {
	var entry models.AuditLog
	err := q.GetContext(ctx, &entry, s.dialect.Rebind(`
		SELECT id, sender_id, receiver_id, amount, note, status, created_at
		FROM audit_logs
		WHERE id = ?
	`), id)
	return entry, err
}

// ListForUser returns every entry the user sent or received, newest first.
func (s *AuditStore) ListForUser(ctx context.Context, userID int64) ([]models.HistoryEntry, error) {
	entries := []models.HistoryEntry{}
	err := s.db.SelectContext(ctx, &entries, s.dialect.Rebind(`
		SELECT a.id, a.sender_id, a.receiver_id, a.amount, a.note, a.status, a.created_at,
		       su.name AS sender_name, ru.name AS receiver_name
		FROM audit_logs a
		LEFT JOIN users su ON su.id = a.sender_id
		LEFT JOIN users ru ON ru.id = a.receiver_id
		WHERE a.sender_id = ? OR a.receiver_id = ?
		ORDER BY a.created_at DESC, a.id DESC
	`), userID, userID)
	if err != nil {
		return nil, err
	}
	return entries, nil
}
