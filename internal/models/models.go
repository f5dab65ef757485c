package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

const AuditStatusSuccess = "SUCCESS"

type User struct {
	ID           int64               `db:"id" json:"id"`
	Name         string              `db:"name" json:"name"`
	Email        string              `db:"email" json:"email"`
	PasswordHash string              `db:"hashed_password" json:"-"`
	PinHash      sql.NullString      `db:"hashed_pin" json:"-"`
	Balance      decimal.NullDecimal `db:"balance" json:"balance"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
}

func (u User) HasPIN() bool {
	return u.PinHash.Valid && u.PinHash.String != ""
}

type AuditLog struct {
	ID         int64           `db:"id" json:"id"`
	SenderID   int64           `db:"sender_id" json:"sender_id"`
	ReceiverID int64           `db:"receiver_id" json:"receiver_id"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Note       sql.NullString  `db:"note" json:"note"`
	Status     string          `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// HistoryEntry is an audit row joined with both parties' display names.
type HistoryEntry struct {
	AuditLog
	SenderName   sql.NullString `db:"sender_name"`
	ReceiverName sql.NullString `db:"receiver_name"`
}
