package handlers

import (
	"context"
	"database/sql"

	"wallet/internal/models"
	"wallet/internal/services"
	"wallet/internal/store"
	"wallet/internal/websocket"

	"github.com/shopspring/decimal"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Getter, name, email, passwordHash string, pinHash sql.NullString, balance decimal.Decimal) (int64, error)
	GetByID(ctx context.Context, userID int64) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
	SetPIN(ctx context.Context, userID int64, pinHash string) error
	Search(ctx context.Context, q string, excludeID int64, limit int) ([]models.User, error)
}

type AuditStore interface {
	ListForUser(ctx context.Context, userID int64) ([]models.HistoryEntry, error)
}

type TransferService interface {
	Transfer(ctx context.Context, req services.TransferRequest) (services.TransferResult, error)
}

type Notifier interface {
	TransferCompleted(ctx context.Context, result services.TransferResult)
}

type StreamManager interface {
	websocket.Subscriber
	Bound() bool
}
