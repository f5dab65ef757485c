package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"wallet/internal/db"
	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const MaxNoteLength = 512

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrSenderNotFound    = errors.New("sender not found")
	ErrReceiverNotFound  = errors.New("receiver not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSameAccount       = errors.New("cannot transfer to same account")
	ErrNoteTooLong       = errors.New("note too long")
	ErrOperationFailed   = errors.New("transfer failed")
)

var validationErrors = []error{
	ErrInvalidAmount,
	ErrSenderNotFound,
	ErrReceiverNotFound,
	ErrInsufficientFunds,
	ErrSameAccount,
	ErrNoteTooLong,
}

// IsValidation reports whether err was caused by the request rather than by storage.
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type UserStore interface {
	Get(ctx context.Context, q store.Getter, userID int64) (models.User, error)
	LookupIDByEmail(ctx context.Context, q store.Getter, email string) (int64, error)
	GetForUpdate(ctx context.Context, tx store.Getter, userID int64) (models.User, error)
	UpdateBalance(ctx context.Context, tx store.Execer, userID int64, balance decimal.Decimal) error
}

type AuditStore interface {
	Append(ctx context.Context, tx store.Getter, senderID, receiverID int64, amount decimal.Decimal, note sql.NullString) (int64, error)
	Get(ctx context.Context, q store.Getter, id int64) (models.AuditLog, error)
}

type TransferService struct {
	txRunner   db.TxRunner
	userStore  UserStore
	auditStore AuditStore
}

func NewTransferService(txRunner db.TxRunner, userStore UserStore, auditStore AuditStore) *TransferService {
	return &TransferService{
		txRunner:   txRunner,
		userStore:  userStore,
		auditStore: auditStore,
	}
}

type TransferRequest struct {
	SenderID      int64
	ReceiverEmail string
	Amount        decimal.Decimal
	Note          string
}

// TransferResult holds the rows as they stood when the transfer committed.
type TransferResult struct {
	Sender   models.User
	Receiver models.User
	Entry    models.AuditLog
}

// Transfer moves Amount from the sender to the receiver and appends one audit
// entry, all in one atomic unit. When ctx already carries a transaction the
// unit becomes a savepoint inside it. Nothing is retried; lock conflicts come
// back as ErrOperationFailed. Notifying either party is left to the caller.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (TransferResult, error) {
	if !req.Amount.IsPositive() || !money.HasValidPrecision(req.Amount) {
		return TransferResult{}, ErrInvalidAmount
	}
	note := normalizeNote(req.Note)
	if utf8.RuneCountInString(note.String) > MaxNoteLength {
		return TransferResult{}, ErrNoteTooLong
	}

	var result TransferResult
	err := s.txRunner.WithTx(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := s.userStore.Get(ctx, tx, req.SenderID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSenderNotFound
			}
			return err
		}
		receiverID, err := s.userStore.LookupIDByEmail(ctx, tx, req.ReceiverEmail)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrReceiverNotFound
			}
			return err
		}
		if receiverID == req.SenderID {
			return ErrSameAccount
		}

		sender, receiver, err := lockTwoUsers(ctx, tx, s.userStore, req.SenderID, receiverID)
		if err != nil {
			return err
		}
		senderBalance := money.OrZero(sender.Balance)
		if senderBalance.LessThan(req.Amount) {
			return ErrInsufficientFunds
		}
		receiverBalance := money.OrZero(receiver.Balance)
		if err := s.userStore.UpdateBalance(ctx, tx, sender.ID, senderBalance.Sub(req.Amount)); err != nil {
			return err
		}
		if err := s.userStore.UpdateBalance(ctx, tx, receiver.ID, receiverBalance.Add(req.Amount)); err != nil {
			return err
		}
		entryID, err := s.auditStore.Append(ctx, tx, sender.ID, receiver.ID, req.Amount, note)
		if err != nil {
			return err
		}

		if result.Sender, err = s.userStore.Get(ctx, tx, sender.ID); err != nil {
			return err
		}
		if result.Receiver, err = s.userStore.Get(ctx, tx, receiver.ID); err != nil {
			return err
		}
		result.Entry, err = s.auditStore.Get(ctx, tx, entryID)
		return err
	})
	if err != nil {
		if IsValidation(err) {
			return TransferResult{}, err
		}
		if db.IsLockConflict(err) {
			log.Printf("transfer: lock conflict for sender %d: %v", req.SenderID, err)
		} else {
			log.Printf("transfer: sender %d: %v", req.SenderID, err)
		}
		return TransferResult{}, fmt.Errorf("%w: %w", ErrOperationFailed, err)
	}
	return result, nil
}

func normalizeNote(note string) sql.NullString {
	trimmed := strings.TrimSpace(note)
	if trimmed == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: trimmed, Valid: true}
}

// lockTwoUsers takes both row locks in ascending id order so that opposite
// transfers between the same pair queue behind each other instead of deadlocking.
func lockTwoUsers(ctx context.Context, tx store.Getter, users UserStore, senderID, receiverID int64) (models.User, models.User, error) {
	firstID, secondID := orderedIDs(senderID, receiverID)
	first, err := lockUser(ctx, tx, users, firstID, senderID)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	second, err := lockUser(ctx, tx, users, secondID, senderID)
	if err != nil {
		return models.User{}, models.User{}, err
	}
	if firstID == senderID {
		return first, second, nil
	}
	return second, first, nil
}

func lockUser(ctx context.Context, tx store.Getter, users UserStore, userID, senderID int64) (models.User, error) {
	user, err := users.GetForUpdate(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		if userID == senderID {
			return models.User{}, ErrSenderNotFound
		}
		return models.User{}, ErrReceiverNotFound
	}
	return user, err
}

// orderedIDs only fixes lock order; sender and receiver are both resolved
// before any lock is taken, so which not-found error wins does not change.
func orderedIDs(firstID, secondID int64) (int64, int64) {
	if firstID <= secondID {
		return firstID, secondID
	}
	return secondID, firstID
}

// Receipt is the client-facing view of a completed transfer. It is both the
// HTTP response body and the payload of the "transfer" event.
type Receipt struct {
	TransactionID   int64     `json:"transaction_id"`
	SenderID        int64     `json:"sender_id"`
	ReceiverID      int64     `json:"receiver_id"`
	Amount          string    `json:"amount"`
	SenderBalance   string    `json:"sender_balance"`
	ReceiverBalance string    `json:"receiver_balance"`
	Note            *string   `json:"note"`
	CreatedAt       time.Time `json:"created_at"`
}

func (r TransferResult) Receipt() Receipt {
	var note *string
	if r.Entry.Note.Valid {
		note = &r.Entry.Note.String
	}
	return Receipt{
		TransactionID:   r.Entry.ID,
		SenderID:        r.Sender.ID,
		ReceiverID:      r.Receiver.ID,
		Amount:          money.Format(r.Entry.Amount),
		SenderBalance:   money.Format(money.OrZero(r.Sender.Balance)),
		ReceiverBalance: money.Format(money.OrZero(r.Receiver.Balance)),
		Note:            note,
		CreatedAt:       r.Entry.CreatedAt.UTC(),
	}
}
