package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"wallet/internal/auth"
	"wallet/internal/middleware"
	"wallet/internal/models"
	"wallet/internal/money"
	"wallet/internal/services"
)

type transferRequest struct {
	ReceiverEmail string      `json:"receiver_email"`
	Amount        json.Number `json:"amount"`
	Pin           string      `json:"pin"`
	Note          *string     `json:"note"`
}

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_payload")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}

	sender, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "sender_not_found")
			return
		}
		log.Printf("transfer: load sender %d: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "transfer_failed")
		return
	}
	if !sender.HasPIN() {
		respondError(w, http.StatusBadRequest, "pin_not_set")
		return
	}
	if !auth.CheckPassword(sender.PinHash.String, req.Pin) {
		respondError(w, http.StatusForbidden, "invalid_pin")
		return
	}

	transfer := services.TransferRequest{
		SenderID:      userID,
		ReceiverEmail: req.ReceiverEmail,
		Amount:        amount,
	}
	if req.Note != nil {
		transfer.Note = *req.Note
	}
	result, err := h.transfers.Transfer(r.Context(), transfer)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "invalid_amount")
		case errors.Is(err, services.ErrReceiverNotFound):
			respondError(w, http.StatusBadRequest, "receiver_not_found")
		case errors.Is(err, services.ErrInsufficientFunds):
			respondError(w, http.StatusBadRequest, "insufficient_funds")
		case errors.Is(err, services.ErrSameAccount):
			respondError(w, http.StatusBadRequest, "same_account")
		case errors.Is(err, services.ErrNoteTooLong):
			respondError(w, http.StatusBadRequest, "note_too_long")
		case errors.Is(err, services.ErrSenderNotFound):
			respondError(w, http.StatusNotFound, "sender_not_found")
		default:
			respondError(w, http.StatusInternalServerError, "transfer_failed")
		}
		return
	}
	h.notifier.TransferCompleted(r.Context(), result)
	respondJSON(w, http.StatusOK, result.Receipt())
}

type historyItem struct {
	ID               int64   `json:"id"`
	Type             string  `json:"type"`
	SenderName       string  `json:"sender_name"`
	ReceiverName     string  `json:"receiver_name"`
	CounterpartyName string  `json:"counterparty_name"`
	Amount           string  `json:"amount"`
	Note             *string `json:"note"`
	Status           string  `json:"status"`
	CreatedAt        string  `json:"created_at"`
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	entries, err := h.audit.ListForUser(r.Context(), userID)
	if err != nil {
		log.Printf("transactions: user %d: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "unable to load transactions")
		return
	}
	items := make([]historyItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, historyItemFor(userID, entry))
	}
	respondJSON(w, http.StatusOK, items)
}

// historyItemFor describes entry from the point of view of userID.
func historyItemFor(userID int64, entry models.HistoryEntry) historyItem {
	item := historyItem{
		ID:           entry.ID,
		Type:         "credited",
		SenderName:   entry.SenderName.String,
		ReceiverName: entry.ReceiverName.String,
		Amount:       money.Format(entry.Amount),
		Status:       entry.Status,
		CreatedAt:    entry.CreatedAt.UTC().Format(time.RFC3339),
	}
	item.CounterpartyName = item.SenderName
	if entry.SenderID == userID {
		item.Type = "debited"
		item.CounterpartyName = item.ReceiverName
	}
	if entry.Note.Valid {
		note := entry.Note.String
		item.Note = &note
	}
	return item
}
