package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"wallet/internal/models"
	"wallet/internal/money"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

type userProfile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Balance   string    `json:"balance"`
	HasPIN    bool      `json:"has_pin"`
	CreatedAt time.Time `json:"created_at"`
}

func profileOf(user models.User) userProfile {
	return userProfile{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Balance:   money.Format(money.OrZero(user.Balance)),
		HasPIN:    user.HasPIN(),
		CreatedAt: user.CreatedAt.UTC(),
	}
}
