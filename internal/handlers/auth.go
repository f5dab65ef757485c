package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"wallet/internal/auth"
	"wallet/internal/db"
	"wallet/internal/middleware"
	"wallet/internal/validator"

	"github.com/jmoiron/sqlx"
)

const searchLimit = 10

type signupRequest struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Pin      *string `json:"pin"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var pinHash sql.NullString
	if req.Pin != nil && *req.Pin != "" {
		if err := validator.ValidatePIN(*req.Pin); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		hash, err := auth.HashPassword(*req.Pin)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to secure pin")
			return
		}
		pinHash = sql.NullString{String: hash, Valid: true}
	}
	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	var userID int64
	err = h.txRunner.WithTx(r.Context(), func(ctx context.Context, tx *sqlx.Tx) error {
		id, err := h.users.Create(ctx, tx, strings.TrimSpace(req.Name), req.Email, passwordHash, pinHash, h.initialBalance)
		userID = id
		return err
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("signup: %v", err)
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		log.Printf("signup: reload user %d: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"user":         profileOf(user),
		"access_token": token,
		"token_type":   "bearer",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		log.Printf("login: %v", err)
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load user")
		return
	}
	respondJSON(w, http.StatusOK, profileOf(user))
}

type setPINRequest struct {
	Pin string `json:"pin"`
}

func (h *Handler) SetPIN(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req setPINRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidatePIN(req.Pin); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := auth.HashPassword(req.Pin)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure pin")
		return
	}
	if err := h.users.SetPIN(r.Context(), userID, hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Printf("set-pin: user %d: %v", userID, err)
		respondError(w, http.StatusInternalServerError, "unable to set pin")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type searchResult struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Search is open to anonymous callers; a valid token only hides the caller.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	results := []searchResult{}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		respondJSON(w, http.StatusOK, results)
		return
	}
	callerID, _ := middleware.UserIDFromContext(r.Context())
	users, err := h.users.Search(r.Context(), q, callerID, searchLimit)
	if err != nil {
		log.Printf("search: %v", err)
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	for _, user := range users {
		results = append(results, searchResult{ID: user.ID, Name: user.Name, Email: user.Email})
	}
	respondJSON(w, http.StatusOK, results)
}
