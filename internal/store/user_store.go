package store

import (
	"context"
	"database/sql"
	"strings"

	"wallet/internal/db"
	"wallet/internal/models"
	"wallet/internal/money"

	"github.com/shopspring/decimal"
)

const userColumns = `id, name, email, hashed_password, hashed_pin, balance, created_at`

type UserStore struct {
	db      DB
	dialect db.Dialect
}

func NewUserStore(conn DB, dialect db.Dialect) *UserStore {
	return &UserStore{db: conn, dialect: dialect}
}

// NormalizeEmail is applied on every write and lookup so that email identity is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserStore) Create(ctx context.Context, tx Getter, name, email, passwordHash string, pinHash sql.NullString, balance decimal.Decimal) (int64, error) {
	var id int64
	err := tx.GetContext(ctx, &id, s.dialect.Rebind(`
		INSERT INTO users (name, email, hashed_password, hashed_pin, balance)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`), name, NormalizeEmail(email), passwordHash, pinHash, money.Format(balance))
	return id, err
}

func (s *UserStore) GetByID(ctx context.Context, userID int64) (models.User, error) {
	return s.Get(ctx, s.db, userID)
}

// Get reads a user through q, which is usually an open transaction.
func (s *UserStore) Get(ctx context.Context, q Getter, userID int64) (models.User, error) {
	var user models.User
	err := q.GetContext(ctx, &user, s.dialect.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), userID)
	return user, err
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, s.dialect.Rebind(`SELECT `+userColumns+` FROM users WHERE email = ?`), NormalizeEmail(email))
	return user, err
}

func (s *UserStore) LookupIDByEmail(ctx context.Context, q Getter, email string) (int64, error) {
	var id int64
	err := q.GetContext(ctx, &id, s.dialect.Rebind(`SELECT id FROM users WHERE email = ?`), NormalizeEmail(email))
	return id, err
}

// GetForUpdate reads the row and, where the backend supports it, holds its
// lock until the surrounding transaction ends.
func (s *UserStore) GetForUpdate(ctx context.Context, tx Getter, userID int64) (models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?` + s.dialect.LockClause()
	err := tx.GetContext(ctx, &user, s.dialect.Rebind(query), userID)
	return user, err
}

func (s *UserStore) UpdateBalance(ctx context.Context, tx Execer, userID int64, balance decimal.Decimal) error {
	res, err := tx.ExecContext(ctx, s.dialect.Rebind(`UPDATE users SET balance = ? WHERE id = ?`), money.Format(balance), userID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *UserStore) SetPIN(ctx context.Context, userID int64, pinHash string) error {
	res, err := s.db.ExecContext(ctx, s.dialect.Rebind(`UPDATE users SET hashed_pin = ? WHERE id = ?`), pinHash, userID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Search matches name or email, partially and case-insensitively. excludeID 0 excludes nobody.
func (s *UserStore) Search(ctx context.Context, q string, excludeID int64, limit int) ([]models.User, error) {
	pattern := containsPattern(strings.TrimSpace(q))
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE (email ` + s.dialect.Like + ` ? ESCAPE '\' OR name ` + s.dialect.Like + ` ? ESCAPE '\')
		  AND id <> ?
		ORDER BY name, id
		LIMIT ?
	`
	users := []models.User{}
	if err := s.db.SelectContext(ctx, &users, s.dialect.Rebind(query), pattern, pattern, excludeID, limit); err != nil {
		return nil, err
	}
	return users, nil
}
