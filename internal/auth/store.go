// Package auth implements the user store and JWT issuer/validator
// that back the /token endpoint and bearer-auth middleware.
package auth

import (
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/ralt/signserver/internal/models"
)

// UserStore wraps the single users(id, email UNIQUE, password_hash) table.
type UserStore struct {
	db *sqlx.DB
}

// OpenUserStore opens a Postgres connection pool for databaseURL and
// applies the configured pool limits.
func OpenUserStore(databaseURL string, maxOpenConns, maxIdleConns int) (*UserStore, error) {
	db, err := sqlx.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("auth: open database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("auth: ping database: %w", err)
	}
	return &UserStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *UserStore) Close() error { return s.db.Close() }

// Authenticate looks up email and compares password against the
// stored bcrypt hash, returning models.Unauthorized on any mismatch
// (including "user not found") so callers can't distinguish the two.
func (s *UserStore) Authenticate(email, password string) (*models.User, error) {
	var user models.User
	err := s.db.Get(&user, `SELECT id, email, password_hash FROM users WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return nil, models.Unauthorized("invalid email or password")
	}
	if err != nil {
		return nil, fmt.Errorf("auth: query user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, models.Unauthorized("invalid email or password")
	}
	return &user, nil
}

// CreateUser inserts a new user with a bcrypt-hashed password.
func (s *UserStore) CreateUser(email, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	var user models.User
	err = s.db.Get(&user, `
		INSERT INTO users (email, password_hash) VALUES ($1, $2)
		RETURNING id, email, password_hash`, email, string(hash))
	if err != nil {
		return nil, fmt.Errorf("auth: insert user: %w", err)
	}
	return &user, nil
}

// ResetPassword updates email's password hash.
func (s *UserStore) ResetPassword(email, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}

	res, err := s.db.Exec(`UPDATE users SET password_hash = $1 WHERE email = $2`, string(hash), email)
	if err != nil {
		return fmt.Errorf("auth: update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("auth: no user with email %s", email)
	}
	return nil
}

// DeleteUser removes email from the users table.
func (s *UserStore) DeleteUser(email string) error {
	res, err := s.db.Exec(`DELETE FROM users WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("auth: delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("auth: no user with email %s", email)
	}
	return nil
}

// Health pings the database, for signctl db_health.
func (s *UserStore) Health() error {
	return s.db.Ping()
}

// PoolStats exposes sql.DBStats for signctl pool_stats.
func (s *UserStore) PoolStats() sql.DBStats {
	return s.db.Stats()
}
