package models

import "time"

// User is one row of the users table.
type User struct {
	ID           int64  `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
}

// Claims is the JWT payload issued by /token.
type Claims struct {
	UserID int64     `json:"user_id"`
	Email  string    `json:"email"`
	Exp    time.Time `json:"exp"`
}
