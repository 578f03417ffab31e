package model

import "time"

// Role is the authorization role carried in access tokens.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// AccountStatus gates login. Inactive accounts cannot authenticate.
type AccountStatus string

const (
	AccountActive   AccountStatus = "active"
	AccountInactive AccountStatus = "inactive"
)

// User represents an application user record as stored in the
// `users` table. Email is unique and always stored lowercased.
// Verification and reset tokens are stored as SHA-256 hashes; the
// raw values only ever leave the process inside an email.
//
// Fields:
//  ID                – uuid primary key.
//  Nicename          – display name.
//  Email             – unique, lowercased.
//  PasswordHash      – bcrypt hash.
//  Role              – user | admin.
//  Status            – active | inactive.
//  Balance           – account balance, mutated by payment/fund flows.
//  EmailVerified     – whether the address has been confirmed.
//  VerifyTokenHash   – hash of the pending verification token (nullable).
//  VerifyExpiresAt   – expiry of the verification token (nullable).
//  ResetTokenHash    – hash of the pending password reset token (nullable).
//  ResetExpiresAt    – expiry of the password reset token (nullable).
//  LastLoginAt       – timestamp of the last successful login (nullable).
type User struct {
	ID              string        `json:"id"`
	Nicename        string        `json:"nicename"`
	Email           string        `json:"email"`
	PasswordHash    string        `json:"-"`
	Role            Role          `json:"role"`
	Status          AccountStatus `json:"status"`
	Balance         float64       `json:"balance"`
	EmailVerified   bool          `json:"emailVerified"`
	VerifyTokenHash *string       `json:"-"`
	VerifyExpiresAt *time.Time    `json:"-"`
	ResetTokenHash  *string       `json:"-"`
	ResetExpiresAt  *time.Time    `json:"-"`
	LastLoginAt     *time.Time    `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// IsActive reports whether the account may log in.
func (u User) IsActive() bool { return u.Status == AccountActive }

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user and contains metadata for expiry
// and revocation.  The plain token is not stored; only its
// SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    string     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
