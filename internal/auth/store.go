package auth

import "context"

// UserDirectory reads and updates user accounts.
type UserDirectory interface {
	// FindByEmail matches email case-insensitively. Missing users yield ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	// Profile resolves the student and faculty records owned by a user.
	// A user without either profile gets a zero Profile and no error.
	Profile(ctx context.Context, userID int64) (Profile, error)
	// CreateAccount inserts the user, its role profile and a security record
	// flagged for a forced password change. Duplicate emails yield ErrConflict.
	CreateAccount(ctx context.Context, acct NewAccount, passwordHash string) (*User, error)
}

// SecurityStore persists per-user credential state.
type SecurityStore interface {
	// EnsureSchema is idempotent and runs once at process start.
	EnsureSchema(ctx context.Context) error
	// GetByUserID reports false when the user has no security record.
	GetByUserID(ctx context.Context, userID int64) (SecurityRecord, bool, error)
	// IssueResetToken replaces any previous token for the user.
	IssueResetToken(ctx context.Context, userID int64) (ResetToken, error)
	// ConsumeResetToken atomically marks a valid token consumed and returns its
	// owner. Unknown, expired and already consumed tokens all report false.
	ConsumeResetToken(ctx context.Context, plaintext string) (int64, bool, error)
	// RedeemResetToken consumes the token and stores passwordHash for its owner
	// as one unit: either both happen or neither does.
	RedeemResetToken(ctx context.Context, plaintext, passwordHash string) (int64, bool, error)
	SetMustChangePassword(ctx context.Context, userID int64, value bool) error
}
