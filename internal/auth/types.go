package auth

import "time"

// User is a directory entry as seen by authentication.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         Role
	FirstName    string
	LastName     string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile links a user to the student or faculty record they own, if any.
type Profile struct {
	StudentID int64
	FacultyID int64
}

// NewAccount describes a user to provision.
type NewAccount struct {
	Email         string
	Password      string
	Role          Role
	FirstName     string
	LastName      string
	StudentNumber string // required for students
}

// SecurityRecord holds per-user credential state.
type SecurityRecord struct {
	UserID              int64
	MustChangePassword  bool
	ResetTokenHash      string // hex sha256; empty when no token was issued
	ResetTokenExpiresAt time.Time
	ResetTokenConsumed  bool
	UpdatedAt           time.Time
}

// ResetToken is a freshly issued password reset token. Plaintext is never persisted.
type ResetToken struct {
	Plaintext string
	ExpiresAt time.Time
}

// Identity is the sanitized view of a user returned to clients.
type Identity struct {
	UserID             int64  `json:"user_id"`
	Email              string `json:"email"`
	Role               Role   `json:"role"`
	FirstName          string `json:"first_name"`
	LastName           string `json:"last_name"`
	Active             bool   `json:"is_active"`
	MustChangePassword bool   `json:"must_change_password"`
}

func identityOf(u *User, mustChange bool) Identity {
	return Identity{
		UserID:             u.ID,
		Email:              u.Email,
		Role:               u.Role,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Active:             u.Active,
		MustChangePassword: mustChange,
	}
}

// AccessToken is a signed bearer token and its expiry.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
}

// ForgotPasswordResult is returned by ForgotPassword. Token is empty when the
// email is unknown.
type ForgotPasswordResult struct {
	Message   string
	Token     string
	ExpiresAt time.Time
}
