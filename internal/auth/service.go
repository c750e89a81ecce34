package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const (
	DefaultMinPasswordLength = 8

	msgResetIssued  = "Password reset token generated."
	msgResetGeneric = "If the email exists, a reset token has been created."
)

// Service implements the credential flows: login, password reset and change.
type Service struct {
	users    UserDirectory
	security SecurityStore
	signer   *TokenSigner
	hasher   PasswordHasher
	now      func() time.Time

	accessTTL      time.Duration
	minPasswordLen int

	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithHasher replaces the default bcrypt hasher.
func WithHasher(h PasswordHasher) ServiceOption {
	return func(s *Service) error {
		if h == nil {
			return errors.New("auth: hasher must not be nil")
		}
		s.hasher = h
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithMinPasswordLength sets the shortest accepted new password.
func WithMinPasswordLength(n int) ServiceOption {
	return func(s *Service) error {
		if n < 1 {
			return fmt.Errorf("auth: minimum password length must be positive, got %d", n)
		}
		s.minPasswordLen = n
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(users UserDirectory, security SecurityStore, signer *TokenSigner, opts ...ServiceOption) (*Service, error) {
	if users == nil || security == nil || signer == nil {
		return nil, errors.New("auth: user directory, security store and signer are required")
	}
	svc := &Service{
		users:          users,
		security:       security,
		signer:         signer,
		hasher:         NewBcryptHasher(DefaultBcryptCost),
		now:            time.Now,
		accessTTL:      DefaultAccessTTL,
		minPasswordLen: DefaultMinPasswordLength,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// AccessTTL is the lifetime of tokens issued by IssueAccessToken.
func (s *Service) AccessTTL() time.Duration { return s.accessTTL }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// burnVerify spends a hash comparison when no user matched, so response time
// does not reveal whether the account exists.
func (s *Service) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("unirecords-dummy-password")
	})
	_ = s.hasher.Verify(password, s.dummyHash)
}

func (s *Service) checkNewPassword(password string) error {
	if utf8.RuneCountInString(password) < s.minPasswordLen {
		return invalidInput(fmt.Sprintf("Password must be at least %d characters", s.minPasswordLen))
	}
	if len(password) > maxPasswordBytes {
		return invalidInput(fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}

// Login verifies credentials. Unknown emails and wrong passwords fail with the
// same ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Identity, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Identity{}, invalidInput("Email and password are required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.burnVerify(password)
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return Identity{}, ErrInvalidCredentials
	}
	if !user.Active {
		return Identity{}, ErrAccountInactive
	}
	rec, found, err := s.security.GetByUserID(ctx, user.ID)
	if err != nil {
		return Identity{}, err
	}
	return identityOf(user, found && rec.MustChangePassword), nil
}

// IssueAccessToken signs a bearer token for id. It performs no I/O.
func (s *Service) IssueAccessToken(id Identity) (AccessToken, error) {
	return s.signer.Issue(TokenClaims{UserID: id.UserID, Email: id.Email, Role: id.Role}, s.accessTTL)
}

// ForgotPassword issues a reset token when the email belongs to a user. The
// result for an unknown email carries only a generic message.
func (s *Service) ForgotPassword(ctx context.Context, email string) (ForgotPasswordResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return ForgotPasswordResult{}, invalidInput("Email is required")
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ForgotPasswordResult{Message: msgResetGeneric}, nil
		}
		return ForgotPasswordResult{}, err
	}
	tok, err := s.security.IssueResetToken(ctx, user.ID)
	if err != nil {
		return ForgotPasswordResult{}, err
	}
	return ForgotPasswordResult{
		Message:   msgResetIssued,
		Token:     tok.Plaintext,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

// ResetPassword consumes token and replaces the owner's password in one store
// call. The must-change flag is left as it was.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (int64, error) {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return 0, invalidInput("token and new_password are required")
	}
	if err := s.checkNewPassword(newPassword); err != nil {
		return 0, err
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return 0, err
	}
	userID, ok, err := s.security.RedeemResetToken(ctx, token, hash)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrInvalidResetToken
	}
	return userID, nil
}

// ChangePassword replaces the password of an authenticated user after
// re-checking the current one, then clears the must-change flag.
func (s *Service) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if current == "" || next == "" {
		return invalidInput("current_password and new_password are required")
	}
	if err := s.checkNewPassword(next); err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound("User not found")
		}
		return err
	}
	if !s.hasher.Verify(current, user.PasswordHash) {
		return ErrIncorrectPassword
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}
	return s.security.SetMustChangePassword(ctx, userID, false)
}

// Authenticate verifies a bearer token and resolves the caller's profile.
func (s *Service) Authenticate(ctx context.Context, token string) (Caller, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return Caller{}, err
	}
	profile, err := s.users.Profile(ctx, claims.UserID)
	if err != nil {
		return Caller{}, err
	}
	return Caller{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		StudentID: profile.StudentID,
		FacultyID: profile.FacultyID,
	}, nil
}

// Me returns the current identity of userID.
func (s *Service) Me(ctx context.Context, userID int64) (Identity, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, notFound("User not found")
		}
		return Identity{}, err
	}
	rec, found, err := s.security.GetByUserID(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	return identityOf(user, found && rec.MustChangePassword), nil
}

// ProvisionAccount creates a user that must change the initial password on
// first use.
func (s *Service) ProvisionAccount(ctx context.Context, acct NewAccount) (Identity, error) {
	acct.Email = normalizeEmail(acct.Email)
	acct.FirstName = strings.TrimSpace(acct.FirstName)
	acct.LastName = strings.TrimSpace(acct.LastName)
	acct.StudentNumber = strings.TrimSpace(acct.StudentNumber)
	switch {
	case acct.Email == "":
		return Identity{}, invalidInput("Email is required")
	case !acct.Role.Valid():
		return Identity{}, invalidInput("Role is invalid")
	case acct.Role == RoleStudent && acct.StudentNumber == "":
		return Identity{}, invalidInput("student_number is required for students")
	}
	if err := s.checkNewPassword(acct.Password); err != nil {
		return Identity{}, err
	}
	hash, err := s.hasher.Hash(acct.Password)
	if err != nil {
		return Identity{}, err
	}
	user, err := s.users.CreateAccount(ctx, acct, hash)
	if err != nil {
		return Identity{}, err
	}
	return identityOf(user, true), nil
}

// RequirePasswordChange flags userID so clients force a password change.
func (s *Service) RequirePasswordChange(ctx context.Context, userID int64) error {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound("User not found")
		}
		return err
	}
	return s.security.SetMustChangePassword(ctx, userID, true)
}
