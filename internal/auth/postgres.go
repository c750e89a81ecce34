package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"unirecords.org/internal/dbx"
	"unirecords.org/internal/migrate"
)

var (
	_ UserDirectory = (*PGStore)(nil)
	_ SecurityStore = (*PGStore)(nil)
)

// PGStore implements UserDirectory and SecurityStore on PostgreSQL.
type PGStore struct {
	db        *sql.DB
	now       func() time.Time
	resetTTL  time.Duration
	migrateUp func(ctx context.Context, db *sql.DB) error
}

// PGOption configures PGStore.
type PGOption func(*PGStore)

// WithResetTTL sets the lifetime of issued reset tokens.
func WithResetTTL(ttl time.Duration) PGOption {
	return func(s *PGStore) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// WithStoreClock overrides the time source used for expiry checks.
func WithStoreClock(fn func() time.Time) PGOption {
	return func(s *PGStore) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewPGStore(db *sql.DB, opts ...PGOption) *PGStore {
	s := &PGStore{
		db:        db,
		now:       time.Now,
		resetTTL:  DefaultResetTokenTTL,
		migrateUp: migrate.Up,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// User directory -----------------------------------------------------------

const userColumns = `user_id, email, password_hash, role, first_name, last_name, is_active, created_at, updated_at`

func scanUser(row *sql.Row) (*User, error) {
	var (
		u    User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.FirstName, &u.LastName, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	r, ok := NormalizeRole(role)
	if !ok {
		return nil, fmt.Errorf("user %d has unknown role %q", u.ID, role)
	}
	u.Role = r
	return &u, nil
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *PGStore) FindByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where user_id = $1`, id)
	return scanUser(row)
}

func (s *PGStore) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`update users set password_hash = $2, updated_at = $3 where user_id = $1`,
		id, hash, s.now().UTC())
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Profile(ctx context.Context, userID int64) (Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`select s.student_id, f.faculty_id
		   from users u
		   left join students s on s.user_id = u.user_id
		   left join faculty f on f.user_id = u.user_id
		  where u.user_id = $1`, userID)
	var studentID, facultyID sql.NullInt64
	if err := row.Scan(&studentID, &facultyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, nil
		}
		return Profile{}, fmt.Errorf("load profile: %w", err)
	}
	return Profile{StudentID: studentID.Int64, FacultyID: facultyID.Int64}, nil
}

func (s *PGStore) CreateAccount(ctx context.Context, acct NewAccount, passwordHash string) (*User, error) {
	u := &User{
		Email:        acct.Email,
		PasswordHash: passwordHash,
		Role:         acct.Role,
		FirstName:    acct.FirstName,
		LastName:     acct.LastName,
		Active:       true,
	}
	now := s.now().UTC()
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		row := tx.QueryRowContext(ctx,
			`insert into users(email, password_hash, role, first_name, last_name, is_active, created_at, updated_at)
			 values($1,$2,$3,$4,$5,true,$6,$6)
			 returning user_id, created_at, updated_at`,
			u.Email, u.PasswordHash, u.Role.Stored(), u.FirstName, u.LastName, now)
		if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return err
		}
		switch u.Role {
		case RoleStudent:
			if _, err := tx.ExecContext(ctx,
				`insert into students(user_id, student_number) values($1,$2)`,
				u.ID, acct.StudentNumber); err != nil {
				return err
			}
		case RoleFaculty:
			if _, err := tx.ExecContext(ctx,
				`insert into faculty(user_id) values($1)`, u.ID); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx,
			`insert into user_security(user_id, must_change_password, updated_at)
			 values($1, true, $2)
			 on conflict (user_id) do update set must_change_password = true, updated_at = excluded.updated_at`,
			u.ID, now)
		return err
	})
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, conflict("A user with this email or student number already exists")
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return u, nil
}

// Security records ---------------------------------------------------------

func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if err := s.migrateUp(ctx, s.db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PGStore) GetByUserID(ctx context.Context, userID int64) (SecurityRecord, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`select user_id, must_change_password, reset_token_hash, reset_token_expires_at, reset_token_consumed, updated_at
		   from user_security where user_id = $1`, userID)
	var (
		rec     SecurityRecord
		hash    sql.NullString
		expires sql.NullTime
	)
	if err := row.Scan(&rec.UserID, &rec.MustChangePassword, &hash, &expires, &rec.ResetTokenConsumed, &rec.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SecurityRecord{}, false, nil
		}
		return SecurityRecord{}, false, fmt.Errorf("load security record: %w", err)
	}
	rec.ResetTokenHash = hash.String
	rec.ResetTokenExpiresAt = expires.Time
	return rec, true, nil
}

func (s *PGStore) IssueResetToken(ctx context.Context, userID int64) (ResetToken, error) {
	plaintext, digest, err := newResetToken()
	if err != nil {
		return ResetToken{}, err
	}
	now := s.now().UTC()
	expires := now.Add(s.resetTTL)
	_, err = s.db.ExecContext(ctx,
		`insert into user_security(user_id, must_change_password, reset_token_hash, reset_token_expires_at, reset_token_consumed, updated_at)
		 values($1, false, $2, $3, false, $4)
		 on conflict (user_id) do update
		    set reset_token_hash = excluded.reset_token_hash,
		        reset_token_expires_at = excluded.reset_token_expires_at,
		        reset_token_consumed = false,
		        updated_at = excluded.updated_at`,
		userID, digest, expires, now)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return ResetToken{}, notFound("User not found")
		}
		return ResetToken{}, fmt.Errorf("issue reset token: %w", err)
	}
	return ResetToken{Plaintext: plaintext, ExpiresAt: expires}, nil
}

// ConsumeResetToken relies on a single guarded update: concurrent callers
// racing on the same row re-check the predicate after the winner commits.
func (s *PGStore) ConsumeResetToken(ctx context.Context, plaintext string) (int64, bool, error) {
	return s.consumeResetToken(ctx, s.db, plaintext)
}

func (s *PGStore) consumeResetToken(ctx context.Context, q dbx.DBTX, plaintext string) (int64, bool, error) {
	if plaintext == "" {
		return 0, false, nil
	}
	now := s.now().UTC()
	row := q.QueryRowContext(ctx,
		`update user_security
		    set reset_token_consumed = true, updated_at = $2
		  where reset_token_hash = $1
		    and reset_token_consumed = false
		    and reset_token_expires_at > $2
		  returning user_id`,
		HashResetToken(plaintext), now)
	var userID int64
	if err := row.Scan(&userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("consume reset token: %w", err)
	}
	return userID, true, nil
}

func (s *PGStore) RedeemResetToken(ctx context.Context, plaintext, passwordHash string) (int64, bool, error) {
	if plaintext == "" {
		return 0, false, nil
	}
	var (
		userID int64
		ok     bool
	)
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		userID, ok, err = s.consumeResetToken(ctx, tx, plaintext)
		if err != nil || !ok {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`update users set password_hash = $2, updated_at = $3 where user_id = $1`,
			userID, passwordHash, s.now().UTC())
		if err != nil {
			return fmt.Errorf("update password hash: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("update password hash: %w", err)
		} else if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return userID, ok, nil
}

func (s *PGStore) SetMustChangePassword(ctx context.Context, userID int64, value bool) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_security(user_id, must_change_password, updated_at)
		 values($1, $2, $3)
		 on conflict (user_id) do update
		    set must_change_password = excluded.must_change_password,
		        updated_at = excluded.updated_at`,
		userID, value, s.now().UTC())
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return notFound("User not found")
		}
		return fmt.Errorf("set must change password: %w", err)
	}
	return nil
}
