package httpapi

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"unirecords.org/internal/auth"
	"unirecords.org/internal/students"
)

// directory is an in-memory auth.UserDirectory, auth.SecurityStore and
// students.Store backing the HTTP tests.
type directory struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*auth.User
	profiles map[int64]auth.Profile
	security map[int64]*auth.SecurityRecord
	students map[int64]students.Student
}

func newDirectory() *directory {
	return &directory{
		users:    make(map[int64]*auth.User),
		profiles: make(map[int64]auth.Profile),
		security: make(map[int64]*auth.SecurityRecord),
		students: make(map[int64]students.Student),
	}
}

func (d *directory) addStudent(userID int64, st students.Student) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st.UserID = userID
	d.students[st.ID] = st
	d.profiles[userID] = auth.Profile{StudentID: st.ID}
}

func (d *directory) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (d *directory) FindByID(_ context.Context, id int64) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *directory) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (d *directory) Profile(_ context.Context, userID int64) (auth.Profile, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.profiles[userID], nil
}

func (d *directory) CreateAccount(_ context.Context, acct auth.NewAccount, hash string) (*auth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.users {
		if strings.EqualFold(u.Email, acct.Email) {
			return nil, auth.PublicError(auth.ErrConflict, "A user with this email or student number already exists")
		}
	}
	d.nextID++
	now := time.Now().UTC()
	u := &auth.User{
		ID:           d.nextID,
		Email:        acct.Email,
		PasswordHash: hash,
		Role:         acct.Role,
		FirstName:    acct.FirstName,
		LastName:     acct.LastName,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	d.users[u.ID] = u
	d.security[u.ID] = &auth.SecurityRecord{UserID: u.ID, MustChangePassword: true}
	cp := *u
	return &cp, nil
}

func (d *directory) EnsureSchema(context.Context) error { return nil }

func (d *directory) GetByUserID(_ context.Context, userID int64) (auth.SecurityRecord, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.security[userID]
	if !ok {
		return auth.SecurityRecord{}, false, nil
	}
	return *rec, true, nil
}

func (d *directory) IssueResetToken(_ context.Context, userID int64) (auth.ResetToken, error) {
	plaintext := uuid.NewString()
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.security[userID]
	if !ok {
		rec = &auth.SecurityRecord{UserID: userID}
		d.security[userID] = rec
	}
	rec.ResetTokenHash = auth.HashResetToken(plaintext)
	rec.ResetTokenExpiresAt = time.Now().Add(auth.DefaultResetTokenTTL)
	rec.ResetTokenConsumed = false
	return auth.ResetToken{Plaintext: plaintext, ExpiresAt: rec.ResetTokenExpiresAt}, nil
}

func (d *directory) ConsumeResetToken(_ context.Context, plaintext string) (int64, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.consumeLocked(plaintext)
	return id, ok, nil
}

func (d *directory) consumeLocked(plaintext string) (int64, bool) {
	digest := auth.HashResetToken(plaintext)
	for _, rec := range d.security {
		if rec.ResetTokenHash == digest && !rec.ResetTokenConsumed && time.Now().Before(rec.ResetTokenExpiresAt) {
			rec.ResetTokenConsumed = true
			return rec.UserID, true
		}
	}
	return 0, false
}

func (d *directory) RedeemResetToken(_ context.Context, plaintext, hash string) (int64, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.consumeLocked(plaintext)
	if !ok {
		return 0, false, nil
	}
	u, found := d.users[id]
	if !found {
		return 0, false, auth.ErrNotFound
	}
	u.PasswordHash = hash
	return id, true, nil
}

func (d *directory) SetMustChangePassword(_ context.Context, userID int64, value bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.security[userID]
	if !ok {
		rec = &auth.SecurityRecord{UserID: userID}
		d.security[userID] = rec
	}
	rec.MustChangePassword = value
	return nil
}

// students.Store

func (d *directory) Get(_ context.Context, id int64) (*students.Student, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.students[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return &st, nil
}

func (d *directory) List(_ context.Context, f students.Filter) ([]students.Student, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []students.Student{}
	for _, st := range d.students {
		if f.StudentID != 0 && st.ID != f.StudentID {
			continue
		}
		if f.Classification != "" && st.Classification != f.Classification {
			continue
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
