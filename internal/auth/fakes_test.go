package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// memStore is an in-memory UserDirectory and SecurityStore for service tests.
type memStore struct {
	mu       sync.Mutex
	now      func() time.Time
	resetTTL time.Duration

	nextID   int64
	users    map[int64]*User
	profiles map[int64]Profile
	security map[int64]*SecurityRecord
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		now:      now,
		resetTTL: DefaultResetTokenTTL,
		users:    make(map[int64]*User),
		profiles: make(map[int64]Profile),
		security: make(map[int64]*SecurityRecord),
	}
}

func (m *memStore) addUser(u User) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	u.ID = m.nextID
	m.users[u.ID] = &u
	return &u
}

func (m *memStore) setProfile(userID int64, p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[userID] = p
}

func (m *memStore) passwordHash(userID int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[userID].PasswordHash
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindByID(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memStore) Profile(_ context.Context, userID int64) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[userID], nil
}

func (m *memStore) CreateAccount(_ context.Context, acct NewAccount, hash string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, acct.Email) {
			return nil, conflict("A user with this email or student number already exists")
		}
	}
	m.nextID++
	u := &User{
		ID:           m.nextID,
		Email:        acct.Email,
		PasswordHash: hash,
		Role:         acct.Role,
		FirstName:    acct.FirstName,
		LastName:     acct.LastName,
		Active:       true,
	}
	m.users[u.ID] = u
	if acct.Role == RoleStudent {
		m.profiles[u.ID] = Profile{StudentID: 1000 + u.ID}
	}
	m.security[u.ID] = &SecurityRecord{UserID: u.ID, MustChangePassword: true}
	cp := *u
	return &cp, nil
}

func (m *memStore) EnsureSchema(context.Context) error { return nil }

func (m *memStore) GetByUserID(_ context.Context, userID int64) (SecurityRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.security[userID]
	if !ok {
		return SecurityRecord{}, false, nil
	}
	return *rec, true, nil
}

func (m *memStore) IssueResetToken(_ context.Context, userID int64) (ResetToken, error) {
	plaintext, digest, err := newResetToken()
	if err != nil {
		return ResetToken{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.security[userID]
	if !ok {
		rec = &SecurityRecord{UserID: userID}
		m.security[userID] = rec
	}
	rec.ResetTokenHash = digest
	rec.ResetTokenExpiresAt = m.now().Add(m.resetTTL)
	rec.ResetTokenConsumed = false
	return ResetToken{Plaintext: plaintext, ExpiresAt: rec.ResetTokenExpiresAt}, nil
}

func (m *memStore) ConsumeResetToken(_ context.Context, plaintext string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.consumeLocked(plaintext)
}

func (m *memStore) consumeLocked(plaintext string) (int64, bool, error) {
	digest := HashResetToken(plaintext)
	for _, rec := range m.security {
		if rec.ResetTokenHash != digest || rec.ResetTokenConsumed {
			continue
		}
		if !m.now().Before(rec.ResetTokenExpiresAt) {
			return 0, false, nil
		}
		rec.ResetTokenConsumed = true
		return rec.UserID, true, nil
	}
	return 0, false, nil
}

func (m *memStore) RedeemResetToken(_ context.Context, plaintext, hash string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok, err := m.consumeLocked(plaintext)
	if err != nil || !ok {
		return 0, ok, err
	}
	u, found := m.users[userID]
	if !found {
		return 0, false, ErrNotFound
	}
	u.PasswordHash = hash
	return userID, true, nil
}

func (m *memStore) SetMustChangePassword(_ context.Context, userID int64, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.security[userID]
	if !ok {
		rec = &SecurityRecord{UserID: userID}
		m.security[userID] = rec
	}
	rec.MustChangePassword = value
	return nil
}

// testClock is a settable time source.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
