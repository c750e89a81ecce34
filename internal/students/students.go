// Package students serves academic record lookups guarded by the RBAC rules
// in package auth.
package students

import (
	"context"
	"errors"

	"unirecords.org/internal/auth"
)

// Student is the academic summary of one enrolled student.
type Student struct {
	ID               int64   `json:"student_id"`
	UserID           int64   `json:"user_id"`
	StudentNumber    string  `json:"student_number"`
	Email            string  `json:"email"`
	FirstName        string  `json:"first_name"`
	LastName         string  `json:"last_name"`
	Classification   string  `json:"classification"`
	AcademicStanding string  `json:"academic_standing"`
	CreditsEarned    int     `json:"credits_earned"`
	GPA              float64 `json:"gpa"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	StudentID      int64
	Classification string
	Limit          int
	Offset         int
}

const (
	defaultLimit = 50
	maxLimit     = 200
)

func (f Filter) normalized() Filter {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Store reads student records.
type Store interface {
	Get(ctx context.Context, id int64) (*Student, error)
	List(ctx context.Context, f Filter) ([]Student, error)
}

var errStudentNotFound = auth.PublicError(auth.ErrNotFound, "Student not found")

var (
	// ReadRule lets any authenticated role read a record; students only their own.
	ReadRule = auth.SelfAccess()
	// ListRule admits every role; student callers are narrowed to their own record.
	ListRule = auth.SelfAccess()
)

// Service applies access rules before touching the store.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get returns student id if caller may read it.
func (s *Service) Get(ctx context.Context, caller auth.Caller, id int64) (*Student, error) {
	if err := ReadRule.Authorize(caller, id); err != nil {
		return nil, err
	}
	st, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, errStudentNotFound
		}
		return nil, err
	}
	return st, nil
}

// List returns students matching f. A student caller only ever sees their own row.
func (s *Service) List(ctx context.Context, caller auth.Caller, f Filter) ([]Student, error) {
	if caller.Role == auth.RoleStudent {
		if f.StudentID != 0 && f.StudentID != caller.StudentID {
			return nil, auth.ErrForbidden
		}
		f.StudentID = caller.StudentID
	}
	if err := ListRule.Authorize(caller, f.StudentID); err != nil {
		return nil, err
	}
	return s.store.List(ctx, f.normalized())
}
