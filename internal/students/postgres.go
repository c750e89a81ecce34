package students

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"unirecords.org/internal/auth"
)

var _ Store = (*PGStore)(nil)

// PGStore reads students joined with their user accounts.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const selectStudents = `select s.student_id, s.user_id, s.student_number, u.email, u.first_name, u.last_name,
       s.classification, s.academic_standing, s.credits_earned, s.gpa
  from students s
  join users u on u.user_id = s.user_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (Student, error) {
	var st Student
	err := row.Scan(&st.ID, &st.UserID, &st.StudentNumber, &st.Email, &st.FirstName, &st.LastName,
		&st.Classification, &st.AcademicStanding, &st.CreditsEarned, &st.GPA)
	return st, err
}

func (s *PGStore) Get(ctx context.Context, id int64) (*Student, error) {
	st, err := scanStudent(s.db.QueryRowContext(ctx, selectStudents+` where s.student_id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &st, nil
}

func (s *PGStore) List(ctx context.Context, f Filter) ([]Student, error) {
	var (
		where []string
		args  []any
	)
	if f.StudentID != 0 {
		args = append(args, f.StudentID)
		where = append(where, fmt.Sprintf("s.student_id = $%d", len(args)))
	}
	if f.Classification != "" {
		args = append(args, f.Classification)
		where = append(where, fmt.Sprintf("s.classification = $%d", len(args)))
	}
	query := selectStudents
	if len(where) > 0 {
		query += " where " + strings.Join(where, " and ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" order by s.student_id limit $%d offset $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	res := make([]Student, 0)
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		res = append(res, st)
	}
	return res, rows.Err()
}
