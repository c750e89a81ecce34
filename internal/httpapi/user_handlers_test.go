package httpapi

import (
	"strings"
	"testing"
)

func TestCreateUserRequestValidate(t *testing.T) {
	valid := createUserRequest{
		Email:     "new.faculty@example.com",
		Password:  "initial-pass",
		Role:      "Teacher",
		FirstName: "Nia",
		LastName:  "Faculty",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	cases := map[string]struct {
		mutate func(*createUserRequest)
		field  string
	}{
		"malformed email": {func(r *createUserRequest) { r.Email = "not-an-email" }, "email"},
		"missing email":   {func(r *createUserRequest) { r.Email = "" }, "email"},
		"unknown role":    {func(r *createUserRequest) { r.Role = "dean" }, "role"},
		"missing name":    {func(r *createUserRequest) { r.LastName = "" }, "last_name"},
		"student number":  {func(r *createUserRequest) { r.Role = "student" }, "student_number"},
	}
	for name, tc := range cases {
		req := valid
		tc.mutate(&req)
		err := req.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
		if !strings.Contains(err.Error(), tc.field) {
			t.Fatalf("%s: error %q does not name %s", name, err, tc.field)
		}
	}
}
