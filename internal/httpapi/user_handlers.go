package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"unirecords.org/internal/auth"
)

type createUserRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	Role          string `json:"role"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	StudentNumber string `json:"student_number"`
}

func (r createUserRequest) Validate() error {
	studentNumber := []validation.Rule{validation.Length(1, 32)}
	if strings.EqualFold(strings.TrimSpace(r.Role), string(auth.RoleStudent)) {
		studentNumber = append([]validation.Rule{validation.Required}, studentNumber...)
	}
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email, validation.Length(3, 254)),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Role, validation.Required, validation.By(knownRole)),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.StudentNumber, studentNumber...),
	)
}

func knownRole(value interface{}) error {
	s, _ := value.(string)
	if _, ok := auth.NormalizeRole(s); !ok {
		return errors.New("must be one of admin, registrar, teacher, student")
	}
	return nil
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, _ := auth.NormalizeRole(req.Role)
	id, err := a.auth.ProvisionAccount(r.Context(), auth.NewAccount{
		Email:         req.Email,
		Password:      req.Password,
		Role:          role,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		StudentNumber: req.StudentNumber,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "users.provisioned", map[string]any{
		"target_user_id": id.UserID,
		"role":           id.Role.Exposed(),
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/users/%d", id.UserID))
	writeJSON(w, http.StatusCreated, id)
}

func (a *API) handleRequirePasswordChange(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "user")
	if !ok {
		return
	}
	if err := a.auth.RequirePasswordChange(r.Context(), userID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	a.audit(r.Context(), "users.password_change_required", map[string]any{"target_user_id": userID})
	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} route parameter as a positive integer.
func pathID(w http.ResponseWriter, r *http.Request, what string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid "+what+" id")
		return 0, false
	}
	return id, true
}
