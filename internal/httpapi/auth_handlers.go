package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"unirecords.org/internal/audit"
	"unirecords.org/internal/auth"
	"unirecords.org/internal/obs"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginData struct {
	User        auth.Identity `json:"user"`
	AccessToken string        `json:"access_token"`
	TokenType   string        `json:"token_type"`
	ExpiresIn   int64         `json:"expires_in"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

type loginResponse struct {
	Message string    `json:"message"`
	Data    loginData `json:"data"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type forgotPasswordResponse struct {
	Message    string     `json:"message"`
	ResetToken string     `json:"reset_token,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	id, err := a.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		outcome := loginOutcome(err)
		obs.ObserveLogin(outcome)
		if outcome != "error" {
			// never the submitted email
			a.audit(r.Context(), "auth.login.failed", map[string]any{"reason": outcome})
		}
		handleServiceError(w, r, err)
		return
	}
	tok, err := a.auth.IssueAccessToken(id)
	if err != nil {
		obs.ObserveLogin("error")
		handleServiceError(w, r, err)
		return
	}
	obs.ObserveLogin("success")
	ctx := auth.ContextWithCaller(r.Context(), auth.Caller{UserID: id.UserID, Email: id.Email, Role: id.Role})
	a.audit(ctx, "auth.login.succeeded", map[string]any{"must_change_password": id.MustChangePassword})
	writeJSON(w, http.StatusOK, loginResponse{
		Message: "Login successful",
		Data: loginData{
			User:        id,
			AccessToken: tok.Token,
			TokenType:   "Bearer",
			ExpiresIn:   int64(tok.TTL / time.Second),
			ExpiresAt:   tok.ExpiresAt,
		},
	})
}

func loginOutcome(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrAccountInactive):
		return "inactive"
	}
	return "error"
}

func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	res, err := a.auth.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	resp := forgotPasswordResponse{Message: res.Message}
	if res.Token != "" {
		obs.ObservePasswordReset("requested")
		a.audit(r.Context(), "auth.password.reset_requested", map[string]any{"email": strings.ToLower(strings.TrimSpace(req.Email))})
		resp.ResetToken = res.Token
		resp.ExpiresAt = &res.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := a.auth.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidResetToken) {
			obs.ObservePasswordReset("rejected")
		}
		handleServiceError(w, r, err)
		return
	}
	obs.ObservePasswordReset("completed")
	a.audit(r.Context(), "auth.password.reset_completed", map[string]any{"target_user_id": userID})
	writeMessage(w, http.StatusOK, "Password reset successful")
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.auth.ChangePassword(r.Context(), caller.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrIncorrectPassword) {
			obs.ObservePasswordChange("incorrect_password")
		}
		handleServiceError(w, r, err)
		return
	}
	obs.ObservePasswordChange("success")
	a.audit(r.Context(), "auth.password.changed", nil)
	writeMessage(w, http.StatusOK, "Password changed successfully")
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}
	id, err := a.auth.Me(r.Context(), caller.UserID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       id,
		"student_id": nullableID(caller.StudentID),
		"faculty_id": nullableID(caller.FacultyID),
	})
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// audit records an event; logging failures never fail the request.
func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	if err := audit.LogEvent(ctx, event, fields); err != nil {
		obs.Logger().WarnContext(ctx, "audit log failed", "event", event, "error", err)
	}
}
