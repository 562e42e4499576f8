package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"identity-gateway/internal/auth"
)

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	ReturnURL string `json:"return_url"`
}

type twoFactorRequest struct {
	Challenge string `json:"challenge"`
	Code      string `json:"code"`
}

type registerRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DateOfBirth string `json:"date_of_birth"` // YYYY-MM-DD
}

type grantResponse struct {
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	AllowRefresh bool      `json:"allow_refresh"`
	ReturnURL    string    `json:"return_url,omitempty"`
}

type challengeResponse struct {
	TwoFactorRequired bool      `json:"two_factor_required"`
	Challenge         string    `json:"challenge"`
	ExpiresAt         time.Time `json:"expires_at"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeAuthError maps core errors to status codes. Unknown errors are
// dependency failures and surface as 503, never as a credential denial.
func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var locked *auth.LockedOutError
	var rejected *auth.CreationRejectedError
	switch {
	case errors.As(err, &locked):
		retry := int(locked.RetryAfter(time.Now().UTC()).Seconds() + 0.5)
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeJSON(w, http.StatusLocked, map[string]any{
			"error":        "locked_out",
			"locked_until": locked.Until.UTC().Format(time.RFC3339),
		})
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "account_creation_rejected",
			"reason": rejected.Reason,
		})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
	case errors.Is(err, auth.ErrTwoFactorInvalid):
		writeError(w, http.StatusUnauthorized, "invalid_two_factor")
	case errors.Is(err, auth.ErrDuplicateAccount):
		writeError(w, http.StatusConflict, "duplicate_account")
	case errors.Is(err, auth.ErrEmailConfirmationInvalid):
		writeError(w, http.StatusBadRequest, "invalid_confirmation")
	default:
		s.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "service_unavailable")
	}
}

// validReturnURL accepts only local paths so the grant's redirect hint cannot
// point off-origin.
func validReturnURL(p string) (string, bool) {
	if p == "" {
		return "", true
	}
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, "://") {
		return "", false
	}
	return p, true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	returnURL, ok := validReturnURL(strings.TrimSpace(req.ReturnURL))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_return_url")
		return
	}

	res, err := s.svc.Login(r.Context(), req.Email, req.Password, returnURL)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	if res.TwoFactorRequired != nil {
		writeJSON(w, http.StatusOK, challengeResponse{
			TwoFactorRequired: true,
			Challenge:         res.TwoFactorRequired.ChallengeToken,
			ExpiresAt:         res.TwoFactorRequired.ExpiresAt,
		})
		return
	}
	writeGrant(w, res.Grant)
}

func (s *Server) handleTwoFactorTOTP(w http.ResponseWriter, r *http.Request) {
	s.handleTwoFactor(w, r, s.svc.LoginTOTP)
}

func (s *Server) handleTwoFactorRecovery(w http.ResponseWriter, r *http.Request) {
	s.handleTwoFactor(w, r, s.svc.LoginRecoveryCode)
}

func (s *Server) handleTwoFactor(w http.ResponseWriter, r *http.Request, complete func(ctx context.Context, challenge, code string) (*auth.Grant, error)) {
	var req twoFactorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	grant, err := complete(r.Context(), req.Challenge, req.Code)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeGrant(w, grant)
}

// handleTwoFactorEnroll turns on the second factor for the session's account.
// Requires a live session token in the Authorization header; returns the
// provisioning secret and the one-time recovery codes.
func (s *Server) handleTwoFactorEnroll(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	grant, err := s.svc.CheckSession(r.Context(), token)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	enr, err := s.svc.EnrollTwoFactor(r.Context(), grant.Subject)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret":         enr.Secret,
		"otpauth_url":    enr.OTPAuthURL,
		"recovery_codes": enr.RecoveryCodes,
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	var dob time.Time
	if req.DateOfBirth != "" {
		var err error
		dob, err = time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date_of_birth")
			return
		}
	}

	acct, err := s.svc.Register(r.Context(), auth.RegisterInput{
		Name:        strings.TrimSpace(req.Name),
		Email:       req.Email,
		Password:    req.Password,
		DateOfBirth: dob,
	})
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"id":    acct.ID,
		"email": acct.Email,
	})
}

func (s *Server) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing_token")
		return
	}
	if err := s.svc.ConfirmEmail(r.Context(), token); err != nil {
		s.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			s.log.Error(r.Context(), "health probe failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "not_ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeGrant(w http.ResponseWriter, g *auth.Grant) {
	writeJSON(w, http.StatusOK, grantResponse{
		Token:        g.Token,
		ExpiresAt:    g.ExpiresAt,
		AllowRefresh: g.AllowRefresh,
		ReturnURL:    g.ReturnURL,
	})
}
