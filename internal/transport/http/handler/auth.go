package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/testiflow-api/internal/application/auth"
	"github.com/testiflow-api/internal/domain"
)

// AuthHandler handles signup, login and the email/password token flows.
type AuthHandler struct {
	svc     auth.Service
	cookies CookieConfig
}

func NewAuthHandler(svc auth.Service, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.cookies.setSession(w, sess.Token, sess.ExpiresAt)
	writeOK(w, http.StatusCreated, "User created successfully. Verification email sent.", Envelope{"user": sess.Account})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.svc.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.cookies.setSession(w, sess.Token, sess.ExpiresAt)
	writeOK(w, http.StatusOK, "Logged in successfully", Envelope{"user": sess.Account})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	h.cookies.clearSession(w)
	writeOK(w, http.StatusOK, "Logged out successfully", nil)
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.VerifyEmail(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Email verified successfully", Envelope{"user": a})
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.ResendVerification(r.Context(), accountID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Verification email sent", nil)
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ForgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.RequestPasswordReset(r.Context(), req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "If an account exists for that email, a password reset link has been sent.", nil)
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := h.svc.ResetPassword(r.Context(), chi.URLParam(r, "token"), req); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Password reset successful.", nil)
}

func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.SetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.SetInitialPassword(r.Context(), accountID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Password set successfully", Envelope{"user": a})
}

func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req domain.GoogleAuthRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.svc.FederatedLogin(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.cookies.setSession(w, sess.Token, sess.ExpiresAt)
	writeOK(w, http.StatusOK, "Logged in successfully", Envelope{"user": sess.Account})
}
