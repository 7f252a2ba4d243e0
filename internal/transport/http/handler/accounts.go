package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/testiflow-api/internal/application/account"
	"github.com/testiflow-api/internal/domain"
)

// AccountHandler serves the signed-in account's own profile.
type AccountHandler struct {
	svc     account.Service
	cookies CookieConfig
}

func NewAccountHandler(svc account.Service, cookies CookieConfig) *AccountHandler {
	return &AccountHandler{svc: svc, cookies: cookies}
}

func (h *AccountHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.Get(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", Envelope{"user": a})
}

func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, err := h.svc.UpdateProfile(r.Context(), accountID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Profile updated successfully", Envelope{"user": a})
}

func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), accountID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.cookies.clearSession(w)
	writeOK(w, http.StatusOK, "User successfully deleted", nil)
}
