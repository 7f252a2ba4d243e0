package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/testiflow-api/internal/application/space"
	"github.com/testiflow-api/internal/domain"
)

// SpaceHandler serves the owner dashboard and the public review pages.
type SpaceHandler struct {
	svc space.Service
}

func NewSpaceHandler(svc space.Service) *SpaceHandler { return &SpaceHandler{svc: svc} }

func (h *SpaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.CreateSpaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sp, err := h.svc.CreateSpace(r.Context(), accountID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Space created successfully", Envelope{"space": sp})
}

func (h *SpaceHandler) Edit(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.EditSpaceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sp, err := h.svc.EditSpace(r.Context(), accountID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Space updated successfully.", Envelope{"space": sp})
}

func (h *SpaceHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	spaces, err := h.svc.ListOwnSpaces(r.Context(), accountID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", Envelope{"spaces": spaces})
}

func (h *SpaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	sp, err := h.svc.GetSpace(r.Context(), accountID, chi.URLParam(r, "spaceId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", Envelope{"space": sp})
}

func (h *SpaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteSpace(r.Context(), accountID, chi.URLParam(r, "spaceId")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Space deleted successfully", nil)
}

func (h *SpaceHandler) GetByLink(w http.ResponseWriter, r *http.Request) {
	sp, err := h.svc.GetByPublicLink(r.Context(), chi.URLParam(r, "link"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", Envelope{"space": sp})
}

func (h *SpaceHandler) WallOfLove(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.svc.WallOfLove(r.Context(), chi.URLParam(r, "link"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", Envelope{"reviews": reviews})
}

func (h *SpaceHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := h.svc.SubmitReview(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Review submitted successfully", Envelope{"review": review})
}

func (h *SpaceHandler) ToggleFavourite(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req domain.ToggleFavouriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	reviews, err := h.svc.ToggleFavorite(r.Context(), accountID, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", Envelope{"reviews": reviews})
}

func (h *SpaceHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	sp, err := h.svc.DeleteReview(r.Context(), accountID, chi.URLParam(r, "spaceId"), chi.URLParam(r, "reviewId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "Review deleted successfully", Envelope{"space": sp})
}
