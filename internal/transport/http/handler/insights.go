package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/testiflow-api/internal/application/insight"
	"github.com/testiflow-api/internal/domain"
)

// InsightHandler proxies AI requests for the signed-in owner.
type InsightHandler struct {
	svc insight.Service
}

func NewInsightHandler(svc insight.Service) *InsightHandler { return &InsightHandler{svc: svc} }

func (h *InsightHandler) GenerateQuestions(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	var req domain.GenerateQuestionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out, err := h.svc.GenerateQuestions(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", Envelope{"suggestion": out})
}

func (h *InsightHandler) SummarizeReview(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	summary, err := h.svc.SummarizeReview(r.Context(), accountID, chi.URLParam(r, "spaceId"), chi.URLParam(r, "reviewId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", Envelope{"summary": summary})
}

func (h *InsightHandler) CaseStudy(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	study, err := h.svc.CaseStudy(r.Context(), accountID, chi.URLParam(r, "spaceId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, "", Envelope{"caseStudy": study})
}
