package handler

import (
	"errors"
	"net/http"

	fileapp "github.com/testiflow-api/internal/application/file"
)

// multipartOverhead leaves room for form boundaries and headers around the logo.
const multipartOverhead = 64 << 10

// FileHandler handles logo uploads.
type FileHandler struct {
	svc fileapp.Service
}

func NewFileHandler(svc fileapp.Service) *FileHandler { return &FileHandler{svc: svc} }

func (h *FileHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	accountID, ok := callerID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, fileapp.MaxLogoSize+multipartOverhead)
	if err := r.ParseMultipartForm(fileapp.MaxLogoSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "logo exceeds the 2 MB limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	f, header, err := r.FormFile("logo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing logo field")
		return
	}
	defer f.Close()

	url, err := h.svc.UploadLogo(r.Context(), fileapp.UploadInput{
		Reader:      f,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		AccountID:   accountID,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Logo uploaded successfully", Envelope{"url": url})
}
