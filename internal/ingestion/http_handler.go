package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// DefaultMaxUploadBytes caps the size of an upload request body.
const DefaultMaxUploadBytes int64 = 16 << 20

// Handler exposes ingestion over HTTP.
type Handler struct {
	service        *Service
	maxUploadBytes int64
	log            logrus.FieldLogger
}

// NewHTTPHandler wraps the service. A non-positive maxUploadBytes selects
// DefaultMaxUploadBytes.
func NewHTTPHandler(service *Service, maxUploadBytes int64, log logrus.FieldLogger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &Handler{service: service, maxUploadBytes: maxUploadBytes, log: log}
}

// Register mounts the upload routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/uploads", h.upload).Methods(http.MethodPost)
	r.HandleFunc("/uploads/{ingestionID}/logs", h.logs).Methods(http.MethodGet)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large. Maximum size is %dMB.", h.maxUploadBytes>>20))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}
	defer file.Close()

	fileName := strings.TrimSpace(header.Filename)
	if fileName == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}

	summary, err := h.service.Ingest(r.Context(), Request{FileName: fileName, Data: file})
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		writeError(w, http.StatusBadRequest, "Invalid file type. Please upload a CSV or XLSX file.")
		return
	case errors.Is(err, ErrInvalidEncoding):
		writeError(w, http.StatusBadRequest, "File must be UTF-8 encoded text.")
		return
	case errors.Is(err, ErrMalformedFile):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Could not read file: %v", err))
		return
	case err != nil:
		h.log.WithError(err).WithField("file_name", fileName).Error("upload failed")
		writeError(w, http.StatusInternalServerError, "Error processing file")
		return
	}

	status := http.StatusOK
	if !summary.Committed {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, summary)
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	ingestionID, err := uuid.Parse(mux.Vars(r)["ingestionID"])
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid ingestion id: %v", err))
		return
	}

	entries, err := h.service.Logs(r.Context(), ingestionID)
	if err != nil {
		h.log.WithError(err).WithField("ingestion_id", ingestionID).Error("failed to list ingestion logs")
		writeError(w, http.StatusInternalServerError, "failed to list ingestion logs")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeJSON encodes the whole payload before the status line is written.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
