package export

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rpattn/assetmap/internal/domain"

	"github.com/gorilla/mux"
)

// Handler serves asset exports.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the export service.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the export route on r. It must be registered before any
// /assets/{assetID} route.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/assets/export.csv", h.handleDownload).Methods(http.MethodGet)
}

func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.NewAssetFilter(q.Get("condition"), q.Get("asset_type"), q.Get("search"))

	filename := fmt.Sprintf("assets-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

	if _, err := h.service.WriteCSV(r.Context(), w, filter); err != nil {
		h.service.log.WithError(err).Error("asset export failed")
		http.Error(w, "failed to export assets", http.StatusInternalServerError)
	}
}
