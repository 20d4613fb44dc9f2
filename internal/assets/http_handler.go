package assets

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rpattn/assetmap/internal/domain"
	"github.com/rpattn/assetmap/internal/repository"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handler exposes asset queries over HTTP.
type Handler struct {
	service *Service
	log     logrus.FieldLogger
}

// NewHTTPHandler wraps the query service.
func NewHTTPHandler(service *Service, log logrus.FieldLogger) *Handler {
	return &Handler{service: service, log: log}
}

// Register mounts the asset routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/assets", h.list).Methods(http.MethodGet)
	r.HandleFunc("/assets/{assetID}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/asset-types", h.types).Methods(http.MethodGet)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.NewAssetFilter(q.Get("condition"), q.Get("asset_type"), q.Get("search"))

	assets, err := h.service.Query(r.Context(), filter)
	if err != nil {
		h.log.WithError(err).Error("asset query failed")
		writeError(w, http.StatusInternalServerError, "failed to query assets")
		return
	}
	writeJSON(w, http.StatusOK, assets)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	assetID := mux.Vars(r)["assetID"]

	asset, err := h.service.Get(r.Context(), assetID)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("asset_id", assetID).Error("asset lookup failed")
		writeError(w, http.StatusInternalServerError, "failed to load asset")
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) types(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.Types(r.Context())
	if err != nil {
		h.log.WithError(err).Error("asset type listing failed")
		writeError(w, http.StatusInternalServerError, "failed to list asset types")
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
