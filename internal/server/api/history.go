package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/ayusman/mudra/internal/store"
)

// maxListLimit bounds the limit query parameter.
const maxListLimit = 500

// HistoryHandler handles HTTP requests for recorded predictions.
type HistoryHandler struct {
	store    *store.Store
	validate *validator.Validate
}

// NewHistoryHandler creates a new HistoryHandler with the given store.
func NewHistoryHandler(s *store.Store) *HistoryHandler {
	return &HistoryHandler{store: s, validate: validator.New()}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/predictions, /api/predictions/stats or /api/predictions/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/predictions")
	path = strings.TrimPrefix(path, "/")

	switch {
	case path == "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)

	case path == "stats":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.stats(w, r)

	default:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, path)
		case http.MethodDelete:
			h.delete(w, r, path)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

type predictionResponse struct {
	ID              string              `json:"id"`
	Kind            string              `json:"kind"`
	Prediction      string              `json:"prediction"`
	Confidence      float64             `json:"confidence"`
	HandDetected    *bool               `json:"keypoints_detected,omitempty"`
	FramesProcessed *int                `json:"frames_processed,omitempty"`
	VoteBreakdown   jsoniter.RawMessage `json:"vote_breakdown,omitempty"`
	Source          string              `json:"source,omitempty"`
	CreatedAt       string              `json:"created_at"`
}

type listPredictionsResponse struct {
	Predictions []predictionResponse `json:"predictions"`
}

type statsResponse struct {
	Labels []store.LabelCount `json:"labels"`
}

// toPredictionResponse shapes a record like the live endpoint that produced it.
func toPredictionResponse(p *store.Prediction) predictionResponse {
	resp := predictionResponse{
		ID:         p.ID,
		Kind:       string(p.Kind),
		Prediction: p.Label,
		Confidence: p.Confidence,
		Source:     p.Source,
		CreatedAt:  p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}

	switch p.Kind {
	case store.KindFrame:
		hand := p.HandDetected
		resp.HandDetected = &hand
	case store.KindVideo:
		frames := p.FramesProcessed
		resp.FramesProcessed = &frames
		if len(p.Votes) > 0 {
			resp.VoteBreakdown = jsoniter.RawMessage(p.Votes)
		}
	}

	return resp
}

// list handles GET /api/predictions?limit=N and returns recent predictions.
func (h *HistoryHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err == nil {
			err = h.validate.Var(n, "min=1,max="+strconv.Itoa(maxListLimit))
		}
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and "+strconv.Itoa(maxListLimit))
			return
		}
		limit = n
	}

	predictions, err := h.store.Predictions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list predictions")
		return
	}

	response := listPredictionsResponse{
		Predictions: make([]predictionResponse, 0, len(predictions)),
	}
	for _, p := range predictions {
		response.Predictions = append(response.Predictions, toPredictionResponse(p))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/predictions/{id}.
func (h *HistoryHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	p, err := h.store.Predictions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Prediction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get prediction")
		return
	}

	writeJSON(w, http.StatusOK, toPredictionResponse(p))
}

// delete handles DELETE /api/predictions/{id}.
func (h *HistoryHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Predictions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Prediction not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete prediction")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// stats handles GET /api/predictions/stats and returns per-label counts.
func (h *HistoryHandler) stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.store.Predictions().CountByLabel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count predictions")
		return
	}
	if counts == nil {
		counts = []store.LabelCount{}
	}

	writeJSON(w, http.StatusOK, statsResponse{Labels: counts})
}
