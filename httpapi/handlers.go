package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"roadwatch/alert"
	"roadwatch/ledger"
	"roadwatch/model"
	"roadwatch/predict"
)

// Handlers carries every dependency a request needs; nothing is reached
// through package globals.
type Handlers struct {
	orc     *predict.Orchestrator
	ledger  *ledger.Ledger
	gateway *alert.Gateway
	models  []model.Handle
	feed    *Feed
	log     *zap.Logger
}

func NewHandlers(orc *predict.Orchestrator, led *ledger.Ledger, gw *alert.Gateway, models []model.Handle, feed *Feed, log *zap.Logger) *Handlers {
	return &Handlers{orc: orc, ledger: led, gateway: gw, models: models, feed: feed, log: log}
}

func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.handleHome)
	mux.HandleFunc("POST /result", h.handleResultForm)
	mux.HandleFunc("GET /dashboard", h.handleDashboard)
	mux.HandleFunc("GET /download", h.handleDownload)
	mux.HandleFunc("POST /api/predict", h.handlePredict)
	mux.HandleFunc("GET /api/history", h.handleHistory)
	mux.HandleFunc("GET /api/health", h.handleHealth)
	mux.HandleFunc("GET /api/ws/live", h.feed.HandleWS)
}

type predictRequest struct {
	Features  []float64 `json:"features"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
}

type predictResponse struct {
	Predictions   map[string]string    `json:"predictions"`
	Probabilities map[string][]float64 `json:"probabilities"`
	ClassLabels   []string             `json:"class_labels"`
	RecordID      int64                `json:"record_id"`
}

func (h *Handlers) handlePredict(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		writeErrorJSON(w, http.StatusUnsupportedMediaType, "unsupported_media_type",
			"set Content-Type: application/json")
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_input", "malformed JSON body: "+err.Error())
		return
	}
	if req.Features == nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid_input", "features is required")
		return
	}

	raw := formatFeatures(req.Features)
	ens, id, err := h.run(r, req.Features, raw, req.Latitude, req.Longitude)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	resp := predictResponse{
		Predictions:   make(map[string]string, len(ens.Results)),
		Probabilities: make(map[string][]float64),
		ClassLabels:   model.ClassLabels,
		RecordID:      id,
	}
	for _, res := range ens.Results {
		resp.Predictions[res.Model] = res.LabelName
		if res.Probs != nil {
			resp.Probabilities[res.Model] = res.Probs
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	records, err := h.ledger.Recent(limit)
	if err != nil {
		writeErrorJSON(w, http.StatusInternalServerError, "ledger", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": toRecordDTOs(records),
	})
}

func (h *Handlers) handleDownload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="predictions.csv"`)
	if err := h.ledger.ExportCSV(w); err != nil {
		h.log.Error("csv export failed", zap.Error(err))
	}
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// run is the shared inference pipeline: orchestrate, alert, persist,
// broadcast. The alert attempt deliberately precedes the ledger write to
// mirror the recorded behavior of the service this replaces; a delivered
// alert with a failed write is possible and reported, not hidden.
func (h *Handlers) run(r *http.Request, features []float64, raw string, lat, lon *float64) (predict.Ensemble, int64, error) {
	ens, err := h.orc.Predict(features)
	if err != nil {
		return predict.Ensemble{}, 0, err
	}

	h.gateway.MaybeAlert(r.Context(), ens, alert.Context{Latitude: lat, Longitude: lon})

	rec := ledger.Record{
		Timestamp: time.Now(),
		Features:  raw,
		Latitude:  lat,
		Longitude: lon,
		Labels:    make(map[string]string, len(h.models)),
		Probs:     make(map[string]string, len(h.models)),
	}
	for i, handle := range h.models {
		res := ens.Results[i]
		rec.Labels[handle.Key] = res.LabelName
		if res.Probs != nil {
			payload, _ := json.Marshal(res.Probs)
			rec.Probs[handle.Key] = string(payload)
		}
	}

	id, err := h.ledger.Append(rec)
	if err != nil {
		return ens, 0, err
	}
	rec.ID = id

	h.feed.BroadcastRecord(toRecordDTO(rec))
	return ens, id, nil
}

func (h *Handlers) writeFailure(w http.ResponseWriter, err error) {
	var invalid *predict.InvalidInputError
	var inference *predict.InferenceError
	var write *ledger.WriteError

	switch {
	case errors.As(err, &invalid):
		writeErrorJSON(w, http.StatusBadRequest, "invalid_input", invalid.Error())
	case errors.As(err, &inference):
		h.log.Error("inference failed", zap.String("model", inference.Model), zap.Error(inference.Err))
		writeErrorJSON(w, http.StatusInternalServerError, "inference", inference.Error())
	case errors.As(err, &write):
		h.log.Error("ledger write failed", zap.Error(write.Err))
		writeErrorJSON(w, http.StatusInternalServerError, "ledger",
			"prediction computed but not recorded: "+write.Err.Error())
	default:
		h.log.Error("request failed", zap.Error(err))
		writeErrorJSON(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

// recordDTO is the JSON/display projection of a ledger record.
type recordDTO struct {
	ID            int64             `json:"id"`
	Timestamp     string            `json:"timestamp"`
	Features      string            `json:"features"`
	Latitude      *float64          `json:"latitude,omitempty"`
	Longitude     *float64          `json:"longitude,omitempty"`
	Predictions   map[string]string `json:"predictions"`
	Probabilities map[string]string `json:"probabilities,omitempty"`
}

func toRecordDTO(rec ledger.Record) recordDTO {
	return recordDTO{
		ID:            rec.ID,
		Timestamp:     rec.Timestamp.Format("2006-01-02 15:04:05"),
		Features:      rec.Features,
		Latitude:      rec.Latitude,
		Longitude:     rec.Longitude,
		Predictions:   rec.Labels,
		Probabilities: rec.Probs,
	}
}

func toRecordDTOs(records []ledger.Record) []recordDTO {
	out := make([]recordDTO, len(records))
	for i, rec := range records {
		out[i] = toRecordDTO(rec)
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeErrorJSON(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, map[string]string{"kind": kind, "error": message})
}

func formatFeatures(features []float64) string {
	parts := make([]string, len(features))
	for i, v := range features {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
