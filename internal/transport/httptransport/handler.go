package httptransport

import (
	"encoding/json"
	"net/http"

	"github.com/awmpietro/golang-execution-tracer/internal/app"
	"github.com/awmpietro/golang-execution-tracer/internal/transport/tracedto"
)

type Handler struct {
	svc app.TraceService
}

func NewHandler(svc app.TraceService) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/redirect/decide", h.Decide)
	mux.HandleFunc("/actions/project", h.Project)
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in tracedto.DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()})
		return
	}

	res, err := h.svc.Decide(in.Host, in.Options())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, decideErrorBody(err, res))
		return
	}
	writeJSON(w, http.StatusOK, tracedto.NewDecideResponse(res))
}

func (h *Handler) Project(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var in tracedto.ProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json", "details": err.Error()})
		return
	}

	out, err := h.svc.Project(in.Action, in.Complete)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "projection failed", "details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tracedto.ProjectResponse{Action: out, Complete: in.Complete})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decideErrorBody(err error, res *app.DecideResult) map[string]any {
	body := map[string]any{
		"error":   "decide failed",
		"details": err.Error(),
	}
	if res != nil && res.Trace != nil {
		body["trace"] = res.Trace
	}
	return body
}
