package gate_api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"gatescan/internal/checkin"
	"gatescan/internal/logger"
	"gatescan/internal/models"
)

// QueueStatusLayer is the queue slice the status endpoints read.
type QueueStatusLayer interface {
	Depth() (int, error)
	AuditEntries(event string) ([]*models.AuditEntry, error)
}

// Handler exposes the scan operation to the capture layer. It is a thin
// shim: every decision lives in the checkin service.
type Handler struct {
	Service   *checkin.Service
	Queue     QueueStatusLayer
	Logger    *logger.Logger
	EventSlug string
}

type scanRequest struct {
	Secret       string           `json:"secret"`
	Direction    string           `json:"direction"`
	Force        bool             `json:"force"`
	IgnoreUnpaid bool             `json:"ignore_unpaid"`
	Answers      map[int64]string `json:"answers"`
}

// Scan handles POST /scan/{listID}.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	listID, err := strconv.ParseInt(chi.URLParam(r, "listID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid list id", http.StatusBadRequest)
		return
	}

	var body scanRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Secret == "" {
		http.Error(w, "secret is required", http.StatusBadRequest)
		return
	}

	resp, err := h.Service.Redeem(checkin.Request{
		Secret:       body.Secret,
		ListID:       listID,
		EventSlug:    h.EventSlug,
		Direction:    body.Direction,
		Force:        body.Force,
		IgnoreUnpaid: body.IgnoreUnpaid,
		Answers:      body.Answers,
	})
	if err != nil {
		// System failure: a generic fallback, never a crash of the scan
		// surface. Domain rejections take the other branch.
		if h.Logger != nil {
			h.Logger.Error("API", fmt.Sprintf("scan failed: %v", err))
		}
		writeJSON(w, http.StatusInternalServerError, &checkin.Response{
			Status: checkin.StatusError,
			Detail: "internal error, scan not processed",
		})
		return
	}

	status := http.StatusOK
	if resp.Status != checkin.StatusRedeemed {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

type queueStatus struct {
	Pending int                  `json:"pending"`
	Failed  []*models.AuditEntry `json:"failed,omitempty"`
}

// QueueStatus handles GET /queue/status.
func (h *Handler) QueueStatus(w http.ResponseWriter, r *http.Request) {
	depth, err := h.Queue.Depth()
	if err != nil {
		http.Error(w, "queue unavailable", http.StatusInternalServerError)
		return
	}
	failed, err := h.Queue.AuditEntries(h.EventSlug)
	if err != nil {
		http.Error(w, "queue unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, queueStatus{Pending: depth, Failed: failed})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
