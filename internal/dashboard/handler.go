package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	smsync "github.com/smartm-app/smartm/internal/sync"
)

// Stats is the read side of the service the dashboard reports on.
type Stats interface {
	Operability(ctx context.Context) int
	Presence(ctx context.Context) (present, absent int)
}

// SyncRequest is the body of POST /api/sync.
type SyncRequest struct {
	Types []string `json:"types"`
	Mode  string   `json:"mode"`
}

// SyncResponse reports a sync pass.
type SyncResponse struct {
	OK      bool     `json:"ok"`
	Skipped bool     `json:"skipped,omitempty"`
	Synced  []string `json:"synced,omitempty"`
	PassID  string   `json:"passId,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// SettingsRequest is the body of PUT /api/sync/settings.
type SettingsRequest struct {
	AutoSync      bool `json:"autoSync"`
	SyncFrequency int  `json:"syncFrequency"`
}

// OperabilityResponse is served by GET /api/operability.
type OperabilityResponse struct {
	Operability int `json:"operability"`
	Present     int `json:"present"`
	Absent      int `json:"absent"`
}

// Handler bridges the sync manager to the dashboard server: it registers
// the JSON API and forwards state changes to websocket clients.
type Handler struct {
	server *Server
	mgr    *smsync.Manager
	stats  Stats
	mode   smsync.Mode
	logger *zap.Logger
}

// NewHandler registers the API routes on server. mode is used for sync
// requests that do not name one.
func NewHandler(server *Server, mgr *smsync.Manager, stats Stats, mode smsync.Mode) *Handler {
	h := &Handler{
		server: server,
		mgr:    mgr,
		stats:  stats,
		mode:   mode,
		logger: server.logger,
	}

	server.Handle("GET /api/sync", h.handleGetSync)
	server.Handle("POST /api/sync", h.handlePostSync)
	server.Handle("PUT /api/sync/settings", h.handleSettings)
	if stats != nil {
		server.Handle("GET /api/operability", h.handleOperability)
	}

	server.welcome = func() (Message, bool) {
		msg, err := NewMessage(MessageTypeSyncState, mgr.State(context.Background()))
		return msg, err == nil
	}
	return h
}

// Start subscribes to the manager and broadcasts every state change until
// ctx is done.
func (h *Handler) Start(ctx context.Context) {
	states, cancel := h.mgr.Subscribe()
	go h.forward(ctx, states, cancel)
}

func (h *Handler) forward(ctx context.Context, states <-chan smsync.State, cancel func()) {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			msg, err := NewMessage(MessageTypeSyncState, st)
			if err != nil {
				h.logger.Error("failed to encode sync state", zap.Error(err))
				continue
			}
			h.server.Broadcast(msg)
		}
	}
}

func (h *Handler) handleGetSync(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.mgr.State(r.Context()))
}

func (h *Handler) handlePostSync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	mode := h.mode
	if req.Mode != "" {
		m, err := smsync.ParseMode(req.Mode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		mode = m
	}

	types := make([]smsync.EntityType, 0, len(req.Types))
	for _, s := range req.Types {
		t, err := smsync.ParseEntityType(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		types = append(types, t)
	}

	res := h.mgr.Run(r.Context(), types, mode)

	resp := SyncResponse{OK: res.OK, Skipped: res.Skipped, PassID: res.PassID}
	for _, t := range res.Synced {
		resp.Synced = append(resp.Synced, string(t))
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}

	if msg, err := NewMessage(MessageTypeSyncResult, resp); err == nil {
		h.server.Broadcast(msg)
	}

	status := http.StatusOK
	switch {
	case res.Skipped:
		status = http.StatusConflict
	case res.Err != nil && errors.Is(res.Err, smsync.ErrSyncFailed):
		status = http.StatusBadGateway
	case res.Err != nil:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.mgr.SetAutoSyncSettings(r.Context(), req.AutoSync, req.SyncFrequency); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, smsync.ErrInvalidFrequency) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, h.mgr.State(r.Context()))
}

func (h *Handler) handleOperability(w http.ResponseWriter, r *http.Request) {
	present, absent := h.stats.Presence(r.Context())
	writeJSON(w, http.StatusOK, OperabilityResponse{
		Operability: h.stats.Operability(r.Context()),
		Present:     present,
		Absent:      absent,
	})
}
