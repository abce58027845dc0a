package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stocktally/stocktally/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the ledger: device sync push/pull and the
// on-hand reports.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountSyncRoutes registers the device replication endpoints.
func (h *Handler) MountSyncRoutes(r chi.Router) {
	r.Post("/push", h.handlePush)
	r.Get("/pull", h.handlePull)
}

// MountInventoryRoutes registers the on-hand report endpoints.
func (h *Handler) MountInventoryRoutes(r chi.Router) {
	r.Get("/onhand", h.handleOnhand)
	r.Get("/onhand/snapshot", h.handleSnapshot)
}

type pushEvent struct {
	ClientEventID  string  `json:"client_event_id"`
	EventType      string  `json:"event_type"`
	ItemID         string  `json:"item_id"`
	DeltaBaseUnits float64 `json:"delta_base_units"`
	Notes          string  `json:"notes,omitempty"`
	PhotoURL       string  `json:"photo_url,omitempty"`
	RefType        string  `json:"ref_type,omitempty"`
	RefID          string  `json:"ref_id,omitempty"`
}

type pushRequest struct {
	DeviceID string      `json:"device_id" validate:"required,min=1,max=128"`
	Events   []pushEvent `json:"events"`
}

type rejectedEventResponse struct {
	ClientEventID string `json:"client_event_id"`
	Reason        string `json:"reason"`
}

type pushResponse struct {
	Accepted int                     `json:"accepted"`
	Rejected []rejectedEventResponse `json:"rejected,omitempty"`
}

func (h *Handler) handlePush(w http.ResponseWriter, r *http.Request) {
	var req pushRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	inputs := make([]EventInput, 0, len(req.Events))
	for _, e := range req.Events {
		inputs = append(inputs, EventInput{
			ClientEventID:  e.ClientEventID,
			Type:           EventType(e.EventType),
			ItemID:         e.ItemID,
			DeltaBaseUnits: e.DeltaBaseUnits,
			Notes:          e.Notes,
			PhotoURL:       e.PhotoURL,
			RefType:        e.RefType,
			RefID:          e.RefID,
		})
	}

	res, err := h.service.Ingest(r.Context(), req.DeviceID, inputs)
	if err != nil {
		if errors.Is(err, ErrInvalidDeviceID) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("ingest batch", slog.String("device_id", req.DeviceID), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrStorageUnavailable)
		return
	}

	out := pushResponse{Accepted: res.Accepted}
	for _, rej := range res.Rejected {
		out.Rejected = append(out.Rejected, rejectedEventResponse{ClientEventID: rej.ClientEventID, Reason: rej.Reason})
	}
	httpx.JSON(w, http.StatusOK, out)
}

type eventResponse struct {
	ID             int64   `json:"id"`
	ClientEventID  string  `json:"client_event_id"`
	EventType      string  `json:"event_type"`
	ItemID         string  `json:"item_id"`
	DeltaBaseUnits float64 `json:"delta_base_units"`
	Notes          string  `json:"notes,omitempty"`
	PhotoURL       string  `json:"photo_url,omitempty"`
	RefType        string  `json:"ref_type,omitempty"`
	RefID          string  `json:"ref_id,omitempty"`
	DeviceID       string  `json:"device_id"`
	CreatedAt      string  `json:"created_at"`
}

type pullResponse struct {
	Events       []eventResponse `json:"events"`
	NextSince    string          `json:"next_since"`
	NextCursorID int64           `json:"next_cursor_id"`
}

func (h *Handler) handlePull(w http.ResponseWriter, r *http.Request) {
	cur := parseCursor(r)

	events, err := h.service.Pull(r.Context(), cur)
	if err != nil {
		h.logger.Error("pull events", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrStorageUnavailable)
		return
	}

	out := pullResponse{Events: make([]eventResponse, 0, len(events))}
	last := cur
	for _, e := range events {
		out.Events = append(out.Events, eventResponse{
			ID:             e.ID,
			ClientEventID:  e.ClientEventID,
			EventType:      string(e.Type),
			ItemID:         e.ItemID,
			DeltaBaseUnits: e.DeltaBaseUnits,
			Notes:          e.Notes,
			PhotoURL:       e.PhotoURL,
			RefType:        e.RefType,
			RefID:          e.RefID,
			DeviceID:       e.DeviceID,
			CreatedAt:      e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		last = e.Key()
	}
	out.NextSince = last.Since.UTC().Format(time.RFC3339Nano)
	out.NextCursorID = last.ID
	httpx.JSON(w, http.StatusOK, out)
}

// parseCursor reads the since/cursor_id pair. An unparsable or missing since
// falls back to the epoch, returning full history.
func parseCursor(r *http.Request) Cursor {
	cur := Cursor{Since: time.Unix(0, 0).UTC()}
	q := r.URL.Query()
	if raw := q.Get("since"); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			cur.Since = ts
		}
	}
	if raw := q.Get("cursor_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			cur.ID = id
		}
	}
	return cur
}

func (h *Handler) handleOnhand(w http.ResponseWriter, r *http.Request) {
	if itemID := r.URL.Query().Get("item_id"); itemID != "" {
		qty, err := h.service.OnhandForItem(r.Context(), itemID)
		if err != nil {
			if errors.Is(err, ErrUnknownItem) {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
				return
			}
			h.logger.Error("onhand item", slog.String("item_id", itemID), slog.Any("error", err))
			httpx.RespondError(w, httpx.ErrStorageUnavailable)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]float64{itemID: qty})
		return
	}

	totals, err := h.service.Onhand(r.Context())
	if err != nil {
		h.logger.Error("onhand totals", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrStorageUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, totals)
}

type snapshotResponse struct {
	Onhand      map[string]float64 `json:"onhand"`
	RefreshedAt string             `json:"refreshed_at,omitempty"`
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		h.logger.Error("onhand snapshot", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrStorageUnavailable)
		return
	}
	out := snapshotResponse{Onhand: snap.Totals}
	if !snap.RefreshedAt.IsZero() {
		out.RefreshedAt = snap.RefreshedAt.UTC().Format(time.RFC3339Nano)
	}
	httpx.JSON(w, http.StatusOK, out)
}
