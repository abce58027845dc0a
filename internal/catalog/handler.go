package catalog

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stocktally/stocktally/internal/platform/httpx"
	"github.com/stocktally/stocktally/internal/shared"
)

// Handler wires HTTP endpoints for the catalog.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountItemRoutes registers item CRUD routes.
func (h *Handler) MountItemRoutes(r chi.Router) {
	r.Get("/", h.handleListItems)
	r.Post("/", h.handleCreateItem)
	r.Put("/{itemID}", h.handleUpdateItem)
}

// MountMetaRoutes registers the read-only metadata routes.
func (h *Handler) MountMetaRoutes(r chi.Router) {
	r.Get("/settings", h.handleSettings)
	r.Get("/units", h.handleUnits)
	r.Get("/locations", h.handleLocations)
}

type itemRequest struct {
	Name              string   `json:"name" validate:"required"`
	BaseUnitID        string   `json:"base_unit_id" validate:"required,uuid"`
	CaseSize          *float64 `json:"case_size"`
	AllowPartials     *bool    `json:"allow_partials"`
	ParLevel          *float64 `json:"par_level"`
	LowThreshold      *float64 `json:"low_threshold"`
	DefaultLocationID *string  `json:"default_location_id"`
	Active            *bool    `json:"active"`
}

func (req itemRequest) toItem() Item {
	item := Item{
		Name:              strings.TrimSpace(req.Name),
		BaseUnitID:        req.BaseUnitID,
		CaseSize:          req.CaseSize,
		AllowPartials:     true,
		ParLevel:          req.ParLevel,
		LowThreshold:      req.LowThreshold,
		DefaultLocationID: req.DefaultLocationID,
		Active:            true,
	}
	if req.AllowPartials != nil {
		item.AllowPartials = *req.AllowPartials
	}
	if req.Active != nil {
		item.Active = *req.Active
	}
	return item
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	items, err := h.service.ListItems(r.Context(), includeInactive)
	if err != nil {
		h.logger.Error("list items", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrStorageUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	id, err := h.service.CreateItem(r.Context(), req.toItem())
	if err != nil {
		if errors.Is(err, ErrInvalidItem) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("create item", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrStorageUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")

	var req itemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.service.UpdateItem(r.Context(), id, req.toItem()); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		if errors.Is(err, ErrInvalidItem) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		h.logger.Error("update item", slog.String("item_id", id), slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrStorageUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.GetSettings(r.Context())
	if err != nil {
		h.logger.Error("get settings", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrStorageUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, settings)
}

func (h *Handler) handleUnits(w http.ResponseWriter, r *http.Request) {
	units, err := h.service.ListUnits(r.Context())
	if err != nil {
		h.logger.Error("list units", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrStorageUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, units)
}

func (h *Handler) handleLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.ListLocations(r.Context())
	if err != nil {
		h.logger.Error("list locations", slog.Any("error", err))
		httpx.RespondError(w, httpx.ErrStorageUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, locations)
}
