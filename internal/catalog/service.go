package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/stocktally/stocktally/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps catalog business rules.
type Service struct {
	repo  Repository
	audit AuditPort
}

// NewService constructs a new Service. audit may be nil.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

func (s *Service) ListItems(ctx context.Context, includeInactive bool) ([]Item, error) {
	return s.repo.ListItems(ctx, includeInactive)
}

func (s *Service) CreateItem(ctx context.Context, item Item) (string, error) {
	if err := s.validate(item); err != nil {
		return "", err
	}
	id, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return "", err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    "store",
			Action:   "catalog:item-create",
			Entity:   "items",
			EntityID: id,
			Meta:     map[string]any{"name": item.Name},
		})
	}
	return id, nil
}

func (s *Service) UpdateItem(ctx context.Context, id string, item Item) error {
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrNotFound
	}
	if err := s.validate(item); err != nil {
		return err
	}
	if err := s.repo.UpdateItem(ctx, id, item); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    "store",
			Action:   "catalog:item-update",
			Entity:   "items",
			EntityID: id,
			Meta:     map[string]any{"name": item.Name},
		})
	}
	return nil
}

// ItemExists reports whether the item id references a catalog row. This is
// the existence port the ledger consumes; the catalog stays the entity owner.
func (s *Service) ItemExists(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	return s.repo.ItemExists(ctx, id)
}

func (s *Service) ListUnits(ctx context.Context) ([]Unit, error) {
	return s.repo.ListUnits(ctx)
}

func (s *Service) ListLocations(ctx context.Context) ([]Location, error) {
	return s.repo.ListLocations(ctx)
}

// GetSettings returns the configured store identity, falling back to the
// seeded default when no row exists yet.
func (s *Service) GetSettings(ctx context.Context) (Settings, error) {
	settings, err := s.repo.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return DefaultSettings, nil
		}
		return Settings{}, err
	}
	return settings, nil
}

// ErrInvalidItem indicates an item that fails catalog validation.
var ErrInvalidItem = errors.New("catalog: invalid item")

func (s *Service) validate(item Item) error {
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if _, err := uuid.Parse(item.BaseUnitID); err != nil {
		return fmt.Errorf("%w: base unit id is required", ErrInvalidItem)
	}
	if item.DefaultLocationID != nil {
		if _, err := uuid.Parse(*item.DefaultLocationID); err != nil {
			return fmt.Errorf("%w: default location id is invalid", ErrInvalidItem)
		}
	}
	return nil
}
