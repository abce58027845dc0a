package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/stocktally/stocktally/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	InsertEvent(ctx context.Context, deviceID string, in EventInput) (InsertOutcome, error)
	ListAfter(ctx context.Context, cur Cursor) ([]Event, error)
	OnhandTotals(ctx context.Context) (map[string]float64, error)
	OnhandForItem(ctx context.Context, itemID string) (float64, error)
	RefreshSnapshot(ctx context.Context) error
	GetSnapshot(ctx context.Context) (Snapshot, error)
}

// ItemChecker reports whether an item id exists in the catalog. The ledger
// holds only the foreign key; the catalog owns the entity.
type ItemChecker interface {
	ItemExists(ctx context.Context, itemID string) (bool, error)
}

// Notifier is poked after a batch that appended at least one row, so a
// background snapshot refresh can be scheduled. Best effort only.
type Notifier interface {
	NotifyIngested(ctx context.Context, deviceID string, inserted int)
}

// Recorder receives per-batch ingestion counters.
type Recorder interface {
	ObserveIngest(inserted, deduped, rejected int)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates ledger operations: idempotent batch ingestion, cursor
// replication and the on-hand reduction.
type Service struct {
	repo     RepositoryPort
	items    ItemChecker
	notifier Notifier
	metrics  Recorder
	audit    AuditPort
	logger   *slog.Logger
}

// NewService builds Service. notifier, metrics, audit and logger may be nil.
func NewService(repo RepositoryPort, items ItemChecker, notifier Notifier, metrics Recorder, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, items: items, notifier: notifier, metrics: metrics, audit: audit, logger: logger}
}

// RejectedEvent describes one event dropped from a batch.
type RejectedEvent struct {
	ClientEventID string
	Reason        string
}

// IngestResult reports the outcome of one batch.
type IngestResult struct {
	// Accepted counts events that now exist in the ledger as a result of
	// this call: freshly inserted plus idempotent duplicates.
	Accepted int
	Inserted int
	Deduped  int
	Rejected []RejectedEvent
}

// Ingest processes a device batch. Each event is validated and appended
// independently; a malformed or dangling event is skipped, never aborting the
// remainder. Only a systemic storage failure fails the whole call, and then
// no partial count is reported.
func (s *Service) Ingest(ctx context.Context, deviceID string, events []EventInput) (IngestResult, error) {
	if len(deviceID) == 0 || len(deviceID) > 128 {
		return IngestResult{}, ErrInvalidDeviceID
	}
	var res IngestResult
	for _, in := range events {
		if err := s.validateEvent(ctx, in); err != nil {
			if isSystemic(err) {
				return IngestResult{}, err
			}
			res.Rejected = append(res.Rejected, RejectedEvent{ClientEventID: in.ClientEventID, Reason: err.Error()})
			s.logger.Warn("event rejected",
				slog.String("device_id", deviceID),
				slog.String("client_event_id", in.ClientEventID),
				slog.Any("error", err))
			continue
		}
		outcome, err := s.repo.InsertEvent(ctx, deviceID, in)
		if err != nil {
			if errors.Is(err, ErrUnknownItem) {
				// Lost a race with the catalog check; reject just this event.
				res.Rejected = append(res.Rejected, RejectedEvent{ClientEventID: in.ClientEventID, Reason: err.Error()})
				continue
			}
			return IngestResult{}, fmt.Errorf("ledger: insert event: %w", err)
		}
		res.Accepted++
		if outcome == OutcomeDuplicate {
			res.Deduped++
		} else {
			res.Inserted++
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveIngest(res.Inserted, res.Deduped, len(res.Rejected))
	}
	if s.notifier != nil && res.Inserted > 0 {
		s.notifier.NotifyIngested(ctx, deviceID, res.Inserted)
	}
	if s.audit != nil && res.Inserted > 0 {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:    deviceID,
			Action:   "ledger:ingest",
			Entity:   "inventory_events",
			EntityID: deviceID,
			Meta: map[string]any{
				"inserted": res.Inserted,
				"deduped":  res.Deduped,
				"rejected": len(res.Rejected),
			},
		})
	}
	return res, nil
}

func (s *Service) validateEvent(ctx context.Context, in EventInput) error {
	if in.ClientEventID == "" {
		return ErrMissingClientEventID
	}
	if _, err := uuid.Parse(in.ClientEventID); err != nil {
		return fmt.Errorf("%w: %v", ErrMissingClientEventID, err)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, in.Type)
	}
	if math.IsNaN(in.DeltaBaseUnits) || math.IsInf(in.DeltaBaseUnits, 0) {
		return ErrNonFiniteDelta
	}
	if _, err := uuid.Parse(in.ItemID); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownItem, err)
	}
	if in.RefID != "" {
		if _, err := uuid.Parse(in.RefID); err != nil {
			return fmt.Errorf("ledger: invalid ref id: %v", err)
		}
	}
	if s.items != nil {
		exists, err := s.items.ItemExists(ctx, in.ItemID)
		if err != nil {
			return systemicError{err}
		}
		if !exists {
			return ErrUnknownItem
		}
	}
	return nil
}

// Pull returns every event strictly after the cursor in (created_at, id)
// order. Re-querying with the same cursor returns the same set; the store is
// append-only. The caller continues by re-pulling from the max key observed.
func (s *Service) Pull(ctx context.Context, cur Cursor) ([]Event, error) {
	events, err := s.repo.ListAfter(ctx, cur)
	if err != nil {
		return nil, fmt.Errorf("ledger: pull: %w", err)
	}
	return events, nil
}

// Onhand reduces the full history into per-item totals. Summation is
// commutative and associative, so the result is independent of insertion
// order among the same event set.
func (s *Service) Onhand(ctx context.Context) (map[string]float64, error) {
	totals, err := s.repo.OnhandTotals(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: onhand: %w", err)
	}
	return totals, nil
}

// OnhandForItem reduces a single item's history.
func (s *Service) OnhandForItem(ctx context.Context, itemID string) (float64, error) {
	if _, err := uuid.Parse(itemID); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnknownItem, err)
	}
	return s.repo.OnhandForItem(ctx, itemID)
}

// RefreshSnapshot rebuilds the reporting snapshot from the ledger.
func (s *Service) RefreshSnapshot(ctx context.Context) error {
	return s.repo.RefreshSnapshot(ctx)
}

// Snapshot returns the last refreshed reporting snapshot.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	return s.repo.GetSnapshot(ctx)
}

// systemicError marks failures of the store itself, as opposed to failures
// intrinsic to one event.
type systemicError struct{ err error }

func (e systemicError) Error() string { return e.err.Error() }
func (e systemicError) Unwrap() error { return e.err }

func isSystemic(err error) bool {
	var s systemicError
	return errors.As(err, &s)
}
