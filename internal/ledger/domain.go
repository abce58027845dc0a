package ledger

import (
	"errors"
	"time"
)

// EventType enumerates the supported inventory event kinds. Every type is a
// pure signed delta against on-hand stock; COUNT_SET carries the reconciling
// delta computed on the device, never the observed absolute count.
type EventType string

const (
	// EventTypeCountSet reconciles on-hand with a physical count.
	EventTypeCountSet EventType = "COUNT_SET"
	// EventTypeTruckAdd records stock received from a truck delivery.
	EventTypeTruckAdd EventType = "TRUCK_ADD"
	// EventTypeWasteSub records discarded stock.
	EventTypeWasteSub EventType = "WASTE_SUB"
	// EventTypeTransferOutSub records stock sent to another location.
	EventTypeTransferOutSub EventType = "TRANSFER_OUT_SUB"
	// EventTypeTransferInAdd records stock received from another location.
	EventTypeTransferInAdd EventType = "TRANSFER_IN_ADD"
	// EventTypeAdjustment records a manual correction.
	EventTypeAdjustment EventType = "ADJUSTMENT"
)

// Valid reports whether the type is part of the closed enumeration.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeCountSet, EventTypeTruckAdd, EventTypeWasteSub,
		EventTypeTransferOutSub, EventTypeTransferInAdd, EventTypeAdjustment:
		return true
	}
	return false
}

// Event is one stored ledger row. Immutable once written.
type Event struct {
	ID             int64
	ClientEventID  string
	Type           EventType
	ItemID         string
	DeltaBaseUnits float64
	Notes          string
	PhotoURL       string
	RefType        string
	RefID          string
	DeviceID       string
	CreatedAt      time.Time
}

// EventInput is a client-submitted event before server-side fields are assigned.
type EventInput struct {
	ClientEventID  string
	Type           EventType
	ItemID         string
	DeltaBaseUnits float64
	Notes          string
	PhotoURL       string
	RefType        string
	RefID          string
}

// Cursor is a replication watermark in the (created_at, id) total order.
// The zero value means the epoch, i.e. full history.
type Cursor struct {
	Since time.Time
	ID    int64
}

// Key returns the order key of an event for cursor comparisons.
func (e Event) Key() Cursor {
	return Cursor{Since: e.CreatedAt, ID: e.ID}
}

// Less reports whether c sits strictly before other in the total order.
func (c Cursor) Less(other Cursor) bool {
	if c.Since.Equal(other.Since) {
		return c.ID < other.ID
	}
	return c.Since.Before(other.Since)
}

// InsertOutcome distinguishes a fresh append from an idempotent no-op.
type InsertOutcome int

const (
	// OutcomeInserted means a new row was appended.
	OutcomeInserted InsertOutcome = iota
	// OutcomeDuplicate means the client_event_id already existed.
	OutcomeDuplicate
)

// Snapshot is a non-authoritative cached view of on-hand totals.
type Snapshot struct {
	Totals      map[string]float64
	RefreshedAt time.Time
}

// ErrUnknownEventType indicates a type outside the enumeration.
var ErrUnknownEventType = errors.New("ledger: unknown event type")

// ErrNonFiniteDelta indicates a NaN or infinite delta.
var ErrNonFiniteDelta = errors.New("ledger: delta must be finite")

// ErrMissingClientEventID indicates an absent or malformed idempotency key.
var ErrMissingClientEventID = errors.New("ledger: client event id required")

// ErrUnknownItem indicates the referenced item does not exist in the catalog.
var ErrUnknownItem = errors.New("ledger: unknown item")

// ErrInvalidDeviceID indicates a device id outside the 1-128 char bound.
var ErrInvalidDeviceID = errors.New("ledger: device id must be 1-128 chars")
