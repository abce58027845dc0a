package ledger

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	events   []Event
	byClient map[string]struct{}
	snapshot Snapshot
	nextID   int64
	now      time.Time
	failing  bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		byClient: make(map[string]struct{}),
		now:      time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
	}
}

var errStoreDown = errors.New("store down")

func (r *memoryRepo) InsertEvent(ctx context.Context, deviceID string, in EventInput) (InsertOutcome, error) {
	if r.failing {
		return 0, errStoreDown
	}
	if _, ok := r.byClient[in.ClientEventID]; ok {
		return OutcomeDuplicate, nil
	}
	r.nextID++
	r.now = r.now.Add(time.Second)
	r.byClient[in.ClientEventID] = struct{}{}
	r.events = append(r.events, Event{
		ID:             r.nextID,
		ClientEventID:  in.ClientEventID,
		Type:           in.Type,
		ItemID:         in.ItemID,
		DeltaBaseUnits: in.DeltaBaseUnits,
		Notes:          in.Notes,
		PhotoURL:       in.PhotoURL,
		RefType:        in.RefType,
		RefID:          in.RefID,
		DeviceID:       deviceID,
		CreatedAt:      r.now,
	})
	return OutcomeInserted, nil
}

func (r *memoryRepo) ListAfter(ctx context.Context, cur Cursor) ([]Event, error) {
	if r.failing {
		return nil, errStoreDown
	}
	var out []Event
	for _, e := range r.events {
		if cur.Less(e.Key()) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memoryRepo) OnhandTotals(ctx context.Context) (map[string]float64, error) {
	if r.failing {
		return nil, errStoreDown
	}
	totals := map[string]float64{}
	for _, e := range r.events {
		totals[e.ItemID] += e.DeltaBaseUnits
	}
	return totals, nil
}

func (r *memoryRepo) OnhandForItem(ctx context.Context, itemID string) (float64, error) {
	totals, err := r.OnhandTotals(ctx)
	if err != nil {
		return 0, err
	}
	return totals[itemID], nil
}

func (r *memoryRepo) RefreshSnapshot(ctx context.Context) error {
	totals, err := r.OnhandTotals(ctx)
	if err != nil {
		return err
	}
	r.snapshot = Snapshot{Totals: totals, RefreshedAt: r.now}
	return nil
}

func (r *memoryRepo) GetSnapshot(ctx context.Context) (Snapshot, error) {
	return r.snapshot, nil
}

type stubItems struct {
	known map[string]bool
	err   error
}

func (s *stubItems) ItemExists(ctx context.Context, itemID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.known[itemID], nil
}

type captureNotifier struct {
	calls    int
	inserted int
}

func (n *captureNotifier) NotifyIngested(ctx context.Context, deviceID string, inserted int) {
	n.calls++
	n.inserted += inserted
}

func newTestService(repo *memoryRepo, items *stubItems) *Service {
	return NewService(repo, items, nil, nil, nil, nil)
}

func knownItems(ids ...string) *stubItems {
	known := make(map[string]bool, len(ids))
	for _, id := range ids {
		known[id] = true
	}
	return &stubItems{known: known}
}

func event(itemID string, typ EventType, delta float64) EventInput {
	return EventInput{
		ClientEventID:  uuid.NewString(),
		Type:           typ,
		ItemID:         itemID,
		DeltaBaseUnits: delta,
	}
}

func TestIngestIdempotency(t *testing.T) {
	itemX := uuid.NewString()
	repo := newMemoryRepo()
	svc := newTestService(repo, knownItems(itemX))
	ctx := context.Background()

	in := event(itemX, EventTypeTruckAdd, 24)

	res, err := svc.Ingest(ctx, "device-a", []EventInput{in})
	require.NoError(t, err)
	require.Equal(t, 1, res.Accepted)
	require.Equal(t, 1, res.Inserted)

	// Retry of the whole batch must be a no-op that still reports acceptance.
	res, err = svc.Ingest(ctx, "device-a", []EventInput{in})
	require.NoError(t, err)
	require.Equal(t, 1, res.Accepted)
	require.Equal(t, 0, res.Inserted)
	require.Equal(t, 1, res.Deduped)
	require.Len(t, repo.events, 1)

	// Same client id from a different device still dedups.
	res, err = svc.Ingest(ctx, "device-b", []EventInput{in})
	require.NoError(t, err)
	require.Equal(t, 1, res.Accepted)
	require.Len(t, repo.events, 1)

	totals, err := svc.Onhand(ctx)
	require.NoError(t, err)
	require.InDelta(t, 24, totals[itemX], 1e-9)
}

func TestOnhandOrderIndependence(t *testing.T) {
	itemX := uuid.NewString()
	itemY := uuid.NewString()
	base := []EventInput{
		event(itemX, EventTypeTruckAdd, 24),
		event(itemX, EventTypeWasteSub, -3),
		event(itemX, EventTypeCountSet, 1),
		event(itemY, EventTypeTransferInAdd, 10),
		event(itemY, EventTypeTransferOutSub, -4),
		event(itemY, EventTypeAdjustment, 0.5),
	}

	rng := rand.New(rand.NewSource(7))
	var reference map[string]float64
	for trial := 0; trial < 5; trial++ {
		batch := make([]EventInput, len(base))
		copy(batch, base)
		rng.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })

		repo := newMemoryRepo()
		svc := newTestService(repo, knownItems(itemX, itemY))
		_, err := svc.Ingest(context.Background(), "device-a", batch)
		require.NoError(t, err)

		totals, err := svc.Onhand(context.Background())
		require.NoError(t, err)
		if reference == nil {
			reference = totals
			continue
		}
		require.Equal(t, reference, totals)
	}
	require.InDelta(t, 22, reference[itemX], 1e-9)
	require.InDelta(t, 6.5, reference[itemY], 1e-9)
}

func TestPullCursorCompleteness(t *testing.T) {
	itemX := uuid.NewString()
	repo := newMemoryRepo()
	svc := newTestService(repo, knownItems(itemX))
	ctx := context.Background()

	var inputs []EventInput
	for i := 0; i < 5; i++ {
		inputs = append(inputs, event(itemX, EventTypeAdjustment, float64(i)))
	}
	_, err := svc.Ingest(ctx, "device-a", inputs)
	require.NoError(t, err)

	all, err := svc.Pull(ctx, Cursor{Since: time.Unix(0, 0).UTC()})
	require.NoError(t, err)
	require.Len(t, all, 5)

	// Pulling from the key of event k returns exactly the k+1..n suffix.
	for k, e := range all {
		rest, err := svc.Pull(ctx, e.Key())
		require.NoError(t, err)
		require.Len(t, rest, len(all)-k-1)
		for i, got := range rest {
			require.Equal(t, all[k+1+i].ID, got.ID)
		}
	}

	// Re-querying with the same cursor returns the same set.
	again, err := svc.Pull(ctx, all[1].Key())
	require.NoError(t, err)
	require.Len(t, again, 3)
}

func TestPullBreaksTimestampTiesByID(t *testing.T) {
	itemX := uuid.NewString()
	repo := newMemoryRepo()
	svc := newTestService(repo, knownItems(itemX))
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "device-a", []EventInput{
		event(itemX, EventTypeTruckAdd, 1),
		event(itemX, EventTypeTruckAdd, 2),
	})
	require.NoError(t, err)

	// Force a shared timestamp, the compound order key must still be total.
	repo.events[1].CreatedAt = repo.events[0].CreatedAt

	rest, err := svc.Pull(ctx, repo.events[0].Key())
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, repo.events[1].ID, rest[0].ID)
}

func TestIngestPartialBatchResilience(t *testing.T) {
	itemX := uuid.NewString()
	repo := newMemoryRepo()
	svc := newTestService(repo, knownItems(itemX))
	ctx := context.Background()

	batch := []EventInput{
		event(itemX, EventTypeTruckAdd, 5),
		{ClientEventID: uuid.NewString(), Type: "BAD_TYPE", ItemID: itemX, DeltaBaseUnits: 1},
		event(itemX, EventTypeWasteSub, -2),
	}
	res, err := svc.Ingest(ctx, "device-a", batch)
	require.NoError(t, err)
	require.Equal(t, 2, res.Accepted)
	require.Len(t, res.Rejected, 1)
	require.Contains(t, res.Rejected[0].Reason, "unknown event type")

	events, err := svc.Pull(ctx, Cursor{Since: time.Unix(0, 0).UTC()})
	require.NoError(t, err)
	require.Len(t, events, 2)
}

func TestIngestRejectsInvalidEvents(t *testing.T) {
	itemX := uuid.NewString()
	svc := newTestService(newMemoryRepo(), knownItems(itemX))
	ctx := context.Background()

	cases := []struct {
		name string
		in   EventInput
	}{
		{"missing client id", EventInput{Type: EventTypeTruckAdd, ItemID: itemX, DeltaBaseUnits: 1}},
		{"malformed client id", EventInput{ClientEventID: "not-a-uuid", Type: EventTypeTruckAdd, ItemID: itemX, DeltaBaseUnits: 1}},
		{"nan delta", EventInput{ClientEventID: uuid.NewString(), Type: EventTypeTruckAdd, ItemID: itemX, DeltaBaseUnits: math.NaN()}},
		{"inf delta", EventInput{ClientEventID: uuid.NewString(), Type: EventTypeTruckAdd, ItemID: itemX, DeltaBaseUnits: math.Inf(1)}},
		{"unknown item", event(uuid.NewString(), EventTypeTruckAdd, 1)},
		{"bad ref id", EventInput{ClientEventID: uuid.NewString(), Type: EventTypeTruckAdd, ItemID: itemX, DeltaBaseUnits: 1, RefID: "nope"}},
	}
	for _, tc := range cases {
		res, err := svc.Ingest(ctx, "device-a", []EventInput{tc.in})
		require.NoError(t, err, tc.name)
		require.Equal(t, 0, res.Accepted, tc.name)
		require.Len(t, res.Rejected, 1, tc.name)
	}
}

func TestIngestUnknownItemLeavesOnhandUntouched(t *testing.T) {
	itemX := uuid.NewString()
	ghost := uuid.NewString()
	repo := newMemoryRepo()
	svc := newTestService(repo, knownItems(itemX))
	ctx := context.Background()

	res, err := svc.Ingest(ctx, "device-a", []EventInput{event(ghost, EventTypeTruckAdd, 99)})
	require.NoError(t, err)
	require.Equal(t, 0, res.Accepted)

	totals, err := svc.Onhand(ctx)
	require.NoError(t, err)
	require.NotContains(t, totals, ghost)
}

func TestIngestOfflineDevicesConverge(t *testing.T) {
	// Item X: device A pushes TRUCK_ADD +24, device B (offline) later syncs
	// WASTE_SUB -3 and a COUNT_SET-derived +1. Onhand must be 22 regardless
	// of arrival order.
	itemX := uuid.NewString()
	a := event(itemX, EventTypeTruckAdd, 24)
	b1 := event(itemX, EventTypeWasteSub, -3)
	b2 := event(itemX, EventTypeCountSet, 1)

	orders := [][]EventInput{
		{a, b1, b2},
		{b1, b2, a},
		{b2, a, b1},
	}
	for _, order := range orders {
		repo := newMemoryRepo()
		svc := newTestService(repo, knownItems(itemX))
		for _, in := range order {
			_, err := svc.Ingest(context.Background(), "device", []EventInput{in})
			require.NoError(t, err)
		}
		totals, err := svc.Onhand(context.Background())
		require.NoError(t, err)
		require.InDelta(t, 22, totals[itemX], 1e-9)
	}
}

func TestIngestDeviceIDBounds(t *testing.T) {
	itemX := uuid.NewString()
	svc := newTestService(newMemoryRepo(), knownItems(itemX))

	_, err := svc.Ingest(context.Background(), "", []EventInput{event(itemX, EventTypeTruckAdd, 1)})
	require.ErrorIs(t, err, ErrInvalidDeviceID)

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'd'
	}
	_, err = svc.Ingest(context.Background(), string(long), nil)
	require.ErrorIs(t, err, ErrInvalidDeviceID)
}

func TestIngestSystemicFailureFailsWholeCall(t *testing.T) {
	itemX := uuid.NewString()
	repo := newMemoryRepo()
	repo.failing = true
	svc := newTestService(repo, knownItems(itemX))

	_, err := svc.Ingest(context.Background(), "device-a", []EventInput{event(itemX, EventTypeTruckAdd, 1)})
	require.ErrorIs(t, err, errStoreDown)

	// Catalog outage is also systemic, not a per-event rejection.
	svc = newTestService(newMemoryRepo(), &stubItems{err: errStoreDown})
	_, err = svc.Ingest(context.Background(), "device-a", []EventInput{event(itemX, EventTypeTruckAdd, 1)})
	require.ErrorIs(t, err, errStoreDown)
}

func TestIngestNotifiesOnlyWhenRowsAppended(t *testing.T) {
	itemX := uuid.NewString()
	repo := newMemoryRepo()
	notifier := &captureNotifier{}
	svc := NewService(repo, knownItems(itemX), notifier, nil, nil, nil)
	ctx := context.Background()

	in := event(itemX, EventTypeTruckAdd, 3)
	_, err := svc.Ingest(ctx, "device-a", []EventInput{in})
	require.NoError(t, err)
	require.Equal(t, 1, notifier.calls)

	// Pure-duplicate batch appends nothing, so nothing to refresh.
	_, err = svc.Ingest(ctx, "device-a", []EventInput{in})
	require.NoError(t, err)
	require.Equal(t, 1, notifier.calls)
	require.Equal(t, 1, notifier.inserted)
}

func TestSnapshotRefresh(t *testing.T) {
	itemX := uuid.NewString()
	repo := newMemoryRepo()
	svc := newTestService(repo, knownItems(itemX))
	ctx := context.Background()

	_, err := svc.Ingest(ctx, "device-a", []EventInput{event(itemX, EventTypeTruckAdd, 7)})
	require.NoError(t, err)

	require.NoError(t, svc.RefreshSnapshot(ctx))
	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.InDelta(t, 7, snap.Totals[itemX], 1e-9)
	require.False(t, snap.RefreshedAt.IsZero())

	onhand, err := svc.OnhandForItem(ctx, itemX)
	require.NoError(t, err)
	require.InDelta(t, snap.Totals[itemX], onhand, 1e-9)
}
