package sync

import (
	"context"
	"fmt"
	"path/filepath"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civildesk/backend"
	"civildesk/models"
	"civildesk/store"
)

// fakeAdapter is an in-memory backend with switchable failure modes.
type fakeAdapter struct {
	tickets  []models.Ticket
	fetchErr error
	writeErr error

	fetchCalls  int
	upsertCalls int
}

func (f *fakeAdapter) Name() string     { return "fake" }
func (f *fakeAdapter) Configured() bool { return true }

func (f *fakeAdapter) FetchAll(ctx context.Context) ([]models.Ticket, error) {
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.tickets, nil
}

func (f *fakeAdapter) Upsert(ctx context.Context, t models.Ticket) error {
	f.upsertCalls++
	if f.writeErr != nil {
		return f.writeErr
	}
	for i := range f.tickets {
		if f.tickets[i].ID == t.ID {
			f.tickets[i] = t
			return nil
		}
	}
	f.tickets = append(f.tickets, t)
	return nil
}

func newTestService(t *testing.T) (*DataService, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewDataService(s), s
}

func ticket(id string, status models.TicketStatus) models.Ticket {
	return models.Ticket{
		ID:        id,
		Title:     "Alagamento na via",
		Status:    status,
		Priority:  models.PriorityMedium,
		CreatedAt: "2026-08-30T12:00:00Z",
		UpdatedAt: "2026-08-30T12:00:00Z",
		Photos:    []string{},
	}
}

func TestLocalOnlyModeServesCache(t *testing.T) {
	ds, s := newTestService(t)

	require.NoError(t, s.SetTickets([]models.Ticket{ticket("CH-2026-0001", models.StatusOpen)}))

	tickets, err := ds.GetTickets(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "CH-2026-0001", tickets[0].ID)
}

func TestRemoteIsAuthoritativeForReads(t *testing.T) {
	ds, s := newTestService(t)

	require.NoError(t, s.SetTickets([]models.Ticket{ticket("CH-STALE", models.StatusOpen)}))
	fake := &fakeAdapter{tickets: []models.Ticket{ticket("CH-2026-0002", models.StatusInProgress)}}
	ds.setAdapter(fake)

	tickets, err := ds.GetTickets(context.Background())
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "CH-2026-0002", tickets[0].ID)

	// The remote result replaced the cached collection.
	cached, err := s.Tickets()
	require.NoError(t, err)
	require.Len(t, cached, 1)
	assert.Equal(t, "CH-2026-0002", cached[0].ID)
}

func TestFetchFailureFallsBackToCache(t *testing.T) {
	ds, s := newTestService(t)

	require.NoError(t, s.SetTickets([]models.Ticket{ticket("CH-2026-0003", models.StatusOpen)}))
	ds.setAdapter(&fakeAdapter{fetchErr: backend.ErrUnavailable})

	tickets, err := ds.GetTickets(context.Background())
	require.NoError(t, err, "a remote failure must not surface on reads")
	require.Len(t, tickets, 1)
	assert.Equal(t, "CH-2026-0003", tickets[0].ID)
}

func TestSaveTicketIsDurableWhenRemoteFails(t *testing.T) {
	ds, s := newTestService(t)
	ds.setAdapter(&fakeAdapter{writeErr: backend.ErrUnavailable})

	err := ds.SaveTicket(context.Background(), ticket("CH-2026-0004", models.StatusOpen))
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.Contains(t, err.Error(), "saved locally")

	cached, err := s.Tickets()
	require.NoError(t, err)
	require.Len(t, cached, 1, "local write must stand despite the remote failure")
	assert.Equal(t, "CH-2026-0004", cached[0].ID)
}

func TestSaveTicketUpsertsByID(t *testing.T) {
	ds, s := newTestService(t)
	fake := &fakeAdapter{}
	ds.setAdapter(fake)

	require.NoError(t, ds.SaveTicket(context.Background(), ticket("CH-2026-0005", models.StatusOpen)))
	updated := ticket("CH-2026-0005", models.StatusInProgress)
	require.NoError(t, ds.SaveTicket(context.Background(), updated))

	cached, err := s.Tickets()
	require.NoError(t, err)
	require.Len(t, cached, 1, "same id must not duplicate")
	assert.Equal(t, models.StatusInProgress, cached[0].Status)
	assert.Equal(t, 2, fake.upsertCalls)
}

func TestSaveTicketPrependsNewTickets(t *testing.T) {
	ds, s := newTestService(t)

	require.NoError(t, ds.SaveTicket(context.Background(), ticket("CH-2026-0006", models.StatusOpen)))
	require.NoError(t, ds.SaveTicket(context.Background(), ticket("CH-2026-0007", models.StatusOpen)))

	cached, err := s.Tickets()
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, "CH-2026-0007", cached[0].ID, "newest ticket listed first")
}

func TestConcurrentSavesAreNotLost(t *testing.T) {
	ds, s := newTestService(t)

	const n = 50
	var wg stdsync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("CH-2026-%04d", i)
			assert.NoError(t, ds.SaveTicket(context.Background(), ticket(id, models.StatusOpen)))
		}(i)
	}
	wg.Wait()

	cached, err := s.Tickets()
	require.NoError(t, err)
	assert.Len(t, cached, n, "every concurrent save must survive")

	seen := make(map[string]bool, len(cached))
	for _, c := range cached {
		seen[c.ID] = true
	}
	for i := 0; i < n; i++ {
		assert.True(t, seen[fmt.Sprintf("CH-2026-%04d", i)], "ticket %d lost", i)
	}
}

func TestGetTicketByID(t *testing.T) {
	ds, _ := newTestService(t)

	require.NoError(t, ds.SaveTicket(context.Background(), ticket("CH-2026-0008", models.StatusOpen)))

	got, err := ds.GetTicketByID(context.Background(), "CH-2026-0008")
	require.NoError(t, err)
	assert.Equal(t, "CH-2026-0008", got.ID)

	_, err = ds.GetTicketByID(context.Background(), "CH-MISSING")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestCanTransition(t *testing.T) {
	// Active states move anywhere, including back to themselves.
	for _, from := range []models.TicketStatus{models.StatusOpen, models.StatusInProgress} {
		for _, to := range []models.TicketStatus{models.StatusOpen, models.StatusInProgress, models.StatusResolved, models.StatusCancelled} {
			assert.True(t, CanTransition(from, to), "%s → %s", from, to)
		}
	}

	// Terminal states accept nothing.
	for _, from := range []models.TicketStatus{models.StatusResolved, models.StatusCancelled} {
		for _, to := range []models.TicketStatus{models.StatusOpen, models.StatusInProgress, models.StatusResolved, models.StatusCancelled} {
			assert.False(t, CanTransition(from, to), "%s → %s", from, to)
		}
	}
}

func TestChangeStatus(t *testing.T) {
	ds, _ := newTestService(t)

	require.NoError(t, ds.SaveTicket(context.Background(), ticket("CH-2026-0009", models.StatusOpen)))

	got, err := ds.ChangeStatus(context.Background(), "CH-2026-0009", models.StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, got.Status)
	assert.NotEqual(t, "2026-08-30T12:00:00Z", got.UpdatedAt, "transition must stamp UpdatedAt")

	// Terminal: no further transitions.
	_, err = ds.ChangeStatus(context.Background(), "CH-2026-0009", models.StatusOpen)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = ds.ChangeStatus(context.Background(), "CH-2026-0009", models.TicketStatus("ARCHIVED"))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = ds.ChangeStatus(context.Background(), "CH-MISSING", models.StatusResolved)
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestConfigurePersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	s, err := store.Open(path)
	require.NoError(t, err)
	ds := NewDataService(s)

	// The none kind always builds; it exercises persistence without
	// needing credentials.
	require.NoError(t, ds.Configure(context.Background(), backend.Config{Kind: backend.KindNone}))
	require.NoError(t, s.Close())

	s2, err := store.Open(path)
	require.NoError(t, err)
	defer s2.Close()

	ds2 := NewDataService(s2)
	ds2.LoadBackend(context.Background())
	assert.Equal(t, "none", ds2.Adapter().Name())
	assert.False(t, ds2.Adapter().Configured())
}

func TestConfigureRejectionKeepsPreviousAdapter(t *testing.T) {
	ds, _ := newTestService(t)
	fake := &fakeAdapter{}
	ds.setAdapter(fake)

	err := ds.Configure(context.Background(), backend.Config{Kind: backend.KindSheets, Sheets: &backend.SheetsConfig{}})
	require.Error(t, err)
	assert.Same(t, fake, ds.Adapter())
}

func TestLoadBackendToleratesCorruptConfig(t *testing.T) {
	ds, s := newTestService(t)

	require.NoError(t, s.Write(store.KeyBackendConfig, []byte("{broken")))
	ds.LoadBackend(context.Background())

	assert.False(t, ds.Adapter().Configured(), "corrupt config must leave local-only mode in place")
}
