// Package sync implements the DataService facade: the single entry point the
// rest of the system uses for tickets. It decides per call whether to consult
// the configured remote backend, reconciles results into the local cache and
// defines the fallback behavior when the remote fails.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	stdsync "sync"
	"time"

	"civildesk/backend"
	"civildesk/models"
	"civildesk/store"
)

var (
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrInvalidTransition rejects a status change with no defined
	// transition. RESOLVED and CANCELLED are terminal.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// DataService coordinates the local cache and the remote backend adapter.
// The adapter is selected at configuration time; no call site branches on its
// concrete type.
type DataService struct {
	store *store.Store

	mu      stdsync.RWMutex
	adapter backend.Adapter

	// cacheMu serializes read-modify-write cycles on the cached ticket
	// collection. Handlers run concurrently; without this, two saves could
	// read the same snapshot and the later SetTickets would erase the
	// earlier ticket.
	cacheMu stdsync.Mutex
}

// NewDataService builds the facade in local-only mode. Call LoadBackend to
// restore a persisted backend configuration.
func NewDataService(s *store.Store) *DataService {
	return &DataService{store: s, adapter: backend.None{}}
}

// LoadBackend restores the persisted backend configuration, if any. A cache
// without a config slot means local-only mode and is not an error; a
// persisted config that no longer builds (revoked credentials, deleted key
// file) logs and leaves local-only mode in place so reads keep working.
func (ds *DataService) LoadBackend(ctx context.Context) {
	raw, ok, err := ds.store.Read(store.KeyBackendConfig)
	if err != nil {
		log.Printf("⚠️  Failed to read backend config: %v", err)
		return
	}
	if !ok {
		return
	}

	var cfg backend.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		log.Printf("⚠️  Corrupt backend config, staying local-only: %v", err)
		return
	}

	adapter, err := backend.New(ctx, cfg)
	if err != nil {
		log.Printf("⚠️  Persisted backend config no longer valid, staying local-only: %v", err)
		return
	}

	ds.setAdapter(adapter)
	if adapter.Configured() {
		log.Printf("🔌 Remote backend restored: %s", adapter.Name())
	}
}

// Configure builds the adapter cfg describes, makes it current and persists
// the descriptor so it survives restarts. Construction failure leaves the
// previous adapter untouched.
func (ds *DataService) Configure(ctx context.Context, cfg backend.Config) error {
	adapter, err := backend.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("backend configuration rejected: %w", err)
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode backend config: %w", err)
	}
	if err := ds.store.Write(store.KeyBackendConfig, raw); err != nil {
		return err
	}

	ds.setAdapter(adapter)
	log.Printf("🔌 Remote backend configured: %s", adapter.Name())
	return nil
}

func (ds *DataService) setAdapter(a backend.Adapter) {
	ds.mu.Lock()
	ds.adapter = a
	ds.mu.Unlock()
}

// Adapter returns the current backend adapter.
func (ds *DataService) Adapter() backend.Adapter {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.adapter
}

// GetTickets returns the ticket collection. With a configured backend the
// remote is authoritative: a successful fetch overwrites the cached
// collection. A remote failure is logged and the cached collection is
// returned unchanged — reads prefer stale data over errors.
func (ds *DataService) GetTickets(ctx context.Context) ([]models.Ticket, error) {
	adapter := ds.Adapter()
	if !adapter.Configured() {
		return ds.store.Tickets()
	}

	remote, err := adapter.FetchAll(ctx)
	if err != nil {
		log.Printf("⚠️  Remote fetch failed (%s), serving cached tickets: %v", adapter.Name(), err)
		return ds.store.Tickets()
	}

	if remote == nil {
		remote = []models.Ticket{}
	}
	ds.cacheMu.Lock()
	err = ds.store.SetTickets(remote)
	ds.cacheMu.Unlock()
	if err != nil {
		return nil, err
	}
	return remote, nil
}

// SaveTicket upserts the ticket locally first — that write is the durability
// guarantee and never depends on the remote. With a configured backend the
// remote upsert follows; its failure is returned to the caller so they know
// the change is not visible on other devices, but the local write stands.
func (ds *DataService) SaveTicket(ctx context.Context, t models.Ticket) error {
	if err := ds.saveLocal(t); err != nil {
		return err
	}

	adapter := ds.Adapter()
	if !adapter.Configured() {
		return nil
	}
	if err := adapter.Upsert(ctx, t); err != nil {
		return fmt.Errorf("ticket %s saved locally but remote sync failed: %w", t.ID, err)
	}
	return nil
}

// saveLocal performs the cache upsert as one uninterrupted cycle. The remote
// leg stays outside the lock so a slow network call never blocks other saves.
func (ds *DataService) saveLocal(t models.Ticket) error {
	ds.cacheMu.Lock()
	defer ds.cacheMu.Unlock()

	tickets, err := ds.store.Tickets()
	if err != nil {
		return err
	}

	found := false
	for i := range tickets {
		if tickets[i].ID == t.ID {
			tickets[i] = t
			found = true
			break
		}
	}
	if !found {
		// New tickets go first; the dashboard lists newest on top.
		tickets = append([]models.Ticket{t}, tickets...)
	}
	return ds.store.SetTickets(tickets)
}

// GetTicketByID resolves one ticket through GetTickets, inheriting its
// remote-then-fallback behavior.
func (ds *DataService) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	tickets, err := ds.GetTickets(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tickets {
		if tickets[i].ID == id {
			return &tickets[i], nil
		}
	}
	return nil, ErrTicketNotFound
}

// CanTransition reports whether a ticket may move from one status to another.
// OPEN and IN_PROGRESS are re-enterable (a ticket can be claimed again);
// RESOLVED and CANCELLED accept no further transitions.
func CanTransition(from, to models.TicketStatus) bool {
	switch from {
	case models.StatusOpen:
		return to == models.StatusOpen || to == models.StatusInProgress ||
			to == models.StatusResolved || to == models.StatusCancelled
	case models.StatusInProgress:
		return to == models.StatusOpen || to == models.StatusInProgress ||
			to == models.StatusResolved || to == models.StatusCancelled
	default:
		return false
	}
}

// ChangeStatus applies a status transition to the ticket, stamping UpdatedAt
// with the transition time, and saves through SaveTicket. The status change
// is the only mutation path after creation.
func (ds *DataService) ChangeStatus(ctx context.Context, id string, to models.TicketStatus) (*models.Ticket, error) {
	if !models.ValidStatus(to) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}

	t, err := ds.GetTicketByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(t.Status, to) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, t.Status, to)
	}

	updated := *t
	updated.Status = to
	updated.UpdatedAt = models.Timestamp(time.Now())
	if err := ds.SaveTicket(ctx, updated); err != nil {
		return &updated, err
	}
	return &updated, nil
}
