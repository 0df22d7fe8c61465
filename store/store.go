// Package store implements the local cache: durable key-value persistence
// that survives process restarts and keeps every operation available when no
// remote backend is configured or reachable.
//
// The cache is a single embedded SQLite table (key TEXT PRIMARY KEY, value
// TEXT) opened in WAL mode. Each key is an independent slot holding one
// JSON-serialized collection or entity; there are no transactions across
// keys. Writes are immediately visible to subsequent reads in the same
// process.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"civildesk/models"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Persistence keys. Kept stable: existing deployments have data under them.
const (
	KeyTickets       = "dc_bertioga_tickets"
	KeySession       = "dc_current_user"
	KeyUsers         = "dc_users_db"
	KeyBackendConfig = "dc_backend_config"
	KeyLogo          = "dc_custom_logo"
)

// Store is the local cache handle. Safe for concurrent use; individual key
// reads and writes are atomic, but read-modify-write cycles are not fenced
// across processes (last write wins).
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the cache database at path, creating the parent
// directory and the cache table as needed.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping cache: %w", err)
	}

	s := &Store{conn: conn, path: path}

	// WAL keeps readers unblocked during writes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS cache (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}

	return s, nil
}

// Close closes the cache database.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Read returns the raw value stored under key, and whether the key exists.
func (s *Store) Read(key string) ([]byte, bool, error) {
	var value string
	err := s.conn.QueryRow("SELECT value FROM cache WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return []byte(value), true, nil
}

// Write stores value under key, replacing any previous value.
func (s *Store) Write(key string, value []byte) error {
	_, err := s.conn.Exec(
		"INSERT INTO cache (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, string(value),
	)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Remove deletes key from the cache. Removing an absent key is a no-op.
func (s *Store) Remove(key string) error {
	if _, err := s.conn.Exec("DELETE FROM cache WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to remove key %s: %w", key, err)
	}
	return nil
}

// readJSON decodes the slot under key into out. A malformed blob is an error
// here, at the boundary, rather than a partially populated value downstream.
func (s *Store) readJSON(key string, out interface{}) (bool, error) {
	raw, ok, err := s.Read(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("corrupt cache slot %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) writeJSON(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache slot %s: %w", key, err)
	}
	return s.Write(key, raw)
}

// --- Ticket collection ---

// Tickets returns the cached ticket collection, newest first.
func (s *Store) Tickets() ([]models.Ticket, error) {
	var tickets []models.Ticket
	ok, err := s.readJSON(KeyTickets, &tickets)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.Ticket{}, nil
	}
	return tickets, nil
}

// SetTickets replaces the cached ticket collection.
func (s *Store) SetTickets(tickets []models.Ticket) error {
	return s.writeJSON(KeyTickets, tickets)
}

// --- User directory ---

// Users returns the persisted directory entries, credential hashes included.
func (s *Store) Users() ([]models.StoredUser, error) {
	var users []models.StoredUser
	ok, err := s.readJSON(KeyUsers, &users)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.StoredUser{}, nil
	}
	return users, nil
}

// SetUsers replaces the persisted directory.
func (s *Store) SetUsers(users []models.StoredUser) error {
	return s.writeJSON(KeyUsers, users)
}

// --- Session slot ---

// Session returns the current session user, or nil when logged out.
func (s *Store) Session() (*models.User, error) {
	var user models.User
	ok, err := s.readJSON(KeySession, &user)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// SetSession stores user as the single current-login slot.
func (s *Store) SetSession(user models.User) error {
	return s.writeJSON(KeySession, user)
}

// ClearSession empties the session slot. Idempotent.
func (s *Store) ClearSession() error {
	return s.Remove(KeySession)
}

// --- Branding asset ---

// Logo returns the custom branding payload, if one was uploaded.
func (s *Store) Logo() ([]byte, bool, error) {
	return s.Read(KeyLogo)
}

// SetLogo stores a custom branding payload (data URI or URL).
func (s *Store) SetLogo(payload []byte) error {
	return s.Write(KeyLogo, payload)
}

// defaultTicket is the example incident seeded into an empty cache.
func defaultTicket(createdBy string) models.Ticket {
	now := models.Timestamp(time.Now())
	return models.Ticket{
		ID:            "CH-LOCAL-001",
		Title:         "Exemplo Inicial",
		Description:   "Chamado de exemplo gerado localmente.",
		Address:       "Rua Exemplo, 00",
		Neighborhood:  "Centro",
		RequesterName: "Sistema",
		Phone:         "(13) 99999-9999",
		Location:      &models.GeoLocation{Latitude: -23.853, Longitude: -46.142},
		Status:        models.StatusOpen,
		Priority:      models.PriorityLow,
		CreatedBy:     createdBy,
		CreatedAt:     now,
		UpdatedAt:     now,
		Photos:        []string{},
		AIAnalysis:    "Análise automática.",
	}
}
