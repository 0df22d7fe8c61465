// Package backend contains the remote ticket backends: pluggable adapters
// that translate tickets to and from the wire format of one remote system.
// The sync layer holds exactly one adapter, selected at configuration time.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"civildesk/models"
)

// Error kinds surfaced by adapters. Callers distinguish them with errors.Is;
// permission/not-found/protocol indicate a configuration problem an admin
// must fix and are never silently swallowed.
var (
	ErrNotConfigured    = errors.New("backend not configured")
	ErrUnavailable      = errors.New("remote backend unavailable")
	ErrPermissionDenied = errors.New("remote permission denied")
	ErrNotFound         = errors.New("remote resource not found")
	ErrProtocol         = errors.New("remote API error")
)

// ValidationError reports ticket fields that must be present before a remote
// write. It is returned before any network I/O happens.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ticket missing required fields: %s", strings.Join(e.Missing, ", "))
}

// validateForWrite checks the remote-write precondition. The local cache
// accepts tickets this would reject; validation is a remote-path concern.
func validateForWrite(t models.Ticket) error {
	var missing []string
	if t.ID == "" {
		missing = append(missing, "id")
	}
	if t.Title == "" {
		missing = append(missing, "title")
	}
	if t.CreatedAt == "" {
		missing = append(missing, "createdAt")
	}
	if t.Status == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}

// Adapter is the common remote-backend contract. Implementations own their
// record-identity strategy; callers never branch on the concrete type.
type Adapter interface {
	// Name identifies the adapter kind for logs and status responses.
	Name() string
	// Configured reports whether remote calls can be attempted. The sync
	// layer checks this instead of probing with calls that would fail.
	Configured() bool
	// FetchAll returns every remote ticket, newest first.
	FetchAll(ctx context.Context) ([]models.Ticket, error)
	// Upsert writes the ticket keyed by its ID. Idempotent: repeating the
	// call with identical content leaves the remote state unchanged.
	Upsert(ctx context.Context, t models.Ticket) error
}

// Kind selects a backend variant in a persisted configuration.
type Kind string

const (
	KindNone      Kind = "none"
	KindFirestore Kind = "firestore"
	KindSheets    Kind = "sheets"
)

// Config is the adapter-specific connection descriptor persisted in the local
// cache. Absence of any configuration means local-only mode.
type Config struct {
	Kind      Kind             `json:"kind"`
	Firestore *FirestoreConfig `json:"firestore,omitempty"`
	Sheets    *SheetsConfig    `json:"sheets,omitempty"`
}

// FirestoreConfig identifies a Firestore project and its credentials file.
type FirestoreConfig struct {
	ProjectID       string `json:"projectId"`
	CredentialsPath string `json:"credentialsPath"`
}

// SheetsConfig identifies a spreadsheet and the bearer token used for its
// REST calls.
type SheetsConfig struct {
	SpreadsheetID string `json:"spreadsheetId"`
	AccessToken   string `json:"accessToken"`
}

// New builds the adapter a config describes. Construction fails fast on a
// malformed descriptor; it never performs network I/O.
func New(ctx context.Context, cfg Config) (Adapter, error) {
	switch cfg.Kind {
	case "", KindNone:
		return None{}, nil
	case KindFirestore:
		if cfg.Firestore == nil {
			return nil, errors.New("firestore backend selected but no descriptor given")
		}
		return NewFirestore(ctx, *cfg.Firestore)
	case KindSheets:
		if cfg.Sheets == nil {
			return nil, errors.New("sheets backend selected but no descriptor given")
		}
		return NewSheets(*cfg.Sheets)
	default:
		return nil, fmt.Errorf("unknown backend kind %q", cfg.Kind)
	}
}

// None is the unconfigured backend. The sync layer detects it through
// Configured rather than by catching errors.
type None struct{}

func (None) Name() string     { return "none" }
func (None) Configured() bool { return false }

func (None) FetchAll(ctx context.Context) ([]models.Ticket, error) {
	return nil, ErrNotConfigured
}

func (None) Upsert(ctx context.Context, t models.Ticket) error {
	return ErrNotConfigured
}
