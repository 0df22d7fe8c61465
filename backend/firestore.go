package backend

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"civildesk/models"
)

const firestoreCollection = "tickets"

// Firestore is the document backend: one document per ticket, keyed by the
// ticket's own ID.
type Firestore struct {
	client *firestore.Client
	cfg    FirestoreConfig
}

var (
	firestoreMu      sync.Mutex
	firestoreClients = map[FirestoreConfig]*Firestore{}
)

// NewFirestore initializes the document backend. Construction fails fast on a
// malformed descriptor. Initialization is idempotent: a second call with the
// same descriptor returns the existing adapter instead of reconnecting.
func NewFirestore(ctx context.Context, cfg FirestoreConfig) (*Firestore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore descriptor missing project id")
	}
	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("firestore descriptor missing credentials path")
	}
	if _, err := os.Stat(cfg.CredentialsPath); err != nil {
		return nil, fmt.Errorf("firestore credentials file not found: %s", cfg.CredentialsPath)
	}

	firestoreMu.Lock()
	defer firestoreMu.Unlock()
	if existing, ok := firestoreClients[cfg]; ok {
		return existing, nil
	}

	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error initializing Firestore client: %w", err)
	}

	log.Printf("✅ Connected to Firestore project: %s", cfg.ProjectID)

	fs := &Firestore{client: client, cfg: cfg}
	firestoreClients[cfg] = fs
	return fs, nil
}

func (f *Firestore) Name() string     { return "firestore" }
func (f *Firestore) Configured() bool { return true }

// Close closes the Firestore client and forgets the cached instance.
func (f *Firestore) Close() error {
	firestoreMu.Lock()
	delete(firestoreClients, f.cfg)
	firestoreMu.Unlock()
	return f.client.Close()
}

// FetchAll retrieves all tickets ordered by creation time, newest first.
func (f *Firestore) FetchAll(ctx context.Context) ([]models.Ticket, error) {
	iter := f.client.Collection(firestoreCollection).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var tickets []models.Ticket
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, mapFirestoreError("failed to iterate tickets", err)
		}

		var t models.Ticket
		if err := doc.DataTo(&t); err != nil {
			log.Printf("Warning: failed to parse ticket %s: %v", doc.Ref.ID, err)
			continue
		}
		tickets = append(tickets, t)
	}

	return tickets, nil
}

// Upsert writes the ticket as a merge-set keyed by its ID, so the same call
// serves create and update and repeating it is a no-op.
func (f *Firestore) Upsert(ctx context.Context, t models.Ticket) error {
	if err := validateForWrite(t); err != nil {
		return err
	}
	_, err := f.client.Collection(firestoreCollection).Doc(t.ID).Set(ctx, t, firestore.MergeAll)
	if err != nil {
		return mapFirestoreError(fmt.Sprintf("failed to upsert ticket %s", t.ID), err)
	}
	return nil
}

// mapFirestoreError folds an RPC failure into the shared error kinds.
func mapFirestoreError(msg string, err error) error {
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%s: %w: %v", msg, ErrPermissionDenied, err)
	case codes.NotFound:
		return fmt.Errorf("%s: %w: %v", msg, ErrNotFound, err)
	default:
		return fmt.Errorf("%s: %w: %v", msg, ErrUnavailable, err)
	}
}
