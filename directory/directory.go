// Package directory is the local user and credential store: registration,
// login, role and password management, and the single current-session slot.
// Directory data is purely local and never leaves the cache.
//
// The directory itself does not check roles; admin gating happens at the API
// boundary.
package directory

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"civildesk/auth"
	"civildesk/models"
	"civildesk/store"
)

var (
	ErrDuplicateEmail     = errors.New("e-mail already registered")
	ErrInvalidCredentials = errors.New("invalid e-mail or password")
)

// Service manages the staff directory and the session slot.
type Service struct {
	store *store.Store

	// mu serializes read-modify-write cycles on the user list. Without it,
	// concurrent registrations or a role update racing a password reset
	// would overwrite each other's rewrite of the slot.
	mu sync.Mutex
}

// NewService builds the directory service over the local cache.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// RegisterRequest carries the self-registration fields.
type RegisterRequest struct {
	Name          string `json:"name"`
	CPF           string `json:"cpf"`
	Email         string `json:"email"`
	RecoveryEmail string `json:"recoveryEmail"`
	Password      string `json:"password"`
}

// Register creates an OPERATOR-role directory entry. Fails with
// ErrDuplicateEmail when the email already exists; the directory is left
// unchanged in that case.
func (s *Service) Register(req RegisterRequest) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.store.Users()
	if err != nil {
		return models.User{}, err
	}

	for _, u := range users {
		if u.Email == req.Email {
			return models.User{}, ErrDuplicateEmail
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	entry := models.StoredUser{
		User: models.User{
			ID:            uuid.NewString(),
			Name:          req.Name,
			Email:         req.Email,
			Role:          models.RoleOperator,
			CPF:           req.CPF,
			RecoveryEmail: req.RecoveryEmail,
		},
		PasswordHash: hash,
	}

	users = append(users, entry)
	if err := s.store.SetUsers(users); err != nil {
		return models.User{}, err
	}
	return entry.Safe(), nil
}

// Login verifies the credential pair and, on success, writes the stripped
// user into the session slot. A wrong email and a wrong password are
// indistinguishable to the caller.
func (s *Service) Login(email, password string) (models.User, error) {
	users, err := s.store.Users()
	if err != nil {
		return models.User{}, err
	}

	for _, u := range users {
		if u.Email != email {
			continue
		}
		if auth.CheckPassword(password, u.PasswordHash) != nil {
			return models.User{}, ErrInvalidCredentials
		}
		safe := u.Safe()
		if err := s.store.SetSession(safe); err != nil {
			return models.User{}, err
		}
		return safe, nil
	}
	return models.User{}, ErrInvalidCredentials
}

// Logout clears the session slot. Idempotent.
func (s *Service) Logout() error {
	return s.store.ClearSession()
}

// CurrentUser returns the session user, or nil when logged out.
func (s *Service) CurrentUser() (*models.User, error) {
	return s.store.Session()
}

// AllUsers returns every directory entry, credentials stripped.
func (s *Service) AllUsers() ([]models.User, error) {
	users, err := s.store.Users()
	if err != nil {
		return nil, err
	}
	safe := make([]models.User, len(users))
	for i, u := range users {
		safe[i] = u.Safe()
	}
	return safe, nil
}

// FindByEmail returns the stripped entry for email, or nil when absent.
func (s *Service) FindByEmail(email string) (*models.User, error) {
	users, err := s.store.Users()
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Email == email {
			safe := u.Safe()
			return &safe, nil
		}
	}
	return nil, nil
}

// UpdateRole sets the role of the entry with the given email. Returns false
// when the email is absent from the directory.
func (s *Service) UpdateRole(email string, role models.UserRole) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.store.Users()
	if err != nil {
		return false, err
	}
	for i := range users {
		if users[i].Email == email {
			users[i].Role = role
			if err := s.store.SetUsers(users); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// UpdatePassword replaces the credential of the entry with the given email.
// Returns false when the email is absent from the directory.
func (s *Service) UpdatePassword(email, newPassword string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.store.Users()
	if err != nil {
		return false, err
	}
	for i := range users {
		if users[i].Email == email {
			hash, err := auth.HashPassword(newPassword)
			if err != nil {
				return false, fmt.Errorf("failed to hash password: %w", err)
			}
			users[i].PasswordHash = hash
			if err := s.store.SetUsers(users); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}
