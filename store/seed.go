package store

import (
	"fmt"
	"log"

	"civildesk/models"
)

// SeedAdmin is the fixed admin identity the cache guarantees after Seed.
type SeedAdmin struct {
	ID            string
	Name          string
	Email         string
	CPF           string
	RecoveryEmail string
	// PasswordHash is the bcrypt hash of the seed password. It is only used
	// when the admin entry does not yet have a credential; an existing
	// password is never overwritten.
	PasswordHash string
}

// Seed initializes an empty cache: one example ticket and one admin directory
// entry. Idempotent — running it again never duplicates either, and if the
// admin entry survived with a different role it is reset to ADMIN so a
// corrupted cache cannot silently drop the privilege.
func (s *Store) Seed(admin SeedAdmin) error {
	if _, ok, err := s.Read(KeyTickets); err != nil {
		return err
	} else if !ok {
		if err := s.SetTickets([]models.Ticket{defaultTicket(admin.ID)}); err != nil {
			return fmt.Errorf("failed to seed tickets: %w", err)
		}
		log.Printf("🌱 Seeded default ticket CH-LOCAL-001")
	}

	users, err := s.Users()
	if err != nil {
		return err
	}

	idx := -1
	for i, u := range users {
		if u.Email == admin.Email {
			idx = i
			break
		}
	}

	if idx < 0 {
		users = append(users, models.StoredUser{
			User: models.User{
				ID:            admin.ID,
				Name:          admin.Name,
				Email:         admin.Email,
				Role:          models.RoleAdmin,
				CPF:           admin.CPF,
				RecoveryEmail: admin.RecoveryEmail,
			},
			PasswordHash: admin.PasswordHash,
		})
		log.Printf("🌱 Seeded admin user %s", admin.Email)
	} else {
		if users[idx].Role != models.RoleAdmin {
			log.Printf("⚠️  Admin entry %s had role %s, resetting to ADMIN", admin.Email, users[idx].Role)
			users[idx].Role = models.RoleAdmin
		}
		if users[idx].PasswordHash == "" {
			users[idx].PasswordHash = admin.PasswordHash
		}
	}

	if err := s.SetUsers(users); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	return nil
}
