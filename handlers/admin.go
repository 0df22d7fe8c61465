package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"civildesk/audit"
	"civildesk/auth"
	"civildesk/backend"
	"civildesk/directory"
	"civildesk/middleware"
	"civildesk/models"
	"civildesk/store"
	"civildesk/sync"
)

// maxLogoBytes caps the uploaded branding image (base64 data URL).
const maxLogoBytes = 2 << 20

type AdminHandler struct {
	dir   *directory.Service
	data  *sync.DataService
	store *store.Store
	trail *audit.Trail
}

func NewAdminHandler(dir *directory.Service, data *sync.DataService, s *store.Store, trail *audit.Trail) *AdminHandler {
	return &AdminHandler{
		dir:   dir,
		data:  data,
		store: s,
		trail: trail,
	}
}

// --- User Management ---

type UpdateRoleRequest struct {
	Email string          `json:"email"`
	Role  models.UserRole `json:"role"`
}

type UpdatePasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"new_password"`
}

// GetUsers returns all directory users, credentials stripped
func (h *AdminHandler) GetUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	users, err := h.dir.AllUsers()
	if err != nil {
		log.Printf("❌ Failed to get users: %v", err)
		writeError(w, "Failed to retrieve users", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

// UpdateRole changes a user's role
func (h *AdminHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Role == "" {
		writeError(w, "Email and role are required", http.StatusBadRequest)
		return
	}
	if !models.ValidRole(req.Role) {
		writeError(w, fmt.Sprintf("Unknown role %q", req.Role), http.StatusBadRequest)
		return
	}

	changed, err := h.dir.UpdateRole(req.Email, req.Role)
	if err != nil {
		log.Printf("❌ Failed to update role for %s: %v", req.Email, err)
		writeError(w, "Failed to update role", http.StatusInternalServerError)
		return
	}
	if !changed {
		writeError(w, "User not found", http.StatusNotFound)
		return
	}

	h.trail.Record(adminUser.ID, "UPDATE_ROLE", fmt.Sprintf("Set role of %s to %s", req.Email, req.Role))
	log.Printf("✅ Role updated: %s → %s (by %s)", req.Email, req.Role, adminUser.Email)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "role updated"})
}

// UpdatePassword resets a user's password
func (h *AdminHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	var req UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.NewPassword == "" {
		writeError(w, "Email and new password are required", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePasswordStrength(req.NewPassword); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	changed, err := h.dir.UpdatePassword(req.Email, req.NewPassword)
	if err != nil {
		log.Printf("❌ Failed to update password for %s: %v", req.Email, err)
		writeError(w, "Failed to update password", http.StatusInternalServerError)
		return
	}
	if !changed {
		writeError(w, "User not found", http.StatusNotFound)
		return
	}

	h.trail.Record(adminUser.ID, "RESET_PASSWORD", fmt.Sprintf("Reset password of %s", req.Email))
	log.Printf("✅ Password reset for %s (by %s)", req.Email, adminUser.Email)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "password updated"})
}

// --- Backend Configuration ---

// BackendStatus describes the active sync backend without exposing secrets.
type BackendStatus struct {
	Kind       string `json:"kind"`
	Configured bool   `json:"configured"`
}

// GetBackend reports the active backend
func (h *AdminHandler) GetBackend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adapter := h.data.Adapter()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BackendStatus{
		Kind:       adapter.Name(),
		Configured: adapter.Configured(),
	})
}

// ConfigureBackend switches the sync backend. The new configuration is
// validated by building the adapter before it replaces the current one.
func (h *AdminHandler) ConfigureBackend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	var cfg backend.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.data.Configure(r.Context(), cfg); err != nil {
		log.Printf("❌ Backend configuration rejected: %v", err)
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.trail.Record(adminUser.ID, "CONFIGURE_BACKEND", fmt.Sprintf("Switched backend to %s", h.data.Adapter().Name()))
	log.Printf("✅ Backend configured: %s (by %s)", h.data.Adapter().Name(), adminUser.Email)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BackendStatus{
		Kind:       h.data.Adapter().Name(),
		Configured: h.data.Adapter().Configured(),
	})
}

// --- Branding ---

// GetLogo returns the custom logo data URL, or 404 when none was uploaded.
func (h *AdminHandler) GetLogo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	logo, ok, err := h.store.Logo()
	if err != nil {
		log.Printf("❌ Failed to read logo: %v", err)
		writeError(w, "Failed to read logo", http.StatusInternalServerError)
		return
	}
	if !ok {
		writeError(w, "No custom logo configured", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"logo": string(logo)})
}

// SetLogo stores a custom logo data URL
func (h *AdminHandler) SetLogo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	adminUser, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, "User not found in context", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxLogoBytes+1))
	if err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxLogoBytes {
		writeError(w, "Logo too large", http.StatusRequestEntityTooLarge)
		return
	}

	var req struct {
		Logo string `json:"logo"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Logo == "" {
		writeError(w, "Logo payload is required", http.StatusBadRequest)
		return
	}

	if err := h.store.SetLogo([]byte(req.Logo)); err != nil {
		log.Printf("❌ Failed to store logo: %v", err)
		writeError(w, "Failed to store logo", http.StatusInternalServerError)
		return
	}

	h.trail.Record(adminUser.ID, "UPDATE_LOGO", "Replaced the custom logo")
	log.Printf("✅ Custom logo updated (by %s)", adminUser.Email)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "logo updated"})
}

// --- Audit ---

// GetAuditLog returns the in-memory audit trail
func (h *AdminHandler) GetAuditLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.trail.Events())
}
