package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"civildesk/auth"
	"civildesk/directory"
	"civildesk/models"
)

type AuthHandler struct {
	dir        *directory.Service
	jwtManager *auth.JWTManager
}

func NewAuthHandler(dir *directory.Service, jwtManager *auth.JWTManager) *AuthHandler {
	return &AuthHandler{
		dir:        dir,
		jwtManager: jwtManager,
	}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.dir.Login(req.Email, req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrInvalidCredentials) {
			log.Printf("Login failed for %s: invalid credentials", req.Email)
			writeError(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		log.Printf("Login failed for %s: %v", req.Email, err)
		writeError(w, "Login failed", http.StatusInternalServerError)
		return
	}

	token, err := h.jwtManager.GenerateToken(user)
	if err != nil {
		log.Printf("Failed to generate token for %s: %v", req.Email, err)
		writeError(w, "Failed to generate authentication token", http.StatusInternalServerError)
		return
	}

	refreshToken, err := h.jwtManager.GenerateRefreshToken(user)
	if err != nil {
		log.Printf("Failed to generate refresh token for %s: %v", req.Email, err)
		writeError(w, "Failed to generate refresh token", http.StatusInternalServerError)
		return
	}

	log.Printf("✅ User logged in: %s (role: %s)", user.Email, user.Role)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         user,
	})
}

// Register handles operator self-registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req directory.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, "Name, email and password are required", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePasswordStrength(req.Password); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.dir.Register(req)
	if err != nil {
		if errors.Is(err, directory.ErrDuplicateEmail) {
			writeError(w, "Email already registered", http.StatusConflict)
			return
		}
		log.Printf("Registration failed for %s: %v", req.Email, err)
		writeError(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	log.Printf("✅ User registered: %s", user.Email)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenResponse struct {
	Token string `json:"token"`
}

// RefreshToken handles token refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil {
		writeError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	user, err := h.dir.FindByEmail(claims.Email)
	if err != nil || user == nil {
		writeError(w, "User not found", http.StatusUnauthorized)
		return
	}

	token, err := h.jwtManager.GenerateToken(*user)
	if err != nil {
		log.Printf("Failed to generate token for %s: %v", user.Email, err)
		writeError(w, "Failed to generate authentication token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(RefreshTokenResponse{
		Token: token,
	})
}

// Logout clears the local session slot. Token invalidation is the client's
// side of the contract; the server only drops the remembered session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := h.dir.Logout(); err != nil {
		log.Printf("Logout failed: %v", err)
		writeError(w, "Logout failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "logged out"})
}

// Session returns the remembered login from the local session slot, letting a
// restarted client resume without re-authenticating. 404 when logged out.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := h.dir.CurrentUser()
	if err != nil {
		log.Printf("Failed to read session slot: %v", err)
		writeError(w, "Failed to read session", http.StatusInternalServerError)
		return
	}
	if user == nil {
		writeError(w, "No active session", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
