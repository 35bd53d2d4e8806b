package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role determines what an authenticated user may do
type Role string

const (
	RoleMember Role = "member"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// User represents a registered account
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"displayName"`
	PasswordHash string     `json:"-"` // Never serialize
	Role         Role       `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// MaskedEmail returns a log-safe form of the email ("ja***@example.com")
func (u *User) MaskedEmail() string {
	at := strings.IndexByte(u.Email, '@')
	if at < 2 {
		return "***"
	}
	return u.Email[:2] + "***" + u.Email[at:]
}

// Theme is the UI color scheme
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// Preferences are per-user UI and pregnancy settings stored server-side
type Preferences struct {
	UserID           uuid.UUID      `json:"-"`
	Theme            Theme          `json:"theme"`
	FontScale        float64        `json:"fontScale"`
	ReadingMode      bool           `json:"readingMode"`
	NarrationEnabled bool           `json:"narrationEnabled"`
	HighContrast     bool           `json:"highContrast"`
	DueDate          *time.Time     `json:"dueDate,omitempty"`
	SavedPresets     []FilterPreset `json:"savedPresets"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// DefaultPreferences returns the settings a new user starts with
func DefaultPreferences(userID uuid.UUID) Preferences {
	return Preferences{
		UserID:       userID,
		Theme:        ThemeSystem,
		FontScale:    1.0,
		SavedPresets: []FilterPreset{},
	}
}

// RegisterRequest represents a request to create an account
type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// LoginRequest represents a request to sign in
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned after register or login
type AuthResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        *User     `json:"user"`
}

// LogoutResponse reports whether the token was revoked server-side
type LogoutResponse struct {
	Message string `json:"message"`
	Revoked bool   `json:"revoked"`
}

// UpdatePreferencesRequest carries a partial preferences update.
// Nil fields are left unchanged.
type UpdatePreferencesRequest struct {
	Theme            *Theme          `json:"theme,omitempty"`
	FontScale        *float64        `json:"fontScale,omitempty"`
	ReadingMode      *bool           `json:"readingMode,omitempty"`
	NarrationEnabled *bool           `json:"narrationEnabled,omitempty"`
	HighContrast     *bool           `json:"highContrast,omitempty"`
	DueDate          *string         `json:"dueDate,omitempty"`       // YYYY-MM-DD, "" clears
	LastPeriodDate   *string         `json:"lastPeriodDate,omitempty"` // YYYY-MM-DD, derives dueDate
	SavedPresets     *[]FilterPreset `json:"savedPresets,omitempty"`
}
