package auth

import (
	"context"
	"errors"
	"time"
)

type Role string

const (
	RoleNone   Role = ""
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleClient
}

var (
	ErrNotAuthenticated   = errors.New("auth: not signed in")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// Credentials is what the identity provider hands back on sign-in or refresh.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	Email        string
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Profile is the backend's view of the signed-in user.
type Profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Provider is the third-party identity service.
type Provider interface {
	SignIn(ctx context.Context, email, password string) (Credentials, error)
	Refresh(ctx context.Context, refreshToken string) (Credentials, error)
	SignOut(ctx context.Context, accessToken string) error
}

// ProfileLookup resolves a role when the token carries no custom claim.
type ProfileLookup interface {
	Profile(ctx context.Context) (Profile, error)
}

type EventType string

const (
	EventSignedIn       EventType = "signed_in"
	EventSignedOut      EventType = "signed_out"
	EventTokenRefreshed EventType = "token_refreshed"
)

type Event struct {
	Type EventType
	User *User
}

type Listener func(Event)
