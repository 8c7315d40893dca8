// Package identity is the login collaborator. The actual authorization-code
// exchange happens at an external identity provider; this service only ever
// consumes the resulting stable user id, display profile, and renewable
// credential handle.
package identity

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Profile is the externally supplied identity of a user.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

// Credentials is the renewable credential handle returned by the provider.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Provider performs the authorization-code flow against the external
// identity provider.
type Provider interface {
	// AuthURL returns the provider URL to redirect an unauthenticated user
	// to, carrying the given opaque state.
	AuthURL(state string) string
	// Exchange trades an authorization code for the user's profile and
	// credentials.
	Exchange(ctx context.Context, code string) (Profile, Credentials, error)
}

// Static is a development provider that signs every login in as one fixed
// user, bypassing the external exchange. Useful for local runs and tests.
type Static struct {
	Profile Profile
}

func (s *Static) AuthURL(state string) string {
	return "/api/auth/callback?code=dev&state=" + state
}

func (s *Static) Exchange(_ context.Context, code string) (Profile, Credentials, error) {
	if code == "" {
		return Profile{}, Credentials{}, errors.New("missing authorization code")
	}
	return s.Profile, Credentials{AccessToken: "dev", Expiry: time.Now().Add(24 * time.Hour)}, nil
}
