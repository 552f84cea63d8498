package services

import (
	"context"
	"log/slog"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"

	"github.com/spotloo/backend/internal/models"
)

// IdentityUser is what the identity provider knows about a user.
type IdentityUser struct {
	DisplayName string
	Email       string
}

type IdentityProvider interface {
	GetUser(ctx context.Context, userID string) (*IdentityUser, error)
}

// FirebaseIdentityProvider looks users up in Firebase Authentication.
type FirebaseIdentityProvider struct {
	client *fbauth.Client
}

func NewFirebaseIdentityProvider(client *fbauth.Client) *FirebaseIdentityProvider {
	return &FirebaseIdentityProvider{client: client}
}

func (p *FirebaseIdentityProvider) GetUser(ctx context.Context, userID string) (*IdentityUser, error) {
	u, err := p.client.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &IdentityUser{DisplayName: u.DisplayName, Email: u.Email}, nil
}

// ResolvedProfile is the outcome of a profile lookup. Available is false when
// the provider could not answer and the placeholder values were substituted.
type ResolvedProfile struct {
	DisplayName string
	Email       string
	Available   bool
}

// ProfileResolver turns a user id into display fields, never failing.
type ProfileResolver struct {
	Provider    IdentityProvider
	Placeholder string
	Logger      *slog.Logger
}

func NewProfileResolver(provider IdentityProvider, placeholder string, logger *slog.Logger) *ProfileResolver {
	return &ProfileResolver{Provider: provider, Placeholder: placeholder, Logger: logger}
}

func (r *ProfileResolver) Resolve(ctx context.Context, userID string) ResolvedProfile {
	fallback := ResolvedProfile{DisplayName: r.placeholder()}
	if r == nil || r.Provider == nil {
		return fallback
	}

	u, err := r.Provider.GetUser(ctx, userID)
	if err != nil || u == nil {
		resolveLogger(r.Logger).Warn("identity lookup failed, using placeholder",
			"user_id", userID,
			"error", err,
		)
		return fallback
	}

	name := strings.TrimSpace(u.DisplayName)
	if name == "" {
		name = r.placeholder()
	}
	return ResolvedProfile{DisplayName: name, Email: strings.TrimSpace(u.Email), Available: true}
}

func (r *ProfileResolver) placeholder() string {
	if r == nil || r.Placeholder == "" {
		return "Usuario"
	}
	return r.Placeholder
}

// fillFor decides which identity fields a write may set. A nil profile means
// the document is (believed to be) absent, so every field is insert-only.
// It consults the resolver only when something is missing.
func (r *ProfileResolver) fillFor(ctx context.Context, userID string, existing *models.UserProfile) (ProfileFill, bool) {
	if existing == nil {
		p := r.Resolve(ctx, userID)
		return ProfileFill{UID: userID, DisplayName: p.DisplayName, Email: p.Email}, true
	}

	var fill ProfileFill
	if existing.UID == "" {
		fill.UID = userID
	}
	if existing.DisplayName == "" || existing.Email == "" {
		p := r.Resolve(ctx, userID)
		if existing.DisplayName == "" {
			fill.DisplayName = p.DisplayName
		}
		if existing.Email == "" {
			fill.Email = p.Email
		}
	}
	return fill, false
}

func resolveLogger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
