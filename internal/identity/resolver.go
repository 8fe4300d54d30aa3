package identity

import (
	"context"
	"fmt"
	"log"

	"chatbackend/internal/domain"
)

// Resolver turns an inbound bearer credential into a canonical user record.
// Verifiers are tried in order; the first that accepts the token wins. A
// provider identity that has never been seen before is provisioned as a new
// user record on the spot.
type Resolver struct {
	verifiers []Verifier
	users     domain.UserRepository
}

func NewResolver(users domain.UserRepository, verifiers ...Verifier) *Resolver {
	return &Resolver{
		verifiers: verifiers,
		users:     users,
	}
}

// Resolve maps a bearer credential to a user. Returns ErrTokenMissing,
// ErrTokenInvalid, or ErrUnresolvable on the failure paths.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*domain.User, error) {
	if credential == "" {
		return nil, ErrTokenMissing
	}

	var claims *Claims
	for _, v := range r.verifiers {
		c, err := v.Verify(credential)
		if err == nil {
			claims = c
			break
		}
	}
	if claims == nil {
		return nil, ErrTokenInvalid
	}

	switch claims.Source {
	case SourceLocal:
		user, err := r.users.GetByID(ctx, claims.Subject)
		if err != nil {
			return nil, fmt.Errorf("get user by id: %w", err)
		}
		if user == nil {
			return nil, ErrUnresolvable
		}
		return user, nil
	case SourceProvider:
		return r.resolveProvider(ctx, claims)
	default:
		return nil, ErrUnresolvable
	}
}

func (r *Resolver) resolveProvider(ctx context.Context, claims *Claims) (*domain.User, error) {
	user, err := r.users.GetByProviderID(ctx, claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("get user by provider id: %w", err)
	}
	if user != nil {
		return user, nil
	}

	// First sight of this provider identity. Adopt an existing record that
	// matches the verified email, otherwise provision a new one.
	if claims.Email != "" {
		user, err = r.users.GetByEmail(ctx, claims.Email)
		if err != nil {
			return nil, fmt.Errorf("get user by email: %w", err)
		}
		if user != nil {
			user.ProviderID = claims.Subject
			if err := r.users.Update(ctx, user); err != nil {
				return nil, fmt.Errorf("link provider id: %w", err)
			}
			return user, nil
		}
	}

	if claims.Email == "" {
		return nil, ErrUnresolvable
	}

	name := claims.Name
	if name == "" {
		name = "User"
	}
	user = &domain.User{
		ProviderID: claims.Subject,
		Name:       name,
		Email:      claims.Email,
		Avatar:     claims.Avatar,
	}
	if err := r.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("provision user: %w", err)
	}
	log.Printf("identity: provisioned user %s for provider identity %s", user.ID, claims.Subject)
	return user, nil
}
