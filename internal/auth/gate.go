package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/HichuYamichu/goelearn-sub000/internal/domain"
	"github.com/HichuYamichu/goelearn-sub000/internal/repository"
	"github.com/HichuYamichu/goelearn-sub000/pkg/jwt"
)

// ErrUnauthorized matches every *AuthError.
var ErrUnauthorized = errors.New("unauthorized")

// Auth failure reasons, also used as metric labels.
const (
	ReasonNotAuthFrame  = "not_auth_frame"
	ReasonInvalidToken  = "invalid_token"
	ReasonExpiredToken  = "expired_token"
	ReasonClassNotFound = "class_not_found"
	ReasonNotMember     = "not_member"
	ReasonLookupFailed  = "lookup_failed"
)

// AuthError is a failed handshake. The connection must be closed.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth failed: " + e.Reason
	}
	return fmt.Sprintf("auth failed: %s: %v", e.Reason, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

// TokenValidator turns a bearer token into claims.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// ClassLookup resolves a class with its owner and members.
type ClassLookup interface {
	GetByID(ctx context.Context, id string) (*domain.Class, error)
}

// Gate authenticates the first frame of a meeting connection.
type Gate struct {
	tokens  TokenValidator
	classes ClassLookup
}

func NewGate(tokens TokenValidator, classes ClassLookup) *Gate {
	return &Gate{tokens: tokens, classes: classes}
}

// Authenticate decodes frame as an Auth command, validates the token and
// checks class membership. The class owner must also be listed as a
// member to pass.
func (g *Gate) Authenticate(ctx context.Context, frame []byte) (domain.Identity, error) {
	cmd, err := domain.DecodeCommand(frame)
	if err != nil {
		return domain.Identity{}, &AuthError{Reason: ReasonNotAuthFrame, Err: err}
	}
	authCmd, ok := cmd.(*domain.AuthCommand)
	if !ok {
		return domain.Identity{}, &AuthError{
			Reason: ReasonNotAuthFrame,
			Err:    fmt.Errorf("got %s", cmd.CommandType()),
		}
	}

	claims, err := g.tokens.ValidateToken(authCmd.Token)
	if err != nil {
		reason := ReasonInvalidToken
		if errors.Is(err, jwt.ErrExpiredToken) {
			reason = ReasonExpiredToken
		}
		return domain.Identity{}, &AuthError{Reason: reason, Err: err}
	}

	class, err := g.classes.GetByID(ctx, authCmd.ClassID)
	if err != nil {
		reason := ReasonLookupFailed
		if errors.Is(err, repository.ErrClassNotFound) {
			reason = ReasonClassNotFound
		}
		return domain.Identity{}, &AuthError{Reason: reason, Err: err}
	}

	if !class.HasMember(claims.UserID) {
		return domain.Identity{}, &AuthError{Reason: ReasonNotMember}
	}

	return domain.Identity{
		UserID:  claims.UserID,
		ClassID: class.ID,
		IsOwner: class.OwnerID == claims.UserID,
	}, nil
}
