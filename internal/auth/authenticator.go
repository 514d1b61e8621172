package auth

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/mrwill84/voice-web3/domain/repositories"
)

// TokenAuthenticator holds the current user credential. It implements
// repositories.Authenticator for the intent gateway and the voice surfaces.
type TokenAuthenticator struct {
	service *Service

	mu     sync.RWMutex
	token  string
	userID *int
}

var _ repositories.Authenticator = (*TokenAuthenticator)(nil)

// NewTokenAuthenticator creates an authenticator with no credential set.
func NewTokenAuthenticator(service *Service) *TokenAuthenticator {
	return &TokenAuthenticator{service: service}
}

// SetToken validates and adopts a bearer token. An invalid token clears the
// current credential and returns an error.
func (a *TokenAuthenticator) SetToken(token string) error {
	claims, err := a.service.ValidateToken(token)
	if err != nil {
		a.Clear()
		return fmt.Errorf("invalid token: %w", err)
	}

	var userID *int
	if claims.UserID != "" {
		if id, err := strconv.Atoi(claims.UserID); err == nil {
			userID = &id
		}
	}

	a.mu.Lock()
	a.token = token
	a.userID = userID
	a.mu.Unlock()
	return nil
}

// Clear drops the current credential.
func (a *TokenAuthenticator) Clear() {
	a.mu.Lock()
	a.token = ""
	a.userID = nil
	a.mu.Unlock()
}

func (a *TokenAuthenticator) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token != ""
}

func (a *TokenAuthenticator) UserID() *int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.userID
}

func (a *TokenAuthenticator) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}
