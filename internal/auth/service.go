// Package auth guards the wallet UI surface: password login for the
// operator account, JWT bearer tokens for the REST API, and one-time
// tickets for the websocket event stream.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/halcyon-wallet/gateway/internal/config"
	"github.com/halcyon-wallet/gateway/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Claims struct {
	OperatorID uint
	Username   string
	jwt.RegisteredClaims
}

type Service struct {
	secret  []byte
	repo    *store.Repository
	ttl     time.Duration
	tickets *ticketStore
}

func NewService(cfg config.AuthConfig, repo *store.Repository) *Service {
	return &Service{
		secret:  []byte(cfg.JWTSecret),
		repo:    repo,
		ttl:     cfg.JWTTTL,
		tickets: newTicketStore(30 * time.Second),
	}
}

// Login verifies the operator password and mints a session token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	op, err := s.repo.GetOperatorByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(op.PassHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	claims := Claims{
		OperatorID: op.ID,
		Username:   op.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   op.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidCredentials
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidCredentials
}

// IssueWSTicket mints a short-lived one-time ticket for the event stream.
// Websocket connects cannot carry an Authorization header from a browser
// webview, so the UI fetches a ticket over the authenticated API first.
func (s *Service) IssueWSTicket() (string, error) {
	return s.tickets.Issue()
}

// RedeemWSTicket consumes a ticket; a ticket authorizes exactly one connect.
func (s *Service) RedeemWSTicket(ticket string) bool {
	return s.tickets.Consume(ticket)
}
