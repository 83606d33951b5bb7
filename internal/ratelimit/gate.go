package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/open-job-board/internal/api/domain"
	"github.com/cuongbtq/open-job-board/internal/api/model"
	"github.com/cuongbtq/open-job-board/internal/apikey"
	"github.com/cuongbtq/open-job-board/shared/logger"
)

// Request headers consulted by the gate
const (
	HeaderAPIKey         = "X-Api-Key"
	HeaderForwardedFor   = "X-Forwarded-For"
	HeaderCFConnectingIP = "Cf-Connecting-Ip"
)

// UnknownIP identifies callers whose address could not be determined.
const UnknownIP = "unknown"

// IdentityKind tells keyed callers from anonymous ones.
type IdentityKind int

const (
	Anonymous IdentityKind = iota
	Keyed
)

func (k IdentityKind) String() string {
	if k == Keyed {
		return "keyed"
	}
	return "anonymous"
}

// Identity is the resolved caller: the counter identifier and its allowance.
type Identity struct {
	Kind         IdentityKind
	Identifier   string
	Limit        int
	CredentialID string
}

// KeyedIdentity builds the identity of a caller holding an active credential.
func KeyedIdentity(cred *model.Credential) Identity {
	return Identity{
		Kind:         Keyed,
		Identifier:   "key:" + cred.KeyHash,
		Limit:        cred.RateLimit,
		CredentialID: cred.ID,
	}
}

// AnonymousIdentity builds an IP based identity.
func AnonymousIdentity(identifier string, limit int) Identity {
	return Identity{Kind: Anonymous, Identifier: identifier, Limit: limit}
}

// Policy describes how one action is gated.
type Policy struct {
	Action         string
	AnonymousLimit int
	// ScopeByAction suffixes the anonymous identifier with the action name.
	ScopeByAction bool
	// AcceptKeys lets callers present an API key for their own allowance.
	AcceptKeys bool
}

// CredentialFinder looks up active credentials by key hash.
type CredentialFinder interface {
	FindActiveCredentialByHash(ctx context.Context, keyHash string) (*model.Credential, error)
}

// Toucher records credential use without blocking the caller.
type Toucher interface {
	Touch(credentialID string)
}

// Gate resolves caller identity and consults the counter.
type Gate struct {
	finder  CredentialFinder
	counter Counter
	toucher Toucher
	window  time.Duration
	logger  *slog.Logger
}

func NewGate(finder CredentialFinder, counter Counter, toucher Toucher, window time.Duration, logger *slog.Logger) *Gate {
	return &Gate{
		finder:  finder,
		counter: counter,
		toucher: toucher,
		window:  window,
		logger:  logger,
	}
}

// Resolve determines who is calling. A key that matches no active credential,
// or whose lookup fails, yields the anonymous identity and never an error.
func (g *Gate) Resolve(ctx context.Context, header http.Header, p Policy) Identity {
	log := logger.FromContext(ctx, g.logger)

	anonymous := "ip:" + ClientIP(header)
	if p.ScopeByAction {
		anonymous += ":" + p.Action
	}

	key := header.Get(HeaderAPIKey)
	if !p.AcceptKeys || key == "" {
		return AnonymousIdentity(anonymous, p.AnonymousLimit)
	}

	cred, err := g.finder.FindActiveCredentialByHash(ctx, apikey.Hash(key))
	if err != nil {
		if !errors.Is(err, domain.ErrCredentialNotFound) {
			log.Warn("Credential lookup failed, treating caller as anonymous", slog.Any("error", err))
		}
		return AnonymousIdentity(anonymous, p.AnonymousLimit)
	}

	if g.toucher != nil {
		g.toucher.Touch(cred.ID)
	}

	return KeyedIdentity(cred)
}

// Check resolves the caller and records one hit. It returns a
// *domain.RateLimitError when the caller is over its allowance and a wrapped
// error when the counter itself fails.
func (g *Gate) Check(ctx context.Context, header http.Header, p Policy) (Identity, error) {
	id := g.Resolve(ctx, header, p)

	allowed, err := g.counter.Check(ctx, id.Identifier, id.Limit, g.window)
	if err != nil {
		return id, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		return id, domain.NewRateLimitError(p.Action)
	}

	return id, nil
}

// ClientIP returns the first X-Forwarded-For entry, then Cf-Connecting-Ip,
// then UnknownIP.
func ClientIP(header http.Header) string {
	if xff := header.Get(HeaderForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if ip := strings.TrimSpace(header.Get(HeaderCFConnectingIP)); ip != "" {
		return ip
	}

	return UnknownIP
}
