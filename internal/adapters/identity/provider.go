// Package identity turns the client token and a chosen display name into a
// domain identity.
package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/SoundSync/internal/config"
	"github.com/dkeye/SoundSync/internal/core"
	"github.com/dkeye/SoundSync/internal/domain"
)

const (
	ContextKey     = "identity"
	TokenKey       = "client_token"
	NameHeader     = "X-Member-Name"
	sessionNameKey = "display_name"
)

const memberIDBytes = 16

// Provider grants hosting to everyone when CanHostDefault is set, otherwise
// only to the configured member ids.
//
// The client token is a bearer secret and never leaves the provider. The
// member id shown to other clients is an HMAC of the token under secret.
type Provider struct {
	canHostDefault bool
	hosts          map[string]struct{}
	secret         []byte
}

func NewProvider(cfg config.IdentityConfig, secret string) *Provider {
	hosts := make(map[string]struct{}, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		hosts[h] = struct{}{}
	}
	return &Provider{canHostDefault: cfg.CanHostDefault, hosts: hosts, secret: []byte(secret)}
}

// MemberID is the public id of the member holding token.
func (p *Provider) MemberID(token string) domain.MemberID {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(token))
	return domain.MemberID(hex.EncodeToString(mac.Sum(nil)[:memberIDBytes]))
}

func (p *Provider) Identify(_ context.Context, token, displayName string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, fmt.Errorf("identify: %w: %v", domain.ErrInvalidInput, domain.ErrMemberIDEmpty)
	}
	member := p.MemberID(token)
	_, listed := p.hosts[string(member)]
	id, err := domain.NewIdentity(string(member), displayName, p.canHostDefault || listed)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("identify: %w: %v", domain.ErrInvalidInput, err)
	}
	return id, nil
}

var _ core.IdentityProvider = (*Provider)(nil)

// Middleware resolves the caller's identity from the client token set by the
// router. A display name sent in the header or ?name= is remembered in the
// session cookie.
func Middleware(p core.IdentityProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)
		name := strings.TrimSpace(c.GetHeader(NameHeader))
		if name == "" {
			name = strings.TrimSpace(c.Query("name"))
		}
		if name != "" {
			sess.Set(sessionNameKey, name)
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.identity").Msg("session save")
			}
		} else if v, ok := sess.Get(sessionNameKey).(string); ok {
			name = v
		}

		id, err := p.Identify(c.Request.Context(), c.GetString(TokenKey), name)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": string(domain.KindOf(err))})
			return
		}
		c.Set(ContextKey, id)
		c.Next()
	}
}

func FromContext(c *gin.Context) domain.Identity {
	id, _ := c.Get(ContextKey)
	out, _ := id.(domain.Identity)
	return out
}
