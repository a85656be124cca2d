package httpkit

import (
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"solar_portal_backend/platform/apperr"
)

// Role names carried in the access token.
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleAgent   = "agent"
)

const identityKey = "httpkit.identity"

// Identity is the authenticated caller as handlers see it.
type Identity interface {
	UserID() uuid.UUID
	// SubscriberID is the user id in the string form the push layer keys on.
	SubscriberID() string
	Roles() []string
	HasRole(role string) bool
	IsAuthenticated() bool
}

type subscriber struct {
	id    uuid.UUID
	roles []string
}

func newSubscriber(id uuid.UUID, roles []string) *subscriber {
	sorted := slices.Clone(roles)
	slices.Sort(sorted)
	return &subscriber{id: id, roles: slices.Compact(sorted)}
}

func (s *subscriber) UserID() uuid.UUID { return s.id }

func (s *subscriber) SubscriberID() string {
	if s.id == uuid.Nil {
		return ""
	}
	return s.id.String()
}

func (s *subscriber) Roles() []string          { return s.roles }
func (s *subscriber) HasRole(role string) bool { return slices.Contains(s.roles, role) }
func (s *subscriber) IsAuthenticated() bool    { return s.id != uuid.Nil }

// GetIdentity returns the caller stored by AuthRequired, or an
// unauthenticated identity on public routes.
func GetIdentity(c *gin.Context) Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*subscriber); ok {
			return id
		}
	}
	return &subscriber{}
}

// MustGetIdentity is GetIdentity for handlers behind AuthRequired. It writes
// 401 and returns nil when no caller is present.
func MustGetIdentity(c *gin.Context) Identity {
	id := GetIdentity(c)
	if !id.IsAuthenticated() {
		abortWith(c, apperr.Unauthorized("unauthorized"))
		return nil
	}
	return id
}
