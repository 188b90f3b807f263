package httpapi

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mojocn/base64Captcha"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-captcha/internal/render"
)

// challenge is one captcha served over HTTP.
type challenge struct {
	rig     *render.Rig
	release func()
}

// Registry holds live challenges. Entries expire after the TTL or are pushed
// out once the registry is full; either way their session is stopped.
type Registry struct {
	cache  *expirable.LRU[string, *challenge]
	logger *zap.Logger
}

// NewRegistry creates a registry of at most size challenges, each living for
// ttl.
func NewRegistry(size int, ttl time.Duration, logger *zap.Logger) *Registry {
	r := &Registry{logger: logger}
	r.cache = expirable.NewLRU[string, *challenge](size, r.evicted, ttl)
	return r
}

func (r *Registry) evicted(id string, c *challenge) {
	c.rig.Stop()
	if c.release != nil {
		c.release()
	}
	r.logger.Debug("Captcha challenge released", zap.String("id", id))
}

// Add stores rig under a fresh id and returns it. release runs when the
// challenge leaves the registry.
func (r *Registry) Add(rig *render.Rig, release func()) string {
	id := base64Captcha.RandomId()
	r.cache.Add(id, &challenge{rig: rig, release: release})
	return id
}

// Get returns the rig stored under id.
func (r *Registry) Get(id string) (*render.Rig, bool) {
	c, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	return c.rig, true
}

// Remove drops id and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	return r.cache.Remove(id)
}

// Len returns the number of live challenges.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Purge drops every challenge.
func (r *Registry) Purge() {
	r.cache.Purge()
}
