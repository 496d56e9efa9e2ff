package migration

import (
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/rewind/pkg/schema"
	"github.com/platinummonkey/rewind/pkg/structure"
)

// Direction names the way a payload travels through the version chain
type Direction string

const (
	// Request payloads move forward, from the client version up to head
	Request Direction = "request"
	// Response payloads move backward, from head down to the client version
	Response Direction = "response"
)

// Target identifies what is being migrated: the route path as declared in
// the client's version, the HTTP method and the head schema of the body.
type Target struct {
	Path   string
	Method string
	Schema schema.ID
}

type planKey struct {
	direction Direction
	version   structure.Date
	target    Target
}

func (k planKey) String() string {
	return fmt.Sprintf("%s:%s:%s %s:%s", k.direction, k.version, k.target.Method, k.target.Path, k.target.Schema)
}

// step is one converter invocation; change is kept for logs and spans
type step struct {
	change   string
	request  structure.RequestTransformer
	response structure.ResponseTransformer
	// httpErrors marks response steps that also run for status >= 300
	httpErrors bool
}

type plan struct {
	steps []step
}

// buildRequestPlan walks versions newer than v from oldest to newest.
// Within a change, by-schema converters run before by-path converters.
func buildRequestPlan(bundle *structure.VersionBundle, v structure.Date, t Target) *plan {
	p := &plan{}
	versions := bundle.Versions()
	for i := len(versions) - 1; i >= 0; i-- {
		version := versions[i]
		if !version.Date.After(v) {
			continue
		}
		for _, vc := range version.Changes {
			if t.Schema != "" {
				for _, c := range vc.RequestConvertersForSchema(t.Schema) {
					p.steps = append(p.steps, step{change: vc.Name(), request: c.Transformer})
				}
			}
			for _, c := range vc.RequestConvertersForPath(t.Path) {
				if c.HasMethod(t.Method) {
					p.steps = append(p.steps, step{change: vc.Name(), request: c.Transformer})
				}
			}
		}
	}
	return p
}

// buildResponsePlan walks versions newer than v from newest to oldest.
func buildResponsePlan(bundle *structure.VersionBundle, v structure.Date, t Target) *plan {
	p := &plan{}
	for _, version := range bundle.Versions() {
		if !version.Date.After(v) {
			break
		}
		for _, vc := range version.Changes {
			if t.Schema != "" {
				for _, c := range vc.ResponseConvertersForSchema(t.Schema) {
					p.steps = append(p.steps, step{change: vc.Name(), response: c.Transformer, httpErrors: c.MigrateHTTPErrors})
				}
			}
			for _, c := range vc.ResponseConvertersForPath(t.Path) {
				if c.HasMethod(t.Method) {
					p.steps = append(p.steps, step{change: vc.Name(), response: c.Transformer, httpErrors: c.MigrateHTTPErrors})
				}
			}
		}
	}
	return p
}

// planCache memoizes plans. Plans only depend on the immutable bundle so
// entries never go stale; the TTL only bounds memory held by rare routes.
type planCache struct {
	cache  *lru.LRU[planKey, *plan]
	hits   atomic.Int64
	misses atomic.Int64
}

func newPlanCache(size int, ttl time.Duration) *planCache {
	if size <= 0 {
		return nil
	}
	return &planCache{cache: lru.NewLRU[planKey, *plan](size, nil, ttl)}
}

func (c *planCache) get(k planKey) (*plan, bool) {
	p, ok := c.cache.Get(k)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return p, ok
}

func (c *planCache) add(k planKey, p *plan) {
	c.cache.Add(k, p)
}

// CacheStats reports plan cache usage
type CacheStats struct {
	Hits   int64
	Misses int64
	Len    int
}
