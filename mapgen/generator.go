package mapgen

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/swarmnet/arbiter/challenge"
)

const defaultCacheSize = 128

type cacheKey struct {
	seed int64
	tier challenge.Tier
}

// Generator memoizes generated specs by (seed, tier) so audit
// re-derivations skip the resample loop. A cache hit is indistinguishable
// from regeneration because Generate is deterministic.
type Generator struct {
	cache *lru.Cache
}

func New() (*Generator, error) {
	cache, err := lru.New(defaultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating spec cache: %w", err)
	}
	return &Generator{cache: cache}, nil
}

func (g *Generator) Generate(seed int64, tier challenge.Tier) (challenge.Spec, error) {
	key := cacheKey{seed: seed, tier: tier}
	if spec, ok := g.cache.Get(key); ok {
		// SAFETY: type assertion will never panic as we insert only `challenge.Spec` values.
		return spec.(challenge.Spec), nil
	}

	spec, err := Generate(seed, tier)
	if err != nil {
		return challenge.Spec{}, err
	}
	g.cache.Add(key, spec)
	return spec, nil
}
