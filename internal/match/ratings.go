package match

import "sync"

// RatingReader is the read side of the rating cache.
type RatingReader interface {
	Get(id PlayerID) Rating
}

// RatingCache holds the session's authoritative ratings. Safe for concurrent use.
type RatingCache struct {
	mu      sync.RWMutex
	ratings map[PlayerID]Rating
}

func NewRatingCache() *RatingCache {
	return &RatingCache{
		ratings: make(map[PlayerID]Rating),
	}
}

// Get returns the cached rating or DefaultRating when the player is unknown.
func (c *RatingCache) Get(id PlayerID) Rating {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if r, ok := c.ratings[id]; ok {
		return r
	}
	return DefaultRating
}

// Lookup is Get with an explicit presence flag.
func (c *RatingCache) Lookup(id PlayerID) (Rating, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.ratings[id]
	return r, ok
}

func (c *RatingCache) Set(id PlayerID, r Rating) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ratings[id] = r
}

// Seed stores r only if the player has no entry yet and reports whether it did.
// A slow store read must not overwrite an adjustment made during the session.
func (c *RatingCache) Seed(id PlayerID, r Rating) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.ratings[id]; ok {
		return false
	}
	c.ratings[id] = r
	return true
}

// Adjust adds delta to an existing entry. Unknown players are left alone.
func (c *RatingCache) Adjust(id PlayerID, delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r, ok := c.ratings[id]; ok {
		c.ratings[id] = r + Rating(delta)
	}
}

func (c *RatingCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ratings)
}
