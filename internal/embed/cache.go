package embed

import (
	"context"
	"sync"
)

// Cache memoises vectors by item ID. It lives for one run, where IDs are
// unique to their text, so a section is embedded at most once.
type Cache struct {
	next Gateway

	mu   sync.Mutex
	vecs map[string][]float32
}

func NewCache(next Gateway) *Cache {
	return &Cache{next: next, vecs: make(map[string][]float32)}
}

func (c *Cache) Embed(ctx context.Context, items []Item) (map[string][]float32, error) {
	out := make(map[string][]float32, len(items))
	var missing []Item
	seen := make(map[string]bool)

	c.mu.Lock()
	for _, it := range items {
		if v, ok := c.vecs[it.ID]; ok {
			out[it.ID] = v
			continue
		}
		if !seen[it.ID] {
			seen[it.ID] = true
			missing = append(missing, it)
		}
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, it := range missing {
		if v, ok := fresh[it.ID]; ok {
			c.vecs[it.ID] = v
			out[it.ID] = v
		}
	}
	return out, nil
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.vecs)
}
