package runtime

import (
	"encoding/json"
	"slices"
)

// HitBys is the set of incoming transition ids that already delivered a token to a gateway instance.
type HitBys map[string]struct{}

func NewHitBys(ids ...string) HitBys {
	h := make(HitBys, len(ids))
	for _, id := range ids {
		h[id] = struct{}{}
	}
	return h
}

func (h HitBys) Contains(id string) bool {
	_, ok := h[id]
	return ok
}

// ContainsAll reports whether every id has arrived.
func (h HitBys) ContainsAll(ids []string) bool {
	for _, id := range ids {
		if !h.Contains(id) {
			return false
		}
	}
	return true
}

func (h HitBys) Len() int {
	return len(h)
}

// Sorted returns the ids in lexical order.
func (h HitBys) Sorted() []string {
	ids := make([]string, 0, len(h))
	for id := range h {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (h HitBys) Clone() HitBys {
	if h == nil {
		return nil
	}
	c := make(HitBys, len(h))
	for id := range h {
		c[id] = struct{}{}
	}
	return c
}

func (h HitBys) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Sorted())
}

func (h *HitBys) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*h = NewHitBys(ids...)
	return nil
}
