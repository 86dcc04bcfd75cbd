package catalog

import "flikz/models"

// Accumulator is an insertion-ordered set of titles keyed by TMDB id.
// It is not safe for concurrent use; Feed serializes access.
type Accumulator struct {
	seen  map[int64]struct{}
	items []models.Title
}

func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[int64]struct{})}
}

// Add appends the titles not seen before and returns exactly those, in input order.
// Duplicates inside items are collapsed too.
func (a *Accumulator) Add(items []models.Title) []models.Title {
	var fresh []models.Title
	for _, item := range items {
		if _, ok := a.seen[item.TMDBID]; ok {
			continue
		}
		a.seen[item.TMDBID] = struct{}{}
		a.items = append(a.items, item)
		fresh = append(fresh, item)
	}
	return fresh
}

func (a *Accumulator) Contains(id int64) bool {
	_, ok := a.seen[id]
	return ok
}

func (a *Accumulator) Len() int {
	return len(a.items)
}

// Items returns a copy of everything accumulated so far.
func (a *Accumulator) Items() []models.Title {
	out := make([]models.Title, len(a.items))
	copy(out, a.items)
	return out
}

func (a *Accumulator) Reset() {
	a.seen = make(map[int64]struct{})
	a.items = nil
}
