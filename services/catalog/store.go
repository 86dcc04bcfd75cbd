package catalog

import (
	"sync"
	"time"

	"flikz/internal/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Request describes the grid view a client is scrolling.
type Request struct {
	ClientID string
	Grid     Grid
	Filter   FilterSet
	Language string
	Country  string
}

// Store keeps one feed per client and grid. Idle feeds expire after the ttl and
// the least recently used are evicted beyond size.
type Store struct {
	mu       sync.Mutex
	source   Discoverer
	maxPages int
	feeds    *expirable.LRU[string, *Feed]
}

func NewStore(source Discoverer, size int, ttl time.Duration, maxPages int) *Store {
	if size <= 0 {
		size = 2048
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	onEvict := func(string, *Feed) {
		metrics.CatalogActiveFeeds.Dec()
	}
	return &Store{
		source:   source,
		maxPages: maxPages,
		feeds:    expirable.NewLRU[string, *Feed](size, onEvict, ttl),
	}
}

func feedKey(clientID, gridKey string) string {
	return clientID + "|" + gridKey
}

// Feed returns the client's feed for the request, starting a new one when the
// filter, language, country, media type or region differ from the stored feed.
func (s *Store) Feed(req Request) *Feed {
	filter := req.Grid.Apply(req.Filter)
	country := ""
	if req.Grid.ByRegion {
		country = req.Country
	}
	fingerprint := filter.Fingerprint(req.Grid.MediaType, req.Language, country, req.Grid.ByRegion)
	key := feedKey(req.ClientID, req.Grid.Key)

	s.mu.Lock()
	defer s.mu.Unlock()
	if feed, ok := s.feeds.Get(key); ok && feed.Fingerprint() == fingerprint {
		// Re-adding slides the expiry window.
		s.feeds.Add(key, feed)
		return feed
	}
	// Also clears an expired entry that has not been reaped yet.
	s.feeds.Remove(key)

	params := filter.DiscoverParams(req.Grid.MediaType, req.Language, country)
	feed := NewFeed(s.source, req.Grid.MediaType, params, fingerprint, s.maxPages)
	s.feeds.Add(key, feed)
	metrics.CatalogActiveFeeds.Inc()
	return feed
}

// Drop forgets the client's feed for a grid.
func (s *Store) Drop(clientID, gridKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeds.Remove(feedKey(clientID, gridKey))
}

func (s *Store) Len() int {
	return s.feeds.Len()
}
