package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vijayg2124/affilink-performance-hub/internal/models"
	"github.com/vijayg2124/affilink-performance-hub/internal/notify"
)

// InMemoryEventStore keeps click events in memory. Used for local
// development, demos and tests; the process starts empty unless seeded
// with fixture data.
type InMemoryEventStore struct {
	mu        sync.RWMutex
	clicks    []*models.ClickEvent
	publisher notify.Publisher
}

// NewInMemoryEventStore creates an empty in-memory event store.
// publisher may be nil.
func NewInMemoryEventStore(publisher notify.Publisher) *InMemoryEventStore {
	return &InMemoryEventStore{publisher: publisher}
}

// FetchClicks returns the user's clicks at or after since, newest first.
func (s *InMemoryEventStore) FetchClicks(ctx context.Context, userID string, since time.Time) ([]*models.ClickEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.ClickEvent
	for _, click := range s.clicks {
		if click.UserID != userID {
			continue
		}
		if click.ClickedAt.Before(since) {
			continue
		}
		result = append(result, copyClick(click))
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ClickedAt.After(result[j].ClickedAt)
	})
	return result, nil
}

// SaveClick stores a copy of the click and publishes a change notification.
func (s *InMemoryEventStore) SaveClick(ctx context.Context, click *models.ClickEvent) error {
	s.mu.Lock()
	s.clicks = append(s.clicks, copyClick(click))
	s.mu.Unlock()

	s.publish(ctx, notify.StreamClicks)
	return nil
}

// SaveConversion attaches a conversion to its click.
func (s *InMemoryEventStore) SaveConversion(ctx context.Context, conv *models.ConversionRecord) error {
	s.mu.Lock()
	var found bool
	for _, click := range s.clicks {
		if click.ID == conv.ClickID {
			c := *conv
			click.Conversions = append(click.Conversions, c)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return fmt.Errorf("click not found: %s", conv.ClickID)
	}

	s.publish(ctx, notify.StreamConversions)
	return nil
}

func (s *InMemoryEventStore) publish(ctx context.Context, stream string) {
	if s.publisher == nil {
		return
	}
	// Best effort; a missed notification is covered by the next timer tick.
	_ = s.publisher.Publish(ctx, stream)
}

func copyClick(click *models.ClickEvent) *models.ClickEvent {
	c := *click
	c.Conversions = make([]models.ConversionRecord, len(click.Conversions))
	copy(c.Conversions, click.Conversions)
	return &c
}

// InMemoryLinkRepo keeps affiliate links in memory. Metrics come from the
// paired event store.
type InMemoryLinkRepo struct {
	mu     sync.RWMutex
	links  map[string]*models.AffiliateLink
	order  []string
	events *InMemoryEventStore
}

// NewInMemoryLinkRepo creates an empty in-memory link repo. events may be
// nil, in which case LinkMetricsByID returns empty metrics.
func NewInMemoryLinkRepo(events *InMemoryEventStore) *InMemoryLinkRepo {
	return &InMemoryLinkRepo{
		links:  make(map[string]*models.AffiliateLink),
		events: events,
	}
}

// ListLinks returns the user's links matching the filter, newest first.
func (r *InMemoryLinkRepo) ListLinks(ctx context.Context, userID string, filter LinkFilter) ([]*models.AffiliateLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.AffiliateLink
	for _, id := range r.order {
		link := r.links[id]
		if link.UserID != userID {
			continue
		}
		if !matchesFilter(link, filter) {
			continue
		}
		l := *link
		result = append(result, &l)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// GetLink returns the link or nil if it does not exist.
func (r *InMemoryLinkRepo) GetLink(ctx context.Context, id string) (*models.AffiliateLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.links[id]
	if !ok {
		return nil, nil
	}
	l := *link
	return &l, nil
}

// GetLinkByShortCode returns the link with the code or nil.
func (r *InMemoryLinkRepo) GetLinkByShortCode(ctx context.Context, code string) (*models.AffiliateLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, link := range r.links {
		if link.ShortCode == code {
			l := *link
			return &l, nil
		}
	}
	return nil, nil
}

// InsertLink stores a copy of the link. Returns ErrShortCodeTaken when the
// short code is already in use.
func (r *InMemoryLinkRepo) InsertLink(ctx context.Context, link *models.AffiliateLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.links {
		if existing.ShortCode == link.ShortCode {
			return ErrShortCodeTaken
		}
	}

	l := *link
	r.links[l.ID] = &l
	r.order = append(r.order, l.ID)
	return nil
}

// SetLinkActive flips the active flag. Returns ErrLinkNotFound when the
// link does not exist.
func (r *InMemoryLinkRepo) SetLinkActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	link, ok := r.links[id]
	if !ok {
		return ErrLinkNotFound
	}
	link.IsActive = active
	return nil
}

// DeleteLink removes the link. Returns ErrLinkNotFound when the link does
// not exist.
func (r *InMemoryLinkRepo) DeleteLink(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.links[id]; !ok {
		return ErrLinkNotFound
	}
	delete(r.links, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// LinkMetricsByID computes per-link clicks, conversions and revenue from
// events at or after since.
func (r *InMemoryLinkRepo) LinkMetricsByID(ctx context.Context, userID string, since time.Time) (map[string]models.LinkMetrics, error) {
	result := make(map[string]models.LinkMetrics)
	if r.events == nil {
		return result, nil
	}

	clicks, err := r.events.FetchClicks(ctx, userID, since)
	if err != nil {
		return nil, err
	}

	for _, click := range clicks {
		m := result[click.LinkID]
		m.Clicks++
		m.Conversions += int64(len(click.Conversions))
		m.Revenue += click.Revenue()
		result[click.LinkID] = m
	}
	return result, nil
}

func matchesFilter(link *models.AffiliateLink, filter LinkFilter) bool {
	if filter.Status != "" && link.Status() != filter.Status {
		return false
	}
	if filter.Platform != "" && !strings.EqualFold(link.Platform, filter.Platform) {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(link.Title), needle) &&
			!strings.Contains(strings.ToLower(link.OriginalURL), needle) {
			return false
		}
	}
	return true
}
