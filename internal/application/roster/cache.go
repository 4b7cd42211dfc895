package roster

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kset/verifikator/internal/domain"
	"github.com/kset/verifikator/internal/pkg/id"
)

// Source pulls the full member roster from the backing data source.
type Source interface {
	Fetch(ctx context.Context) ([]domain.MemberRecord, error)
}

// snapshot is an immutable view of the roster, indexed by the normalized
// form of both email addresses of each record. The whole snapshot is
// swapped atomically on refresh.
type snapshot struct {
	id       string
	byEmail  map[string]*domain.MemberRecord
	size     int
	loadedAt time.Time
}

// Cache holds an in-memory roster snapshot refreshed once per day after a
// fixed cutoff time, or on demand. Readers never observe a partially
// updated snapshot; concurrent refresh triggers are serialized and collapse
// into a single source call.
type Cache struct {
	source        Source
	cutoffMinutes int

	mu   sync.RWMutex // guards snap
	snap *snapshot

	refreshMu sync.Mutex // single in-flight refresh

	now func() time.Time
}

// NewCache creates an empty cache. cutoff is the daily refresh time in
// "HH:MM" form; a non-forced refresh on a new day is a no-op before it.
func NewCache(source Source, cutoff string) (*Cache, error) {
	minutes, err := parseCutoff(cutoff)
	if err != nil {
		return nil, err
	}
	return &Cache{
		source:        source,
		cutoffMinutes: minutes,
		now:           time.Now,
	}, nil
}

// Lookup returns the roster record matching the given email on either its
// organizational or personal address. Matching is case-insensitive and
// trims surrounding whitespace.
func (c *Cache) Lookup(email string) (*domain.MemberRecord, error) {
	snap := c.current()
	if snap == nil {
		return nil, domain.ErrCacheUnavailable
	}
	rec, ok := snap.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, fmt.Errorf("email not on roster: %w", domain.ErrNotFound)
	}
	out := *rec
	return &out, nil
}

// LookupMany resolves a batch of emails. The result contains an entry for
// each matched email only, keyed by its normalized form.
func (c *Cache) LookupMany(emails []string) (map[string]*domain.MemberRecord, error) {
	snap := c.current()
	if snap == nil {
		return nil, domain.ErrCacheUnavailable
	}
	out := make(map[string]*domain.MemberRecord)
	for _, email := range emails {
		key := domain.NormalizeEmail(email)
		if rec, ok := snap.byEmail[key]; ok {
			cp := *rec
			out[key] = &cp
		}
	}
	return out, nil
}

// Refresh reloads the roster from the source and swaps the snapshot.
// Unless forced, it is a no-op while a snapshot loaded today exists, or
// before the daily cutoff on a new day. On source failure the previous
// snapshot is retained. Returns the ID of the snapshot in effect afterwards.
func (c *Cache) Refresh(ctx context.Context, force bool) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Re-checked under the lock so concurrent triggers collapse into the
	// single refresh that won the race.
	cur := c.current()
	if !force && !c.due(cur) {
		return cur.id, nil
	}

	records, err := c.source.Fetch(ctx)
	if err != nil {
		slog.Error("roster refresh failed, keeping previous snapshot", "err", err)
		return "", fmt.Errorf("refresh roster: %w", err)
	}

	snap := &snapshot{
		id:       id.New(),
		byEmail:  index(records),
		size:     len(records),
		loadedAt: c.now(),
	}
	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()

	slog.Info("roster snapshot loaded", "snapshot_id", snap.id, "records", snap.size)
	return snap.id, nil
}

// Clear evicts the snapshot. Lookups fail with ErrCacheUnavailable until the
// next refresh.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.snap = nil
	c.mu.Unlock()
	slog.Info("roster cache cleared")
}

func (c *Cache) current() *snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// due reports whether a non-forced refresh should run: never loaded, or the
// date changed and the time of day has reached the cutoff.
func (c *Cache) due(cur *snapshot) bool {
	if cur == nil {
		return true
	}
	now := c.now()
	y1, m1, d1 := cur.loadedAt.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return false
	}
	return now.Hour()*60+now.Minute() >= c.cutoffMinutes
}

func index(records []domain.MemberRecord) map[string]*domain.MemberRecord {
	byEmail := make(map[string]*domain.MemberRecord, len(records)*2)
	for i := range records {
		rec := &records[i]
		for _, email := range []string{rec.OrgEmail, rec.PersonalEmail} {
			if key := domain.NormalizeEmail(email); key != "" {
				byEmail[key] = rec
			}
		}
	}
	return byEmail
}

func parseCutoff(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("invalid refresh cutoff %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid refresh cutoff hour %q", hh)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid refresh cutoff minute %q", mm)
	}
	return h*60 + m, nil
}
