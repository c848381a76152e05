// Package discovery answers user lookups: search by title, lookup by code,
// top lists and random picks. Read paths never fail; errors are logged and
// yield empty results.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/kv"
)

const (
	DefaultSearchLimit = 20
	DefaultTopLimit    = 20
	DefaultGenreLimit  = 10

	cachePrefix = "top:"
)

// Hit is a search match.
type Hit struct {
	Record catalog.Record `json:"record"`
	Score  int            `json:"score"`
}

// Results keeps one ranked list per shape.
type Results struct {
	Standalone []Hit
	Seasoned   []Hit
	Flat       []Hit
}

func (r Results) Empty() bool {
	return len(r.Standalone) == 0 && len(r.Seasoned) == 0 && len(r.Flat) == 0
}

func (r *Results) set(shape catalog.Shape, hits []Hit) {
	switch shape {
	case catalog.Standalone:
		r.Standalone = hits
	case catalog.Seasoned:
		r.Seasoned = hits
	case catalog.Flat:
		r.Flat = hits
	}
}

// Ranked is one entry of a top list.
type Ranked struct {
	catalog.Ranking
	Score int64 `json:"score"`
}

type Engine struct {
	store    catalog.Store
	cache    kv.Store
	cacheTTL time.Duration
	log      *logrus.Entry
	now      func() time.Time
}

type Option func(*Engine)

// WithCache stores top lists in c for ttl.
func WithCache(c kv.Store, ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.cache = c
			e.cacheTTL = ttl
		}
	}
}

func WithLogger(l *logrus.Entry) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides time.Now for interval windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(store catalog.Store, opts ...Option) *Engine {
	e := &Engine{store: store, now: time.Now, log: logrus.NewEntry(logrus.StandardLogger())}
	for _, o := range opts {
		o(e)
	}
	return e
}

// SearchByName ranks title matches separately for each shape.
func (e *Engine) SearchByName(ctx context.Context, query string, limit int) Results {
	var res Results
	query = strings.TrimSpace(query)
	if query == "" {
		return res
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	lists := make([][]Hit, len(catalog.Shapes))
	var g errgroup.Group
	for i, shape := range catalog.Shapes {
		i, shape := i, shape
		g.Go(func() error {
			recs, err := e.store.Repo(shape).SearchTitle(ctx, query, limit)
			if err != nil {
				e.log.WithError(err).WithFields(logrus.Fields{"shape": shape.String(), "query": query}).Error("title search failed")
				return nil
			}
			hits := make([]Hit, 0, len(recs))
			for _, rec := range recs {
				hits = append(hits, Hit{Record: rec, Score: Score(rec.Title, query)})
			}
			sort.SliceStable(hits, func(a, b int) bool { return hits[a].Score > hits[b].Score })
			lists[i] = hits
			return nil
		})
	}
	_ = g.Wait()
	for i, shape := range catalog.Shapes {
		res.set(shape, lists[i])
	}
	return res
}

// FindByCode returns the item with code or nil.
func (e *Engine) FindByCode(ctx context.Context, code int64) *catalog.Item {
	item, err := e.store.Lookup(ctx, code)
	if err != nil {
		e.log.WithError(err).WithField("code", code).Error("code lookup failed")
		return nil
	}
	return item
}

// Random picks a random item of shape; episodic shapes start at their first
// episode.
func (e *Engine) Random(ctx context.Context, shape catalog.Shape) *catalog.Record {
	rec, err := e.store.Repo(shape).RandomSample(ctx, shape.Episodic())
	if err != nil {
		e.log.WithError(err).WithField("shape", shape.String()).Error("random sample failed")
		return nil
	}
	return rec
}

var shapeOrder = map[catalog.Shape]int{catalog.Standalone: 0, catalog.Seasoned: 1, catalog.Flat: 2}

func rank(rs []catalog.Ranking, limit int) []Ranked {
	out := make([]Ranked, 0, len(rs))
	for _, r := range rs {
		out = append(out, Ranked{Ranking: r, Score: r.Score()})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Shape != out[j].Shape {
			return shapeOrder[out[i].Shape] < shapeOrder[out[j].Shape]
		}
		return out[i].Code < out[j].Code
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TopMovies ranks every item by favorites within the interval times ten
// plus lifetime views.
func (e *Engine) TopMovies(ctx context.Context, interval Interval, limit int) []Ranked {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	key := fmt.Sprintf("%s%s:%d", cachePrefix, interval, limit)
	if cached, ok := e.cached(ctx, key); ok {
		return cached
	}
	rs, err := e.store.Rankings(ctx, catalog.RankQuery{Since: interval.Since(e.now())})
	if err != nil {
		e.log.WithError(err).WithField("interval", string(interval)).Error("top list failed")
		return nil
	}
	out := rank(rs, limit)
	e.remember(ctx, key, out)
	return out
}

// TopByGenres ranks items carrying any of genres.
func (e *Engine) TopByGenres(ctx context.Context, genres []string, limit int) []Ranked {
	if len(genres) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultGenreLimit
	}
	rs, err := e.store.Rankings(ctx, catalog.RankQuery{Genres: genres})
	if err != nil {
		e.log.WithError(err).WithField("genres", genres).Error("genre search failed")
		return nil
	}
	return rank(rs, limit)
}

// Invalidate drops cached top lists.
func (e *Engine) Invalidate(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.DeletePrefix(ctx, cachePrefix); err != nil {
		e.log.WithError(err).Warn("failed to invalidate top cache")
	}
}

func (e *Engine) cached(ctx context.Context, key string) ([]Ranked, bool) {
	if e.cache == nil {
		return nil, false
	}
	data, err := e.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var out []Ranked
	if err := json.Unmarshal(data, &out); err != nil {
		e.log.WithError(err).WithField("key", key).Warn("dropping unreadable cache entry")
		return nil, false
	}
	return out, true
}

func (e *Engine) remember(ctx context.Context, key string, v []Ranked) {
	if e.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, data, e.cacheTTL); err != nil {
		e.log.WithError(err).WithField("key", key).Warn("failed to cache top list")
	}
}
