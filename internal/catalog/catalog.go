// Package catalog defines the content model shared by every part of the bot:
// the three content shapes, their rows, and the storage contracts the
// backends in internal/storage implement.
package catalog

import (
	"context"
	"fmt"
	"time"
)

// Shape is the structural kind of a content item.
type Shape int

const (
	ShapeNone Shape = iota
	// Standalone items have exactly one row per code.
	Standalone
	// Seasoned items have one row per (season, episode).
	Seasoned
	// Flat items have one row per episode and no seasons.
	Flat
)

// Shapes lists the concrete shapes in lookup order.
var Shapes = []Shape{Standalone, Flat, Seasoned}

func (s Shape) String() string {
	switch s {
	case Standalone:
		return "standalone"
	case Seasoned:
		return "seasoned"
	case Flat:
		return "flat"
	default:
		return "none"
	}
}

// ParseShape is the inverse of String.
func ParseShape(s string) (Shape, error) {
	switch s {
	case "standalone":
		return Standalone, nil
	case "seasoned":
		return Seasoned, nil
	case "flat":
		return Flat, nil
	}
	return ShapeNone, fmt.Errorf("unknown shape %q", s)
}

// Episodic reports whether the shape stores more than one row per code.
func (s Shape) Episodic() bool { return s == Seasoned || s == Flat }

// EpisodeKey addresses a row inside an item. Season is zero outside Seasoned,
// both fields are zero for Standalone.
type EpisodeKey struct {
	Season  int `json:"season,omitempty"`
	Episode int `json:"episode,omitempty"`
}

func (k EpisodeKey) String() string {
	if k.Season > 0 {
		return fmt.Sprintf("S%02dE%02d", k.Season, k.Episode)
	}
	if k.Episode > 0 {
		return fmt.Sprintf("E%02d", k.Episode)
	}
	return "-"
}

// Record is one stored row.
type Record struct {
	Shape    Shape      `json:"shape"`
	Code     int64      `json:"code" validate:"gte=1"`
	Key      EpisodeKey `json:"key"`
	Title    string     `json:"title" validate:"required,max=512"`
	MediaRef string     `json:"media_ref" validate:"required"`
	Caption  string     `json:"caption,omitempty" validate:"max=4096"`
	Genres   []string   `json:"genres,omitempty" validate:"dive,genre"`
	Views    int64      `json:"views"`
}

// Patch is a partial update. Nil fields are left unchanged. Season and Episode
// renumber the row and only apply to UpdateEpisode.
type Patch struct {
	Title    *string
	MediaRef *string
	Caption  *string
	Genres   *[]string
	Season   *int
	Episode  *int
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.MediaRef == nil && p.Caption == nil &&
		p.Genres == nil && p.Season == nil && p.Episode == nil
}

// Item is a logical content item: every row sharing one code in one shape.
type Item struct {
	Shape   Shape
	Code    int64
	Records []Record
}

// First returns the first row in season/episode order.
func (it *Item) First() Record {
	return it.Records[0]
}

// Title is the title of the first row.
func (it *Item) Title() string { return it.First().Title }

// Genres are the genres of the first row, which the propagation rule keeps
// equal to the rest.
func (it *Item) Genres() []string { return it.First().Genres }

// Favorite is one user's bookmark of a code.
type Favorite struct {
	UserID    int64
	Code      int64
	CreatedAt time.Time
}

// RankQuery selects what Rankings aggregates. A zero Since counts every
// favorite; empty Genres selects every item.
type RankQuery struct {
	Since  time.Time
	Genres []string
}

// Ranking is the raw popularity of one logical item.
type Ranking struct {
	Shape     Shape
	Code      int64
	Title     string
	Genres    []string
	Favorites int64
	Views     int64
}

// Score is favorites weighted by ten plus lifetime views.
func (r Ranking) Score() int64 { return r.Favorites*10 + r.Views }

// Repository is the storage contract of one shape.
type Repository interface {
	Shape() Shape
	Create(ctx context.Context, rec Record) error
	Episodes(ctx context.Context, code int64) ([]Record, error)
	Episode(ctx context.Context, code int64, key EpisodeKey) (*Record, error)
	UpdateGlobal(ctx context.Context, code int64, p Patch) error
	UpdateEpisode(ctx context.Context, code int64, key EpisodeKey, p Patch) error
	RenameSeason(ctx context.Context, code int64, from, to int) error
	Delete(ctx context.Context, code int64) error
	DeleteEpisode(ctx context.Context, code int64, key EpisodeKey) error
	DeleteSeason(ctx context.Context, code int64, season int) error
	IncrementViews(ctx context.Context, code int64, key EpisodeKey) error
	RandomSample(ctx context.Context, firstEpisodeOnly bool) (*Record, error)
	SearchTitle(ctx context.Context, query string, limit int) ([]Record, error)
}

// Favorites stores user bookmarks.
type Favorites interface {
	Add(ctx context.Context, userID, code int64) error
	Remove(ctx context.Context, userID, code int64) error
	Has(ctx context.Context, userID, code int64) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]Favorite, error)
}

// Store is a full catalog backend.
type Store interface {
	Repo(shape Shape) Repository
	Favorites() Favorites
	// Lookup returns the item holding code, or nil if no shape has it.
	Lookup(ctx context.Context, code int64) (*Item, error)
	RenameCode(ctx context.Context, oldCode, newCode int64) error
	MoveEpisodeToStandalone(ctx context.Context, shape Shape, code int64, key EpisodeKey, newCode int64) error
	Rankings(ctx context.Context, q RankQuery) ([]Ranking, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// GenresOf returns the genres stored on the first row of code, or nil when
// the item does not exist.
func GenresOf(ctx context.Context, repo Repository, code int64) ([]string, error) {
	recs, err := repo.Episodes(ctx, code)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0].Genres, nil
}

// Seasons returns the distinct season numbers of a Seasoned item's rows in
// ascending order. Rows must already be sorted.
func Seasons(recs []Record) []int {
	var out []int
	for _, r := range recs {
		if len(out) == 0 || out[len(out)-1] != r.Key.Season {
			out = append(out, r.Key.Season)
		}
	}
	return out
}

// InSeason filters rows to one season.
func InSeason(recs []Record, season int) []Record {
	var out []Record
	for _, r := range recs {
		if r.Key.Season == season {
			out = append(out, r)
		}
	}
	return out
}

// NormalizeKey zeroes the key fields a shape does not use.
func NormalizeKey(shape Shape, key EpisodeKey) EpisodeKey {
	switch shape {
	case Standalone:
		return EpisodeKey{}
	case Flat:
		return EpisodeKey{Episode: key.Episode}
	default:
		return key
	}
}
