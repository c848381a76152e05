// Package storage holds the catalog backends: MongoDB and SQL (PostgreSQL or
// SQLite through gorm).
package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"kinokod-bot/internal/catalog"
)

// Options selects and configures a backend.
type Options struct {
	Type          string
	MongoURI      string
	MongoDatabase string
	PostgresDSN   string
	SQLitePath    string
}

// Open connects the backend named by opts.Type.
func Open(ctx context.Context, opts Options, log *logrus.Entry) (catalog.Store, error) {
	switch opts.Type {
	case "mongo":
		return NewMongo(ctx, opts.MongoURI, opts.MongoDatabase, log)
	case "postgres":
		return OpenPostgres(opts.PostgresDSN, log)
	case "sqlite":
		return OpenSQLite(opts.SQLitePath, log)
	default:
		return nil, fmt.Errorf("unsupported database type %q", opts.Type)
	}
}

// aggregate folds rows, sorted by code, into one ranking per code.
func aggregate(shape catalog.Shape, recs []catalog.Record, favs map[int64]int64) []catalog.Ranking {
	var out []catalog.Ranking
	for _, r := range recs {
		if n := len(out); n > 0 && out[n-1].Code == r.Code {
			out[n-1].Views += r.Views
			continue
		}
		out = append(out, catalog.Ranking{
			Shape:     shape,
			Code:      r.Code,
			Title:     r.Title,
			Genres:    r.Genres,
			Favorites: favs[r.Code],
			Views:     r.Views,
		})
	}
	return out
}

// matchTitles keeps the case-insensitive matches among recs, one per code,
// in input order.
func matchTitles(recs []catalog.Record, query string, limit int) []catalog.Record {
	needle := strings.ToLower(query)
	seen := map[int64]struct{}{}
	var out []catalog.Record
	for _, rec := range recs {
		if _, dup := seen[rec.Code]; dup {
			continue
		}
		if !strings.Contains(strings.ToLower(rec.Title), needle) {
			continue
		}
		seen[rec.Code] = struct{}{}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

