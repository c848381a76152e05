// Package views counts a view at most once per user and item within a
// rolling window.
package views

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/kv"
)

// DefaultWindow is how long a user's view of one code is remembered.
const DefaultWindow = 24 * time.Hour

type Tracker struct {
	kv      kv.Store
	catalog catalog.Store
	window  time.Duration
	log     *logrus.Entry
}

func NewTracker(store kv.Store, cat catalog.Store, window time.Duration, log *logrus.Entry) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Tracker{kv: store, catalog: cat, window: window, log: log}
}

func viewKey(userID, code int64) string {
	return fmt.Sprintf("view:%d:%d", userID, code)
}

// IsNewView claims the (user, code) slot for the window. It reports false
// when the slot is taken and also when the backing store fails, so an outage
// never inflates counters.
func (t *Tracker) IsNewView(ctx context.Context, userID, code int64) bool {
	created, err := t.kv.SetNX(ctx, viewKey(userID, code), []byte("1"), t.window)
	if err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "code": code}).Warn("view dedup check failed")
		return false
	}
	return created
}

// Track increments the row's counter if this is a new view and reports
// whether it did.
func (t *Tracker) Track(ctx context.Context, userID int64, rec catalog.Record) bool {
	if !t.IsNewView(ctx, userID, rec.Code) {
		return false
	}
	if err := t.catalog.Repo(rec.Shape).IncrementViews(ctx, rec.Code, rec.Key); err != nil {
		t.log.WithError(err).WithFields(logrus.Fields{
			"code":  rec.Code,
			"shape": rec.Shape.String(),
			"key":   rec.Key.String(),
		}).Error("failed to increment views")
		return false
	}
	return true
}
