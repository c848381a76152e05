package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/kv"
)

// sessionVersion changes whenever Session changes incompatibly. Sessions
// written with another version are dropped on load.
const sessionVersion = 1

// DefaultSessionTTL is how long an untouched session survives.
const DefaultSessionTTL = 24 * time.Hour

// Draft is the item being ingested. Shape is the tag: ShapeNone until a type
// is chosen, then Season is only meaningful for Seasoned and Episode for the
// episodic shapes.
type Draft struct {
	Shape    catalog.Shape `json:"shape"`
	Code     int64         `json:"code,omitempty"`
	Existing catalog.Shape `json:"existing,omitempty"`
	Title    string        `json:"title,omitempty"`
	Season   int           `json:"season,omitempty"`
	Episode  int           `json:"episode,omitempty"`
	MediaRef string        `json:"media_ref,omitempty"`
	Caption  string        `json:"caption,omitempty"`
	Genres   []string      `json:"genres,omitempty"`
	// GenresInherited is set when Genres were read from the stored item.
	GenresInherited bool  `json:"genres_inherited,omitempty"`
	Editing         Field `json:"editing,omitempty"`
}

// Key is the draft's episode key for its shape.
func (d Draft) Key() catalog.EpisodeKey {
	return catalog.NormalizeKey(d.Shape, catalog.EpisodeKey{Season: d.Season, Episode: d.Episode})
}

// Record turns the draft into the row to create.
func (d Draft) Record() catalog.Record {
	return catalog.Record{
		Shape:    d.Shape,
		Code:     d.Code,
		Key:      d.Key(),
		Title:    d.Title,
		MediaRef: d.MediaRef,
		Caption:  d.Caption,
		Genres:   d.Genres,
	}
}

// resetEpisode clears the per-episode fields, keeping type, code and genres.
func (d *Draft) resetEpisode() {
	d.Title = ""
	d.Season = 0
	d.Episode = 0
	d.MediaRef = ""
	d.Caption = ""
	d.Editing = ""
}

// Target is the item an edit session works on.
type Target struct {
	Shape   catalog.Shape       `json:"shape"`
	Code    int64               `json:"code"`
	Season  int                 `json:"season,omitempty"`
	Episode *catalog.EpisodeKey `json:"episode,omitempty"`
	Genres  []string            `json:"genres,omitempty"`
	// Return is where shared edit windows go back to.
	Return State `json:"return,omitempty"`
}

type Session struct {
	Version   int       `json:"v"`
	AdminID   int64     `json:"admin_id"`
	Flow      Flow      `json:"flow"`
	State     State     `json:"state"`
	Draft     Draft     `json:"draft"`
	Target    Target    `json:"target"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore persists sessions in a kv.Store, one key per admin.
type SessionStore struct {
	kv  kv.Store
	ttl time.Duration
	now func() time.Time
}

func NewSessionStore(store kv.Store, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionStore{kv: store, ttl: ttl, now: time.Now}
}

func sessionKey(adminID int64) string {
	return fmt.Sprintf("wizard:session:%d", adminID)
}

// Load returns the admin's session or nil if there is none.
func (s *SessionStore) Load(ctx context.Context, adminID int64) (*Session, error) {
	data, err := s.kv.Get(ctx, sessionKey(adminID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil || sess.Version != sessionVersion {
		_ = s.kv.Delete(ctx, sessionKey(adminID))
		return nil, nil
	}
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	sess.Version = sessionVersion
	sess.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, sessionKey(sess.AdminID), data, s.ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, adminID int64) error {
	if err := s.kv.Delete(ctx, sessionKey(adminID)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
