package wizard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/catalog/catalogtest"
	"kinokod-bot/internal/genre"
	"kinokod-bot/internal/kv"
	"kinokod-bot/internal/logger"
	"kinokod-bot/internal/storage"
)

const admin int64 = 42

type harness struct {
	t        *testing.T
	store    catalog.Store
	kv       *kv.Badger
	sessions *SessionStore
	m        *Machine
	commits  int
}

func setup(t *testing.T) *harness {
	t.Helper()
	s, err := storage.OpenSQLite(":memory:", logger.Discard())
	require.NoError(t, err)
	b, err := kv.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Close()
		_ = s.Close(context.Background())
	})
	h := &harness{t: t, store: s, kv: b, sessions: NewSessionStore(b, time.Hour)}
	h.m = New(s, h.sessions, WithLogger(logger.Discard()), OnCommit(func(context.Context) { h.commits++ }))
	return h
}

func (h *harness) seed(recs ...catalog.Record) {
	h.t.Helper()
	for _, r := range recs {
		require.NoError(h.t, h.store.Repo(r.Shape).Create(context.Background(), r))
	}
}

func (h *harness) send(ev Event) View {
	h.t.Helper()
	v, err := h.m.Handle(context.Background(), admin, ev)
	require.NoError(h.t, err)
	return v
}

func hasAction(v View, action string) bool {
	for _, r := range v.Buttons {
		for _, b := range r {
			if b.Action == action {
				return true
			}
		}
	}
	return false
}

func hasItem(v View, item string) bool {
	for _, r := range v.Buttons {
		for _, b := range r {
			if b.Item == item {
				return true
			}
		}
	}
	return false
}

func TestAddFilm(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	v, err := h.m.StartAdd(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, AddChooseType, v.State)

	v = h.send(Select(ActType, catalog.Standalone.String()))
	assert.Equal(t, AddInputCode, v.State)

	v = h.send(Text("12a"))
	assert.Equal(t, AddInputCode, v.State)
	assert.Equal(t, noticeDigits, v.Notice)

	v = h.send(Text("0"))
	assert.Equal(t, noticeDigits, v.Notice)

	v = h.send(Text("101"))
	assert.Equal(t, AddInputName, v.State)

	v = h.send(Text("Inception"))
	assert.Equal(t, AddInputFile, v.State)

	v = h.send(Text("not a video"))
	assert.Equal(t, noticeMedia, v.Notice)

	v = h.send(Media("file-1", ""))
	assert.Equal(t, AddInputCaption, v.State)

	v = h.send(TextHTML("Dreams", "<b>Dreams</b>"))
	assert.Equal(t, AddSelectGenres, v.State)

	h.send(Select(ActToggle, "Фантастика"))
	h.send(Select(ActToggle, "Боевик"))
	h.send(Select(ActToggle, "Боевик"))
	v = h.send(Select(ActToggle, "Horror"))
	assert.Equal(t, noticeUseMenu, v.Notice)

	v = h.send(Action(ActDone))
	assert.Equal(t, AddConfirm, v.State)
	assert.Equal(t, "file-1", v.Media)
	assert.Contains(t, v.Text, "Inception")

	v = h.send(Action(ActSave))
	require.Empty(t, v.Notice)
	assert.Equal(t, AddSuccess, v.State)
	assert.False(t, hasAction(v, ActMore))
	assert.Equal(t, 1, h.commits)

	rec, err := h.store.Repo(catalog.Standalone).Episode(ctx, 101, catalog.EpisodeKey{})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Inception", rec.Title)
	assert.Equal(t, "<b>Dreams</b>", rec.Caption)
	assert.Equal(t, []string{"Фантастика"}, rec.Genres)

	v = h.send(Action(ActMore))
	assert.Equal(t, noticeUseMenu, v.Notice)

	v = h.send(Action(ActFinish))
	assert.True(t, v.Done)
	active, err := h.m.Active(ctx, admin)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestAddEpisodeToExistingSeries(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seed(catalogtest.SeasonEp(7, 1, 1, "Dark", "Драма"))

	_, err := h.m.StartAdd(ctx, admin)
	require.NoError(t, err)
	h.send(Select(ActType, catalog.Seasoned.String()))

	v := h.send(Text("7"))
	assert.Equal(t, AddQuickAdd, v.State)
	assert.True(t, hasAction(v, ActContinue))

	v = h.send(Action(ActContinue))
	assert.Equal(t, AddInputName, v.State)

	v = h.send(Text("Dark"))
	assert.Equal(t, AddInputSeason, v.State, "stored genres skip the genre picker")

	h.send(Text("1"))
	v = h.send(Text("1"))
	assert.Equal(t, AddInputEpisode, v.State)
	assert.Equal(t, noticeEpExists, v.Notice)

	v = h.send(Text("2"))
	assert.Equal(t, AddInputFile, v.State)
	h.send(Media("file-s1e2", ""))
	v = h.send(Action(ActSkip))
	assert.Equal(t, AddConfirm, v.State)

	v = h.send(Action(ActSave))
	assert.Equal(t, AddSuccess, v.State)
	assert.True(t, hasAction(v, ActMore))

	rec, err := h.store.Repo(catalog.Seasoned).Episode(ctx, 7, catalog.EpisodeKey{Season: 1, Episode: 2})
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"Драма"}, rec.Genres)
	assert.Empty(t, rec.Caption)

	v = h.send(Action(ActMore))
	assert.Equal(t, AddInputName, v.State)
	sess, err := h.sessions.Load(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(7), sess.Draft.Code)
	assert.Zero(t, sess.Draft.Episode)
	assert.Empty(t, sess.Draft.MediaRef)
}

func TestQuickAddRequiresSameShape(t *testing.T) {
	h := setup(t)
	h.seed(catalogtest.Film(5, "Heat"))

	_, err := h.m.StartAdd(context.Background(), admin)
	require.NoError(t, err)
	h.send(Select(ActType, catalog.Flat.String()))

	v := h.send(Text("5"))
	assert.Equal(t, AddQuickAdd, v.State)
	assert.False(t, hasAction(v, ActContinue))

	v = h.send(Action(ActContinue))
	assert.Equal(t, AddQuickAdd, v.State)
	assert.Equal(t, noticeUseMenu, v.Notice)

	v = h.send(Action(ActBack))
	assert.Equal(t, AddInputCode, v.State)
}

func TestQuickAddRejectsFilmCode(t *testing.T) {
	h := setup(t)
	h.seed(catalogtest.Film(5, "Heat"))

	_, err := h.m.StartAdd(context.Background(), admin)
	require.NoError(t, err)
	h.send(Select(ActType, catalog.Standalone.String()))
	v := h.send(Text("5"))
	assert.Equal(t, AddQuickAdd, v.State)
	assert.False(t, hasAction(v, ActContinue))
}

func TestAddFlatSeries(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	_, err := h.m.StartAdd(ctx, admin)
	require.NoError(t, err)
	h.send(Select(ActType, catalog.Flat.String()))
	h.send(Text("30"))

	v := h.send(Text("Chernobyl"))
	assert.Equal(t, AddSelectGenres, v.State)
	h.send(Select(ActToggle, "Драма"))
	h.send(Select(ActToggle, "Исторический"))

	v = h.send(Action(ActDone))
	assert.Equal(t, AddInputEpisode, v.State)
	h.send(Text("1"))
	h.send(Media("file-e1", ""))
	v = h.send(Text("Episode one"))
	assert.Equal(t, AddConfirm, v.State)

	v = h.send(Action(ActSave))
	assert.Equal(t, AddSuccess, v.State)

	recs, err := h.store.Repo(catalog.Flat).Episodes(ctx, 30)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"Драма", "Исторический"}, recs[0].Genres)
	assert.Equal(t, "Episode one", recs[0].Caption)
}

func TestBackNavigation(t *testing.T) {
	h := setup(t)
	_, err := h.m.StartAdd(context.Background(), admin)
	require.NoError(t, err)
	h.send(Select(ActType, catalog.Seasoned.String()))
	h.send(Text("8"))
	h.send(Text("Lost"))

	v := h.send(Action(ActBack))
	assert.Equal(t, AddInputName, v.State)
	v = h.send(Action(ActBack))
	assert.Equal(t, AddInputCode, v.State)
	v = h.send(Action(ActBack))
	assert.Equal(t, AddChooseType, v.State)

	v = h.send(Action(ActCancel))
	assert.True(t, v.Done)
}

// toConfirm walks a new film to the confirmation screen.
func (h *harness) toConfirm(code string) {
	h.t.Helper()
	_, err := h.m.StartAdd(context.Background(), admin)
	require.NoError(h.t, err)
	h.send(Select(ActType, catalog.Standalone.String()))
	h.send(Text(code))
	h.send(Text("Arrival"))
	h.send(Media("file-a", ""))
	h.send(Action(ActSkip))
	v := h.send(Action(ActDone))
	require.Equal(h.t, AddConfirm, v.State)
}

func TestEditDraftFromConfirm(t *testing.T) {
	h := setup(t)
	h.seed(catalogtest.Film(5, "Heat"))
	h.toConfirm("40")

	v := h.send(Action(ActEdit))
	assert.Equal(t, AddEditMenu, v.State)
	assert.False(t, hasItem(v, string(FieldSeason)))

	v = h.send(Select(ActField, string(FieldSeason)))
	assert.Equal(t, noticeUseMenu, v.Notice, "films have no season")

	v = h.send(Select(ActField, string(FieldCode)))
	assert.Equal(t, AddEditField, v.State)
	v = h.send(Text("5"))
	assert.Equal(t, noticeCodeUsed, v.Notice)
	v = h.send(Text("41"))
	assert.Equal(t, AddConfirm, v.State)

	h.send(Action(ActEdit))
	v = h.send(Select(ActField, string(FieldGenres)))
	assert.Equal(t, AddSelectGenres, v.State)
	h.send(Select(ActToggle, "Фантастика"))
	v = h.send(Action(ActDone))
	assert.Equal(t, AddConfirm, v.State)

	h.send(Action(ActSave))
	item, err := h.store.Lookup(context.Background(), 41)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, []string{"Фантастика"}, item.Genres())
}

func TestSaveConflictKeepsConfirm(t *testing.T) {
	h := setup(t)
	h.toConfirm("50")
	h.seed(catalogtest.FlatEp(50, 1, "Taken"))

	v := h.send(Action(ActSave))
	assert.Equal(t, AddConfirm, v.State)
	assert.Contains(t, v.Notice, "50")
	assert.Zero(t, h.commits)
}

func TestSessionSurvivesRestart(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	_, err := h.m.StartAdd(ctx, admin)
	require.NoError(t, err)
	h.send(Select(ActType, catalog.Flat.String()))

	other := New(h.store, NewSessionStore(h.kv, time.Hour), WithLogger(logger.Discard()))
	v, err := other.Handle(ctx, admin, Text("77"))
	require.NoError(t, err)
	assert.Equal(t, AddInputName, v.State)

	v, err = other.Current(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, AddInputName, v.State)
}

func TestStaleSessionIsDropped(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	require.NoError(t, h.kv.Set(ctx, sessionKey(admin), []byte(`{"v":99,"state":"add.confirm"}`), 0))

	_, err := h.m.Handle(ctx, admin, Text("1"))
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, h.kv.Set(ctx, sessionKey(admin), []byte(`not json`), 0))
	s, err := h.sessions.Load(ctx, admin)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestCancel(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	_, err := h.m.Handle(ctx, admin, Text("1"))
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = h.m.StartEdit(ctx, admin)
	require.NoError(t, err)
	active, err := h.m.Active(ctx, admin)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, h.m.Cancel(ctx, admin))
	active, err = h.m.Active(ctx, admin)
	require.NoError(t, err)
	assert.False(t, active)
	require.NoError(t, h.m.Cancel(ctx, admin))
}

func TestParseNumber(t *testing.T) {
	n, ok := parseNumber(" 15 ")
	assert.True(t, ok)
	assert.Equal(t, int64(15), n)

	for _, in := range []string{"", "0", "-3", "1.5", "12a", "١٢"} {
		_, ok := parseNumber(in)
		assert.False(t, ok, in)
	}
}

func TestCaptionOf(t *testing.T) {
	assert.Equal(t, "a &lt; b", captionOf(Text(" a < b ")))
	assert.Equal(t, "<i>x</i>", captionOf(TextHTML("x", "<i>x</i>")))
}

func TestConcurrentEventsAreSerialized(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	_, err := h.m.StartAdd(ctx, admin)
	require.NoError(t, err)
	h.send(Select(ActType, catalog.Standalone.String()))
	h.send(Text("77"))
	h.send(Text("Heat"))
	h.send(Media("heat-file", ""))
	v := h.send(Action(ActSkip))
	require.Equal(t, AddSelectGenres, v.State)

	names := []string{"Драма", "Комедия", "Боевик", "Триллер", "Ужасы", "Фантастика", "Фэнтези", "Мелодрама"}
	var wg sync.WaitGroup
	errs := make(chan error, len(names))
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_, err := h.m.Handle(ctx, admin, Select(ActToggle, name))
			errs <- err
		}(name)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	s, err := h.sessions.Load(ctx, admin)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.ElementsMatch(t, names, s.Draft.Genres)
}

func TestGenreButtonsFollowLanguage(t *testing.T) {
	h := setup(t)
	uz := New(h.store, h.sessions, WithLanguage(genre.LangUz), WithLogger(logger.Discard()))

	assert.Equal(t, "🎭 Drama", uz.genreButtons(nil)[0][0].Label)
	assert.Equal(t, "🎭 Драма", h.m.genreButtons(nil)[0][0].Label)
	assert.Contains(t, uz.genreText([]string{"Комедия"}), "Komediya")
}
