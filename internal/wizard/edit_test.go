package wizard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/catalog/catalogtest"
)

func (h *harness) startEdit(code string) View {
	h.t.Helper()
	_, err := h.m.StartEdit(context.Background(), admin)
	require.NoError(h.t, err)
	return h.send(Text(code))
}

func TestEditLookup(t *testing.T) {
	h := setup(t)
	h.seed(catalogtest.Film(1, "Heat"))

	v := h.startEdit("9")
	assert.Equal(t, EditInputCode, v.State)
	assert.Contains(t, v.Notice, "9")

	v = h.send(Text("1"))
	assert.Equal(t, EditSelectAction, v.State)
	assert.Contains(t, v.Text, "Heat")
	assert.Equal(t, "file-film", v.Media)

	v = h.send(Action(ActBack))
	assert.Equal(t, EditInputCode, v.State)
	v = h.send(Action(ActCancel))
	assert.True(t, v.Done)
}

func TestEditRenameCode(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seed(catalogtest.Film(1, "Heat"), catalogtest.FlatEp(2, 1, "Taken"))

	h.startEdit("1")
	v := h.send(Action(ActCode))
	assert.Equal(t, EditCode, v.State)

	v = h.send(Text("2"))
	assert.Equal(t, EditCode, v.State)
	assert.Equal(t, noticeCodeUsed, v.Notice)

	v = h.send(Text("3"))
	assert.Equal(t, EditSelectAction, v.State)
	assert.Equal(t, 1, h.commits)

	old, err := h.store.Lookup(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, old)
	item, err := h.store.Lookup(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Heat", item.Title())
}

func TestEditFilmFields(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seed(catalogtest.Film(1, "Heat", "Боевик"))
	h.startEdit("1")

	h.send(Action(ActName))
	v := h.send(Text("Heat (1995)"))
	assert.Equal(t, EditSelectAction, v.State)

	h.send(Action(ActFile))
	v = h.send(Text("no"))
	assert.Equal(t, noticeMedia, v.Notice)
	h.send(Media("file-new", ""))

	h.send(Action(ActCaption))
	h.send(Text("Crime epic"))

	v = h.send(Action(ActGenres))
	assert.Equal(t, EditGenres, v.State)
	assert.True(t, hasItem(v, "Боевик"))
	h.send(Select(ActToggle, "Боевик"))
	h.send(Select(ActToggle, "Детектив"))
	v = h.send(Action(ActDone))
	assert.Equal(t, EditSelectAction, v.State)

	rec, err := h.store.Repo(catalog.Standalone).Episode(ctx, 1, catalog.EpisodeKey{})
	require.NoError(t, err)
	assert.Equal(t, "Heat (1995)", rec.Title)
	assert.Equal(t, "file-new", rec.MediaRef)
	assert.Equal(t, "Crime epic", rec.Caption)
	assert.Equal(t, []string{"Детектив"}, rec.Genres)
	assert.Equal(t, 4, h.commits)
}

func TestEditSeriesHidesRowFields(t *testing.T) {
	h := setup(t)
	h.seed(catalogtest.FlatEp(20, 1, "Chernobyl"))
	v := h.startEdit("20")
	assert.False(t, hasAction(v, ActName))
	assert.True(t, hasAction(v, ActEpisodes))

	v = h.send(Action(ActName))
	assert.Equal(t, noticeUseMenu, v.Notice)
	v = h.send(Action(ActSeasons))
	assert.Equal(t, noticeUseMenu, v.Notice)
}

func TestEditDetachEpisode(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seed(
		catalogtest.FlatEp(20, 1, "Chernobyl"),
		catalogtest.FlatEp(20, 2, "Chernobyl 2"),
		catalogtest.Film(2, "Heat"),
	)
	h.startEdit("20")

	v := h.send(Action(ActEpisodes))
	assert.Equal(t, EditSelectEpisode, v.State)
	assert.True(t, hasItem(v, "0:2"))

	v = h.send(Select(ActEpisode, "0:2"))
	assert.Equal(t, EditEpisode, v.State)
	assert.Contains(t, v.Text, "Chernobyl 2")

	h.send(Action(ActCode))
	v = h.send(Text("2"))
	assert.Equal(t, noticeCodeUsed, v.Notice)

	v = h.send(Text("21"))
	assert.Equal(t, EditInputCode, v.State)
	assert.Contains(t, v.Notice, "21")

	film, err := h.store.Lookup(ctx, 21)
	require.NoError(t, err)
	require.NotNil(t, film)
	assert.Equal(t, catalog.Standalone, film.Shape)
	assert.Equal(t, "Chernobyl 2", film.Title())

	recs, err := h.store.Repo(catalog.Flat).Episodes(ctx, 20)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestEditDeleteLastEpisode(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seed(catalogtest.FlatEp(20, 1, "Chernobyl"), catalogtest.FlatEp(20, 2, "Chernobyl"))

	h.startEdit("20")
	h.send(Action(ActEpisodes))
	h.send(Select(ActEpisode, "0:1"))
	v := h.send(Action(ActDeleteEpisode))
	assert.Equal(t, EditConfirmDeleteEpisode, v.State)

	v = h.send(Action(ActNo))
	assert.Equal(t, EditEpisode, v.State)
	h.send(Action(ActDeleteEpisode))
	v = h.send(Action(ActYes))
	assert.Equal(t, EditSelectEpisode, v.State)
	assert.False(t, hasItem(v, "0:1"))

	h.send(Select(ActEpisode, "0:2"))
	h.send(Action(ActDeleteEpisode))
	v = h.send(Action(ActYes))
	assert.Equal(t, EditInputCode, v.State)

	item, err := h.store.Lookup(ctx, 20)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestEditRenumberEpisode(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seed(catalogtest.SeasonEp(10, 1, 1, "Dark"), catalogtest.SeasonEp(10, 1, 2, "Dark"))

	h.startEdit("10")
	v := h.send(Action(ActSeasons))
	assert.Equal(t, EditSelectSeason, v.State)
	h.send(Select(ActSeason, "1"))
	h.send(Select(ActEpisode, "1:1"))

	v = h.send(Action(ActEpisodeNumber))
	assert.Equal(t, EditEpisodeNumber, v.State)
	v = h.send(Text("2"))
	assert.Equal(t, EditEpisodeNumber, v.State)
	assert.NotEmpty(t, v.Notice)

	v = h.send(Text("5"))
	assert.Equal(t, EditEpisode, v.State)

	h.send(Action(ActSeasonNumber))
	v = h.send(Text("2"))
	assert.Equal(t, EditEpisode, v.State)

	sess, err := h.sessions.Load(ctx, admin)
	require.NoError(t, err)
	require.NotNil(t, sess.Target.Episode)
	assert.Equal(t, catalog.EpisodeKey{Season: 2, Episode: 5}, *sess.Target.Episode)

	rec, err := h.store.Repo(catalog.Seasoned).Episode(ctx, 10, catalog.EpisodeKey{Season: 2, Episode: 5})
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestEditSeasons(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seed(catalogtest.SeasonEp(10, 1, 1, "Dark"), catalogtest.SeasonEp(10, 2, 1, "Dark"))

	h.startEdit("10")
	h.send(Action(ActSeasons))
	h.send(Select(ActSeason, "1"))

	v := h.send(Action(ActRenameSeason))
	assert.Equal(t, EditGlobalSeason, v.State)
	v = h.send(Text("2"))
	assert.Equal(t, EditGlobalSeason, v.State)
	assert.NotEmpty(t, v.Notice)

	v = h.send(Text("3"))
	assert.Equal(t, EditSelectEpisode, v.State)
	assert.True(t, hasItem(v, "3:1"))

	h.send(Action(ActDeleteSeason))
	v = h.send(Action(ActYes))
	assert.Equal(t, EditSelectSeason, v.State)
	assert.True(t, hasItem(v, "2"))
	assert.False(t, hasItem(v, "3"))

	h.send(Select(ActSeason, "2"))
	h.send(Action(ActDeleteSeason))
	v = h.send(Action(ActYes))
	assert.Equal(t, EditInputCode, v.State)

	item, err := h.store.Lookup(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestEditDeleteItem(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	h.seed(catalogtest.SeasonEp(10, 1, 1, "Dark"), catalogtest.SeasonEp(10, 1, 2, "Dark"))

	h.startEdit("10")
	v := h.send(Action(ActDelete))
	assert.Equal(t, EditConfirmDelete, v.State)
	v = h.send(Action(ActNo))
	assert.Equal(t, EditSelectAction, v.State)

	h.send(Action(ActDelete))
	v = h.send(Action(ActYes))
	assert.Equal(t, EditInputCode, v.State)

	item, err := h.store.Lookup(ctx, 10)
	require.NoError(t, err)
	assert.Nil(t, item)
}
