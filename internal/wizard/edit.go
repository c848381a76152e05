package wizard

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/genre"
)

func episodeItem(k catalog.EpisodeKey) string {
	return fmt.Sprintf("%d:%d", k.Season, k.Episode)
}

func parseEpisodeItem(s string) (catalog.EpisodeKey, bool) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return catalog.EpisodeKey{}, false
	}
	season, err1 := strconv.Atoi(a)
	ep, err2 := strconv.Atoi(b)
	if err1 != nil || err2 != nil {
		return catalog.EpisodeKey{}, false
	}
	return catalog.EpisodeKey{Season: season, Episode: ep}, true
}

var rowEditStates = map[string]State{ActName: EditName, ActCaption: EditCaption, ActFile: EditFile}

// toActions returns to the item's action menu.
func toActions(s *Session) {
	s.Target.Season = 0
	s.Target.Episode = nil
	s.Target.Return = EditSelectAction
	s.State = EditSelectAction
}

func resetEdit(s *Session) {
	s.Target = Target{}
	s.State = EditInputCode
}

// patch applies p to the selected episode, or to every row without one.
func (m *Machine) patch(ctx context.Context, t Target, p catalog.Patch) error {
	repo := m.store.Repo(t.Shape)
	if t.Episode != nil {
		return repo.UpdateEpisode(ctx, t.Code, *t.Episode, p)
	}
	return repo.UpdateGlobal(ctx, t.Code, p)
}

func (m *Machine) loadGenres(ctx context.Context, t *Target) string {
	genres, err := catalog.GenresOf(ctx, m.store.Repo(t.Shape), t.Code)
	if err != nil {
		return m.failure("read genres", err)
	}
	t.Genres = genres
	return ""
}

func (m *Machine) handleEdit(ctx context.Context, s *Session, ev Event) step {
	t := &s.Target
	switch s.State {
	case EditInputCode:
		if isAction(ev, ActCancel) {
			return finish("❌ Редактирование завершено")
		}
		code, ok := parseNumber(ev.Text)
		if ev.Kind != EventText || !ok {
			return stay(noticeDigits)
		}
		item, err := m.store.Lookup(ctx, code)
		if err != nil {
			return stay(m.failure("lookup code", err))
		}
		if item == nil {
			return stay(fmt.Sprintf("❌ Код %d не найден", code))
		}
		s.Target = Target{Shape: item.Shape, Code: code}
		toActions(s)
		return step{}

	case EditSelectAction:
		if ev.Kind != EventAction {
			return stay(noticeUseMenu)
		}
		switch ev.Action {
		case ActBack:
			resetEdit(s)
		case ActName, ActCaption, ActFile:
			if t.Shape != catalog.Standalone {
				return stay(noticeUseMenu)
			}
			s.State = rowEditStates[ev.Action]
		case ActCode:
			s.State = EditCode
		case ActGenres:
			if n := m.loadGenres(ctx, t); n != "" {
				return stay(n)
			}
			s.State = EditGenres
		case ActDelete:
			s.State = EditConfirmDelete
		case ActSeasons:
			if t.Shape != catalog.Seasoned {
				return stay(noticeUseMenu)
			}
			s.State = EditSelectSeason
		case ActEpisodes:
			if t.Shape != catalog.Flat {
				return stay(noticeUseMenu)
			}
			s.State = EditSelectEpisode
		default:
			return stay(noticeUseMenu)
		}
		return step{}

	case EditName, EditCaption, EditFile:
		if isAction(ev, ActBack) {
			s.State = t.Return
			return step{}
		}
		var p catalog.Patch
		switch s.State {
		case EditName:
			title, ok := textInput(ev)
			if !ok {
				return stay(noticeText)
			}
			p.Title = &title
		case EditCaption:
			var caption string
			switch {
			case isAction(ev, ActSkip):
			case ev.Kind == EventText:
				caption = captionOf(ev)
			default:
				return stay(noticeText)
			}
			p.Caption = &caption
		case EditFile:
			if ev.Kind != EventMedia || ev.MediaRef == "" {
				return stay(noticeMedia)
			}
			p.MediaRef = &ev.MediaRef
		}
		if err := m.patch(ctx, *t, p); err != nil {
			return stay(m.failure("update", err))
		}
		m.committed(ctx)
		s.State = t.Return
		return stay("✅ Сохранено")

	case EditCode:
		if isAction(ev, ActBack) {
			s.State = t.Return
			return step{}
		}
		code, ok := parseNumber(ev.Text)
		if ev.Kind != EventText || !ok {
			return stay(noticeDigits)
		}
		if t.Episode != nil {
			return m.detachEpisode(ctx, s, code)
		}
		if err := m.store.RenameCode(ctx, t.Code, code); err != nil {
			return stay(m.failure("rename code", err))
		}
		m.log.WithField("admin_id", s.AdminID).Infof("renamed code %d to %d", t.Code, code)
		m.committed(ctx)
		t.Code = code
		s.State = t.Return
		return stay("✅ Код изменён")

	case EditGenres:
		if toggleGenre(&t.Genres, ev) {
			return step{}
		}
		switch {
		case isAction(ev, ActBack):
			s.State = t.Return
			return step{}
		case isAction(ev, ActDone):
			genres := t.Genres
			if genres == nil {
				genres = []string{}
			}
			if err := m.store.Repo(t.Shape).UpdateGlobal(ctx, t.Code, catalog.Patch{Genres: &genres}); err != nil {
				return stay(m.failure("update genres", err))
			}
			m.committed(ctx)
			s.State = t.Return
			return stay("✅ Жанры сохранены")
		}
		return stay(noticeUseMenu)

	case EditConfirmDelete:
		switch {
		case isAction(ev, ActYes):
			if err := m.store.Repo(t.Shape).Delete(ctx, t.Code); err != nil {
				return stay(m.failure("delete", err))
			}
			m.log.WithField("admin_id", s.AdminID).Infof("deleted %s %d", t.Shape, t.Code)
			m.committed(ctx)
			resetEdit(s)
			return stay("🗑 Удалено")
		case isAction(ev, ActNo):
			toActions(s)
			return step{}
		}
		return stay(noticeUseMenu)

	case EditSelectSeason:
		if isAction(ev, ActBack) {
			toActions(s)
			return step{}
		}
		if !isAction(ev, ActSeason) {
			return stay(noticeUseMenu)
		}
		n, err := strconv.Atoi(ev.Item)
		if err != nil || n < 1 {
			return stay(noticeUseMenu)
		}
		t.Season = n
		s.State = EditSelectEpisode
		return step{}

	case EditSelectEpisode:
		if ev.Kind != EventAction {
			return stay(noticeUseMenu)
		}
		switch ev.Action {
		case ActBack:
			if t.Shape == catalog.Seasoned {
				t.Season = 0
				s.State = EditSelectSeason
			} else {
				toActions(s)
			}
		case ActEpisode:
			key, ok := parseEpisodeItem(ev.Item)
			if !ok {
				return stay(noticeUseMenu)
			}
			rec, err := m.store.Repo(t.Shape).Episode(ctx, t.Code, key)
			if err != nil {
				return stay(m.failure("get episode", err))
			}
			if rec == nil {
				return stay("❌ Серия не найдена")
			}
			t.Episode = &rec.Key
			t.Return = EditEpisode
			s.State = EditEpisode
		case ActRenameSeason, ActDeleteSeason:
			if t.Shape != catalog.Seasoned {
				return stay(noticeUseMenu)
			}
			if ev.Action == ActRenameSeason {
				s.State = EditGlobalSeason
			} else {
				s.State = EditConfirmDeleteSeason
			}
		default:
			return stay(noticeUseMenu)
		}
		return step{}

	case EditEpisode:
		if ev.Kind != EventAction {
			return stay(noticeUseMenu)
		}
		switch ev.Action {
		case ActBack:
			t.Episode = nil
			t.Return = EditSelectAction
			s.State = EditSelectEpisode
		case ActName:
			s.State = EditName
		case ActCaption:
			s.State = EditCaption
		case ActFile:
			s.State = EditFile
		case ActCode:
			s.State = EditCode
		case ActGenres:
			if n := m.loadGenres(ctx, t); n != "" {
				return stay(n)
			}
			s.State = EditGenres
		case ActSeasonNumber:
			if t.Shape != catalog.Seasoned {
				return stay(noticeUseMenu)
			}
			s.State = EditSeasonNumber
		case ActEpisodeNumber:
			s.State = EditEpisodeNumber
		case ActDeleteEpisode:
			s.State = EditConfirmDeleteEpisode
		default:
			return stay(noticeUseMenu)
		}
		return step{}

	case EditSeasonNumber, EditEpisodeNumber:
		if isAction(ev, ActBack) {
			s.State = EditEpisode
			return step{}
		}
		n, ok := parseNumber(ev.Text)
		if ev.Kind != EventText || !ok {
			return stay(noticeDigits)
		}
		num := int(n)
		var p catalog.Patch
		if s.State == EditSeasonNumber {
			p.Season = &num
		} else {
			p.Episode = &num
		}
		if err := m.store.Repo(t.Shape).UpdateEpisode(ctx, t.Code, *t.Episode, p); err != nil {
			return stay(m.failure("renumber episode", err))
		}
		m.committed(ctx)
		next := catalog.ApplyKey(*t.Episode, p)
		t.Episode = &next
		t.Season = next.Season
		s.State = EditEpisode
		return stay("✅ Номер изменён")

	case EditGlobalSeason:
		if isAction(ev, ActBack) {
			s.State = EditSelectEpisode
			return step{}
		}
		n, ok := parseNumber(ev.Text)
		if ev.Kind != EventText || !ok {
			return stay(noticeDigits)
		}
		if err := m.store.Repo(t.Shape).RenameSeason(ctx, t.Code, t.Season, int(n)); err != nil {
			return stay(m.failure("rename season", err))
		}
		m.committed(ctx)
		t.Season = int(n)
		s.State = EditSelectEpisode
		return stay("✅ Сезон переименован")

	case EditConfirmDeleteEpisode:
		switch {
		case isAction(ev, ActYes):
			if err := m.store.Repo(t.Shape).DeleteEpisode(ctx, t.Code, *t.Episode); err != nil {
				return stay(m.failure("delete episode", err))
			}
			m.committed(ctx)
			t.Episode = nil
			t.Return = EditSelectAction
			return m.afterRemoval(ctx, s, "🗑 Серия удалена")
		case isAction(ev, ActNo):
			s.State = EditEpisode
			return step{}
		}
		return stay(noticeUseMenu)

	case EditConfirmDeleteSeason:
		switch {
		case isAction(ev, ActYes):
			if err := m.store.Repo(t.Shape).DeleteSeason(ctx, t.Code, t.Season); err != nil {
				return stay(m.failure("delete season", err))
			}
			m.committed(ctx)
			return m.afterRemoval(ctx, s, "🗑 Сезон удалён")
		case isAction(ev, ActNo):
			s.State = EditSelectEpisode
			return step{}
		}
		return stay(noticeUseMenu)
	}
	resetEdit(s)
	return stay(noticeUseMenu)
}

// detachEpisode turns the selected episode into a standalone film under code.
func (m *Machine) detachEpisode(ctx context.Context, s *Session, code int64) step {
	t := &s.Target
	item, err := m.store.Lookup(ctx, code)
	if err != nil {
		return stay(m.failure("lookup code", err))
	}
	if item != nil {
		return stay(noticeCodeUsed)
	}
	if err := m.store.MoveEpisodeToStandalone(ctx, t.Shape, t.Code, *t.Episode, code); err != nil {
		return stay(m.failure("move episode", err))
	}
	m.log.WithField("admin_id", s.AdminID).Infof("moved %d %s to film %d", t.Code, *t.Episode, code)
	m.committed(ctx)
	resetEdit(s)
	return stay(fmt.Sprintf("✅ Серия перенесена в фильмы под кодом %d", code))
}

// afterRemoval picks the screen to land on once rows were deleted: the item
// itself may be gone, or the selected season may be empty.
func (m *Machine) afterRemoval(ctx context.Context, s *Session, notice string) step {
	t := &s.Target
	recs, err := m.store.Repo(t.Shape).Episodes(ctx, t.Code)
	if err != nil {
		resetEdit(s)
		return stay(m.failure("list episodes", err))
	}
	switch {
	case len(recs) == 0:
		resetEdit(s)
		return stay(notice + "\nСерий не осталось, код освобождён")
	case t.Shape == catalog.Seasoned && len(catalog.InSeason(recs, t.Season)) == 0:
		t.Season = 0
		s.State = EditSelectSeason
	default:
		s.State = EditSelectEpisode
	}
	return stay(notice)
}

func (m *Machine) itemSummary(rec catalog.Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nКод: <code>%d</code>\n", shapeLabel(rec.Shape), rec.Code)
	fmt.Fprintf(&b, "Название: %s\n", html.EscapeString(rec.Title))
	if rec.Key != (catalog.EpisodeKey{}) {
		fmt.Fprintf(&b, "Серия: %s\n", rec.Key)
	}
	fmt.Fprintf(&b, "Жанры: %s\n", html.EscapeString(genre.DisplayText(rec.Genres, m.lang)))
	fmt.Fprintf(&b, "Просмотры: %d", rec.Views)
	if rec.Caption != "" {
		fmt.Fprintf(&b, "\nОписание:\n%s", rec.Caption)
	}
	return b.String()
}

func (m *Machine) renderEdit(ctx context.Context, s *Session) View {
	t := s.Target
	back := row(btn("⬅️ Назад", ActBack))
	yesNo := [][]Button{row(btn("✅ Да", ActYes), btn("❌ Нет", ActNo))}
	missing := View{Text: "❌ Элемент не найден", Buttons: [][]Button{back}}

	switch s.State {
	case EditInputCode:
		return View{Text: "Введите код для редактирования:", Buttons: [][]Button{row(btn("❌ Отмена", ActCancel))}}

	case EditSelectAction:
		recs, err := m.store.Repo(t.Shape).Episodes(ctx, t.Code)
		if err != nil || len(recs) == 0 {
			return missing
		}
		text := m.itemSummary(recs[0])
		switch t.Shape {
		case catalog.Seasoned:
			text += fmt.Sprintf("\nСезонов: %d, серий: %d", len(catalog.Seasons(recs)), len(recs))
		case catalog.Flat:
			text += fmt.Sprintf("\nСерий: %d", len(recs))
		}
		v := View{Text: text}
		if t.Shape == catalog.Standalone {
			v.Media = recs[0].MediaRef
			v.Buttons = append(v.Buttons,
				row(btn("✏️ Название", ActName), btn("📝 Описание", ActCaption)),
				row(btn("🎞 Видео", ActFile), btn("🔢 Код", ActCode)))
		} else {
			list := btn("📂 Серии", ActEpisodes)
			if t.Shape == catalog.Seasoned {
				list = btn("📂 Сезоны", ActSeasons)
			}
			v.Buttons = append(v.Buttons, row(list), row(btn("🔢 Код", ActCode)))
		}
		v.Buttons = append(v.Buttons, row(btn("🎭 Жанры", ActGenres), btn("🗑 Удалить", ActDelete)), back)
		return v

	case EditName:
		return View{Text: "Введите новое название:", Buttons: [][]Button{back}}
	case EditCaption:
		return View{Text: "Введите новое описание:", Buttons: [][]Button{row(btn("🧹 Очистить", ActSkip)), back}}
	case EditFile:
		return View{Text: "Отправьте новое видео или файл:", Buttons: [][]Button{back}}
	case EditCode:
		if t.Episode != nil {
			return View{Text: "Введите код, под которым серия станет отдельным фильмом:", Buttons: [][]Button{back}}
		}
		return View{Text: "Введите новый код (только цифры):", Buttons: [][]Button{back}}
	case EditGenres:
		return View{Text: m.genreText(t.Genres), Buttons: m.genreButtons(t.Genres)}
	case EditConfirmDelete:
		return View{Text: fmt.Sprintf("Удалить %s с кодом <code>%d</code> полностью?", shapeLabel(t.Shape), t.Code), Buttons: yesNo}

	case EditSelectSeason:
		recs, err := m.store.Repo(t.Shape).Episodes(ctx, t.Code)
		if err != nil || len(recs) == 0 {
			return missing
		}
		seasons := catalog.Seasons(recs)
		bs := make([]Button, 0, len(seasons))
		for _, n := range seasons {
			bs = append(bs, Button{Label: fmt.Sprintf("Сезон %d", n), Action: ActSeason, Item: strconv.Itoa(n)})
		}
		return View{Text: "Выберите сезон:", Buttons: append(grid(bs, 3), back)}

	case EditSelectEpisode:
		recs, err := m.store.Repo(t.Shape).Episodes(ctx, t.Code)
		if err != nil {
			return missing
		}
		text := "Выберите серию:"
		if t.Shape == catalog.Seasoned {
			recs = catalog.InSeason(recs, t.Season)
			text = fmt.Sprintf("Сезон %d. Выберите серию:", t.Season)
		}
		bs := make([]Button, 0, len(recs))
		for _, r := range recs {
			bs = append(bs, Button{Label: fmt.Sprintf("Серия %d", r.Key.Episode), Action: ActEpisode, Item: episodeItem(r.Key)})
		}
		rows := grid(bs, 4)
		if t.Shape == catalog.Seasoned {
			rows = append(rows, row(btn("✏️ Номер сезона", ActRenameSeason), btn("🗑 Удалить сезон", ActDeleteSeason)))
		}
		return View{Text: text, Buttons: append(rows, back)}

	case EditEpisode:
		if t.Episode == nil {
			return missing
		}
		rec, err := m.store.Repo(t.Shape).Episode(ctx, t.Code, *t.Episode)
		if err != nil || rec == nil {
			return missing
		}
		rows := [][]Button{
			row(btn("✏️ Название", ActName), btn("📝 Описание", ActCaption)),
			row(btn("🎞 Видео", ActFile), btn("🎭 Жанры", ActGenres)),
		}
		if t.Shape == catalog.Seasoned {
			rows = append(rows, row(btn("📂 Номер сезона", ActSeasonNumber), btn("🔢 Номер серии", ActEpisodeNumber)))
		} else {
			rows = append(rows, row(btn("🔢 Номер серии", ActEpisodeNumber)))
		}
		rows = append(rows,
			row(btn("🎬 Сделать фильмом", ActCode)),
			row(btn("🗑 Удалить серию", ActDeleteEpisode)),
			back)
		return View{Text: m.itemSummary(*rec), Media: rec.MediaRef, Buttons: rows}

	case EditSeasonNumber:
		return View{Text: "Введите новый номер сезона для этой серии:", Buttons: [][]Button{back}}
	case EditEpisodeNumber:
		return View{Text: "Введите новый номер серии:", Buttons: [][]Button{back}}
	case EditGlobalSeason:
		return View{Text: fmt.Sprintf("Введите новый номер для сезона %d:", t.Season), Buttons: [][]Button{back}}
	case EditConfirmDeleteEpisode:
		if t.Episode == nil {
			return missing
		}
		return View{Text: fmt.Sprintf("Удалить серию %s?", *t.Episode), Buttons: yesNo}
	case EditConfirmDeleteSeason:
		return View{Text: fmt.Sprintf("Удалить сезон %d со всеми сериями?", t.Season), Buttons: yesNo}
	}
	return View{Text: noticeUseMenu}
}
