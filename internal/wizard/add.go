package wizard

import (
	"context"
	"fmt"
	"html"
	"strings"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/genre"
)

const (
	noticeDigits   = "❌ Используйте только цифры!"
	noticeText     = "❌ Отправьте текст"
	noticeMedia    = "❌ Отправьте видео или файл"
	noticeUseMenu  = "Выберите вариант на клавиатуре"
	noticeCodeUsed = "❌ Этот код уже занят"
	noticeEpExists = "❌ Такая серия уже существует"
)

func isAction(ev Event, action string) bool {
	return ev.Kind == EventAction && ev.Action == action
}

// textInput returns the trimmed text of a text event.
func textInput(ev Event) (string, bool) {
	if ev.Kind != EventText {
		return "", false
	}
	t := strings.TrimSpace(ev.Text)
	return t, t != ""
}

func (m *Machine) handleAdd(ctx context.Context, s *Session, ev Event) step {
	d := &s.Draft
	switch s.State {
	case AddChooseType:
		if isAction(ev, ActCancel) {
			return finish("❌ Добавление отменено")
		}
		if isAction(ev, ActType) {
			shape, err := catalog.ParseShape(ev.Item)
			if err != nil {
				return stay(noticeUseMenu)
			}
			s.Draft = Draft{Shape: shape}
			s.State = AddInputCode
			return step{}
		}
		return stay(noticeUseMenu)

	case AddInputCode:
		if isAction(ev, ActBack) {
			s.Draft = Draft{}
			s.State = AddChooseType
			return step{}
		}
		code, ok := parseNumber(ev.Text)
		if ev.Kind != EventText || !ok {
			return stay(noticeDigits)
		}
		item, err := m.store.Lookup(ctx, code)
		if err != nil {
			return stay(m.failure("lookup code", err))
		}
		d.Code = code
		if item == nil {
			d.Existing = catalog.ShapeNone
			s.State = AddInputName
			return step{}
		}
		d.Existing = item.Shape
		d.Title = item.Title()
		d.Genres = item.Genres()
		s.State = AddQuickAdd
		return step{}

	case AddQuickAdd:
		switch {
		case isAction(ev, ActBack):
			d.Code, d.Existing, d.Genres = 0, catalog.ShapeNone, nil
			d.resetEpisode()
			s.State = AddInputCode
		case isAction(ev, ActContinue) && canContinue(*d):
			d.resetEpisode()
			s.State = AddInputName
		default:
			return stay(noticeUseMenu)
		}
		return step{}

	case AddInputName:
		if isAction(ev, ActBack) {
			s.State = AddInputCode
			return step{}
		}
		title, ok := textInput(ev)
		if !ok {
			return stay(noticeText)
		}
		d.Title = title
		if d.Shape == catalog.Standalone {
			s.State = AddInputFile
			return step{}
		}
		if d.Existing == d.Shape {
			genres, err := catalog.GenresOf(ctx, m.store.Repo(d.Shape), d.Code)
			if err != nil {
				return stay(m.failure("read genres", err))
			}
			if len(genres) > 0 {
				d.Genres = genres
				d.GenresInherited = true
				s.State = numberState(d.Shape)
				return step{}
			}
		}
		s.State = AddSelectGenres
		return step{}

	case AddInputSeason:
		if isAction(ev, ActBack) {
			s.State = AddInputName
			return step{}
		}
		n, ok := parseNumber(ev.Text)
		if ev.Kind != EventText || !ok {
			return stay(noticeDigits)
		}
		d.Season = int(n)
		s.State = AddInputEpisode
		return step{}

	case AddInputEpisode:
		if isAction(ev, ActBack) {
			if d.Shape == catalog.Seasoned {
				s.State = AddInputSeason
			} else {
				s.State = AddInputName
			}
			return step{}
		}
		n, ok := parseNumber(ev.Text)
		if ev.Kind != EventText || !ok {
			return stay(noticeDigits)
		}
		key := catalog.NormalizeKey(d.Shape, catalog.EpisodeKey{Season: d.Season, Episode: int(n)})
		if notice := m.checkFreeKey(ctx, d.Shape, d.Code, key); notice != "" {
			return stay(notice)
		}
		d.Episode = int(n)
		s.State = AddInputFile
		return step{}

	case AddInputFile:
		if isAction(ev, ActBack) {
			if d.Shape == catalog.Standalone {
				s.State = AddInputName
			} else {
				s.State = AddInputEpisode
			}
			return step{}
		}
		if ev.Kind != EventMedia || ev.MediaRef == "" {
			return stay(noticeMedia)
		}
		d.MediaRef = ev.MediaRef
		s.State = AddInputCaption
		return step{}

	case AddInputCaption:
		switch {
		case isAction(ev, ActBack):
			s.State = AddInputFile
			return step{}
		case isAction(ev, ActSkip):
			d.Caption = ""
		case ev.Kind == EventText:
			d.Caption = captionOf(ev)
		default:
			return stay(noticeText)
		}
		if d.Shape == catalog.Standalone {
			s.State = AddSelectGenres
		} else {
			s.State = AddConfirm
		}
		return step{}

	case AddSelectGenres:
		if toggleGenre(&d.Genres, ev) {
			return step{}
		}
		switch {
		case isAction(ev, ActDone):
			if d.Editing == FieldGenres || d.Shape == catalog.Standalone {
				s.State = AddConfirm
			} else {
				s.State = numberState(d.Shape)
			}
			d.Editing = ""
		case isAction(ev, ActBack):
			switch {
			case d.Editing == FieldGenres:
				s.State = AddConfirm
			case d.Shape == catalog.Standalone:
				s.State = AddInputCaption
			default:
				s.State = AddInputName
			}
			d.Editing = ""
		default:
			return stay(noticeUseMenu)
		}
		return step{}

	case AddConfirm:
		switch {
		case isAction(ev, ActSave):
			return m.save(ctx, s)
		case isAction(ev, ActEdit):
			s.State = AddEditMenu
		case isAction(ev, ActCancel):
			s.Draft = Draft{}
			s.State = AddChooseType
		default:
			return stay(noticeUseMenu)
		}
		return step{}

	case AddEditMenu:
		if isAction(ev, ActBack) {
			s.State = AddConfirm
			return step{}
		}
		if !isAction(ev, ActField) || !fieldAllowed(d.Shape, Field(ev.Item)) {
			return stay(noticeUseMenu)
		}
		d.Editing = Field(ev.Item)
		if d.Editing == FieldGenres {
			s.State = AddSelectGenres
		} else {
			s.State = AddEditField
		}
		return step{}

	case AddEditField:
		if isAction(ev, ActBack) {
			d.Editing = ""
			s.State = AddEditMenu
			return step{}
		}
		if notice := m.editDraftField(ctx, d, ev); notice != "" {
			return stay(notice)
		}
		d.Editing = ""
		s.State = AddConfirm
		return step{}

	case AddSuccess:
		switch {
		case isAction(ev, ActMore) && d.Shape.Episodic():
			d.Existing = d.Shape
			d.resetEpisode()
			s.State = AddInputName
		case isAction(ev, ActRestart):
			s.Draft = Draft{}
			s.State = AddChooseType
		case isAction(ev, ActFinish):
			return finish("✅ Готово")
		default:
			return stay(noticeUseMenu)
		}
		return step{}
	}
	// Unknown state, most likely written by an older build.
	s.Draft = Draft{}
	s.State = AddChooseType
	return stay(noticeUseMenu)
}

// canContinue reports whether quick add may append an episode to the item
// already holding the code.
func canContinue(d Draft) bool {
	return d.Existing == d.Shape && d.Shape.Episodic()
}

// numberState is the first numbering step of an episodic shape.
func numberState(shape catalog.Shape) State {
	if shape == catalog.Seasoned {
		return AddInputSeason
	}
	return AddInputEpisode
}

func (m *Machine) checkFreeKey(ctx context.Context, shape catalog.Shape, code int64, key catalog.EpisodeKey) string {
	rec, err := m.store.Repo(shape).Episode(ctx, code, key)
	if err != nil {
		return m.failure("check episode", err)
	}
	if rec != nil {
		return noticeEpExists
	}
	return ""
}

func draftFields(shape catalog.Shape) []Field {
	fs := []Field{FieldCode, FieldName}
	if shape == catalog.Seasoned {
		fs = append(fs, FieldSeason)
	}
	if shape.Episodic() {
		fs = append(fs, FieldEpisode)
	}
	return append(fs, FieldVideo, FieldCaption, FieldGenres)
}

func fieldAllowed(shape catalog.Shape, f Field) bool {
	for _, x := range draftFields(shape) {
		if x == f {
			return true
		}
	}
	return false
}

// editDraftField applies the input for d.Editing and returns a notice when
// the input is rejected.
func (m *Machine) editDraftField(ctx context.Context, d *Draft, ev Event) string {
	switch d.Editing {
	case FieldCode:
		code, ok := parseNumber(ev.Text)
		if ev.Kind != EventText || !ok {
			return noticeDigits
		}
		if code == d.Code {
			return ""
		}
		item, err := m.store.Lookup(ctx, code)
		if err != nil {
			return m.failure("lookup code", err)
		}
		if item != nil {
			return noticeCodeUsed
		}
		d.Code = code
		d.Existing = catalog.ShapeNone
		d.GenresInherited = false
	case FieldName:
		title, ok := textInput(ev)
		if !ok {
			return noticeText
		}
		d.Title = title
	case FieldCaption:
		if ev.Kind != EventText {
			return noticeText
		}
		d.Caption = captionOf(ev)
	case FieldVideo:
		if ev.Kind != EventMedia || ev.MediaRef == "" {
			return noticeMedia
		}
		d.MediaRef = ev.MediaRef
	case FieldSeason, FieldEpisode:
		n, ok := parseNumber(ev.Text)
		if ev.Kind != EventText || !ok {
			return noticeDigits
		}
		key := d.Key()
		if d.Editing == FieldSeason {
			key.Season = int(n)
		} else {
			key.Episode = int(n)
		}
		if key == d.Key() {
			return ""
		}
		if notice := m.checkFreeKey(ctx, d.Shape, d.Code, key); notice != "" {
			return notice
		}
		d.Season, d.Episode = key.Season, key.Episode
	}
	return ""
}

// save writes the draft. A conflicting code keeps the admin on the
// confirmation screen so they can change it.
func (m *Machine) save(ctx context.Context, s *Session) step {
	d := &s.Draft
	item, err := m.store.Lookup(ctx, d.Code)
	if err != nil {
		return stay(m.failure("lookup code", err))
	}
	if item != nil && (item.Shape != d.Shape || !d.Shape.Episodic()) {
		return stay(fmt.Sprintf("❌ Код %d уже занят: %s", d.Code, shapeLabel(item.Shape)))
	}
	if err := m.store.Repo(d.Shape).Create(ctx, d.Record()); err != nil {
		return stay(m.failure("save "+d.Shape.String(), err))
	}
	m.log.WithField("admin_id", s.AdminID).Infof("saved %s %d %s", d.Shape, d.Code, d.Key())
	m.committed(ctx)
	s.State = AddSuccess
	return step{}
}

func (m *Machine) draftSummary(d Draft) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Тип: %s\n", shapeLabel(d.Shape))
	fmt.Fprintf(&b, "Код: <code>%d</code>\n", d.Code)
	fmt.Fprintf(&b, "Название: %s\n", html.EscapeString(d.Title))
	if d.Shape == catalog.Seasoned {
		fmt.Fprintf(&b, "Сезон: %d\n", d.Season)
	}
	if d.Shape.Episodic() {
		fmt.Fprintf(&b, "Серия: %d\n", d.Episode)
	}
	fmt.Fprintf(&b, "Жанры: %s\n", html.EscapeString(genre.DisplayText(d.Genres, m.lang)))
	if d.Caption != "" {
		fmt.Fprintf(&b, "Описание:\n%s", d.Caption)
	}
	return strings.TrimRight(b.String(), "\n")
}

var fieldLabels = map[Field]string{
	FieldCode:    "🔢 Код",
	FieldName:    "✏️ Название",
	FieldSeason:  "📂 Сезон",
	FieldEpisode: "🔢 Серия",
	FieldVideo:   "🎞 Видео",
	FieldCaption: "📝 Описание",
	FieldGenres:  "🎭 Жанры",
}

var fieldPrompts = map[Field]string{
	FieldCode:    "Введите новый код (только цифры):",
	FieldName:    "Введите новое название:",
	FieldSeason:  "Введите новый номер сезона:",
	FieldEpisode: "Введите новый номер серии:",
	FieldVideo:   "Отправьте новое видео или файл:",
	FieldCaption: "Введите новое описание:",
}

func (m *Machine) renderAdd(s *Session) View {
	d := s.Draft
	back := row(btn("⬅️ Назад", ActBack))
	switch s.State {
	case AddChooseType:
		return View{
			Text: "Выберите тип контента:",
			Buttons: [][]Button{
				row(
					Button{Label: shapeLabel(catalog.Standalone), Action: ActType, Item: catalog.Standalone.String()},
					Button{Label: shapeLabel(catalog.Seasoned), Action: ActType, Item: catalog.Seasoned.String()},
				),
				row(Button{Label: shapeLabel(catalog.Flat), Action: ActType, Item: catalog.Flat.String()}),
				row(btn("❌ Отмена", ActCancel)),
			},
		}
	case AddInputCode:
		return View{Text: fmt.Sprintf("%s\n\nВведите код (только цифры):", shapeLabel(d.Shape)), Buttons: [][]Button{back}}
	case AddQuickAdd:
		text := fmt.Sprintf("⚠️ Код <code>%d</code> уже существует\n\nТип: %s\nНазвание: %s\nЖанры: %s\n\n",
			d.Code, shapeLabel(d.Existing), html.EscapeString(d.Title), html.EscapeString(genre.DisplayText(d.Genres, m.lang)))
		if canContinue(d) {
			return View{
				Text:    text + "Добавить новую серию к этому коду?",
				Buttons: [][]Button{row(btn("➕ Продолжить", ActContinue)), back},
			}
		}
		return View{Text: text + "Этот код занят, вернитесь и введите другой.", Buttons: [][]Button{back}}
	case AddInputName:
		return View{Text: "Введите название:", Buttons: [][]Button{back}}
	case AddInputSeason:
		return View{Text: "Введите номер сезона:", Buttons: [][]Button{back}}
	case AddInputEpisode:
		return View{Text: "Введите номер серии:", Buttons: [][]Button{back}}
	case AddInputFile:
		return View{Text: "Отправьте видео или файл:", Buttons: [][]Button{back}}
	case AddInputCaption:
		return View{Text: "Введите описание:", Buttons: [][]Button{row(btn("⏭ Пропустить", ActSkip)), back}}
	case AddSelectGenres:
		return View{Text: m.genreText(d.Genres), Buttons: m.genreButtons(d.Genres)}
	case AddConfirm:
		return View{
			Text:  "Проверьте данные:\n\n" + m.draftSummary(d),
			Media: d.MediaRef,
			Buttons: [][]Button{
				row(btn("✅ Сохранить", ActSave), btn("✏️ Изменить", ActEdit)),
				row(btn("❌ Отмена", ActCancel)),
			},
		}
	case AddEditMenu:
		fs := draftFields(d.Shape)
		bs := make([]Button, 0, len(fs))
		for _, f := range fs {
			bs = append(bs, Button{Label: fieldLabels[f], Action: ActField, Item: string(f)})
		}
		return View{Text: "Что изменить?", Buttons: append(grid(bs, 2), back)}
	case AddEditField:
		return View{Text: fieldPrompts[d.Editing], Buttons: [][]Button{back}}
	case AddSuccess:
		var rows [][]Button
		if d.Shape.Episodic() {
			rows = append(rows, row(btn("➕ Добавить ещё серию", ActMore)))
		}
		rows = append(rows, row(btn("🔄 Новый контент", ActRestart), btn("🏁 Завершить", ActFinish)))
		return View{Text: "✅ Сохранено!\n\n" + m.draftSummary(d), Buttons: rows}
	}
	return View{Text: noticeUseMenu}
}
