// Package wizard runs the admin dialogs that add content to the catalog and
// edit what is already there. A session is a small state machine persisted
// per admin, so a restart or a second bot replica picks up where the admin
// left off.
package wizard

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"kinokod-bot/internal/catalog"
	"kinokod-bot/internal/genre"
	"kinokod-bot/internal/logger"
)

// ErrNoSession is returned by Handle when the admin has no active dialog.
var ErrNoSession = errors.New("wizard: no active session")

// Machine drives sessions. It is safe for concurrent use: calls for one
// admin are serialized within the process.
type Machine struct {
	store    catalog.Store
	sessions *SessionStore
	lang     genre.Lang
	onCommit func(ctx context.Context)
	log      *logrus.Entry

	locks sync.Map // adminID -> *sync.Mutex
}

type Option func(*Machine)

// WithLanguage sets the language genre buttons are labelled in.
func WithLanguage(l genre.Lang) Option {
	return func(m *Machine) { m.lang = l }
}

// OnCommit registers a hook run after every successful catalog write.
func OnCommit(fn func(ctx context.Context)) Option {
	return func(m *Machine) { m.onCommit = fn }
}

func WithLogger(l *logrus.Entry) Option {
	return func(m *Machine) { m.log = l }
}

func New(store catalog.Store, sessions *SessionStore, opts ...Option) *Machine {
	m := &Machine{
		store:    store,
		sessions: sessions,
		lang:     genre.LangRu,
		log:      logger.WithModule("wizard"),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// step is what a state handler decided.
type step struct {
	notice string
	// end finishes the session with a final message.
	end     bool
	endText string
}

func stay(notice string) step { return step{notice: notice} }

func finish(text string) step { return step{end: true, endText: text} }

// StartAdd begins a new add dialog, replacing any session in progress.
func (m *Machine) StartAdd(ctx context.Context, adminID int64) (View, error) {
	return m.start(ctx, &Session{AdminID: adminID, Flow: FlowAdd, State: AddChooseType})
}

// StartEdit begins a new edit dialog, replacing any session in progress.
func (m *Machine) StartEdit(ctx context.Context, adminID int64) (View, error) {
	return m.start(ctx, &Session{AdminID: adminID, Flow: FlowEdit, State: EditInputCode})
}

// lock takes the admin's session lock and returns its release.
func (m *Machine) lock(adminID int64) func() {
	mu, _ := m.locks.LoadOrStore(adminID, &sync.Mutex{})
	l := mu.(*sync.Mutex)
	l.Lock()
	return l.Unlock
}

func (m *Machine) start(ctx context.Context, s *Session) (View, error) {
	defer m.lock(s.AdminID)()
	if err := m.sessions.Save(ctx, s); err != nil {
		return View{}, err
	}
	return m.render(ctx, s), nil
}

// Cancel drops the admin's session. It is a no-op without one.
func (m *Machine) Cancel(ctx context.Context, adminID int64) error {
	defer m.lock(adminID)()
	return m.sessions.Delete(ctx, adminID)
}

// Active reports whether the admin is in a dialog.
func (m *Machine) Active(ctx context.Context, adminID int64) (bool, error) {
	s, err := m.sessions.Load(ctx, adminID)
	return s != nil, err
}

// Current renders the admin's session without changing it.
func (m *Machine) Current(ctx context.Context, adminID int64) (View, error) {
	s, err := m.sessions.Load(ctx, adminID)
	if err != nil {
		return View{}, err
	}
	if s == nil {
		return View{}, ErrNoSession
	}
	return m.render(ctx, s), nil
}

// Handle feeds one event to the admin's session and returns what to show.
// Validation problems come back as View.Notice; an error means the session
// itself could not be read or written.
func (m *Machine) Handle(ctx context.Context, adminID int64, ev Event) (View, error) {
	defer m.lock(adminID)()
	s, err := m.sessions.Load(ctx, adminID)
	if err != nil {
		return View{}, err
	}
	if s == nil {
		return View{}, ErrNoSession
	}

	var st step
	if s.Flow == FlowEdit {
		st = m.handleEdit(ctx, s, ev)
	} else {
		st = m.handleAdd(ctx, s, ev)
	}

	if st.end {
		if err := m.sessions.Delete(ctx, adminID); err != nil {
			return View{}, err
		}
		return View{Text: st.endText, Done: true}, nil
	}
	if err := m.sessions.Save(ctx, s); err != nil {
		return View{}, err
	}
	v := m.render(ctx, s)
	v.Notice = st.notice
	return v, nil
}

func (m *Machine) render(ctx context.Context, s *Session) View {
	var v View
	if s.Flow == FlowEdit {
		v = m.renderEdit(ctx, s)
	} else {
		v = m.renderAdd(s)
	}
	v.State = s.State
	return v
}

func (m *Machine) committed(ctx context.Context) {
	if m.onCommit != nil {
		m.onCommit(ctx)
	}
}

// failure turns a catalog error into an admin notice. Backend failures are
// logged since the admin only sees a generic message.
func (m *Machine) failure(op string, err error) string {
	switch catalog.CodeOf(err) {
	case catalog.CodeCodeConflict:
		return noticeCodeUsed
	case catalog.CodeDuplicateKey:
		return "❌ Такая запись уже существует"
	case catalog.CodeNotFound:
		return "❌ Запись не найдена"
	case catalog.CodeUnsupported:
		return "❌ Недоступно для этого типа"
	case catalog.CodeValidation:
		var cerr *catalog.Error
		if errors.As(err, &cerr) {
			return "❌ Неверные данные: " + cerr.Message
		}
	}
	m.log.WithError(err).Errorf("%s failed", op)
	return "❌ Ошибка базы данных, попробуйте ещё раз"
}
