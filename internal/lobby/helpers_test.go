package lobby

import (
	"sync"
	"testing"

	"github.com/jason-s-yu/sudoku-lobby/internal/config"
	"github.com/jason-s-yu/sudoku-lobby/internal/protocol"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// recorder is an Outbox that keeps everything it is given.
type recorder struct {
	mu   sync.Mutex
	msgs []protocol.Message
	fail bool
}

func (r *recorder) Enqueue(msg protocol.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return ErrOutboxFull
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recorder) all() []protocol.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]protocol.Message(nil), r.msgs...)
}

func (r *recorder) types() []string {
	var types []string
	for _, m := range r.all() {
		types = append(types, m.Type())
	}
	return types
}

func (r *recorder) ofType(typ string) []protocol.Message {
	var out []protocol.Message
	for _, m := range r.all() {
		if m.Type() == typ {
			out = append(out, m)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = nil
}

// memJournal collects journal events.
type memJournal struct {
	mu     sync.Mutex
	events []Event
}

func (j *memJournal) Record(ev Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
}

func (j *memJournal) kinds() []EventKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	var kinds []EventKind
	for _, ev := range j.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type fixture struct {
	lobby   *Lobby
	hook    *test.Hook
	journal *memJournal
	boxes   map[string]*recorder
}

func newFixture(t *testing.T, tweak func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Default()
	if tweak != nil {
		tweak(&cfg)
	}
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	j := &memJournal{}
	return &fixture{
		lobby:   New(cfg, logger, WithJournal(j)),
		hook:    hook,
		journal: j,
		boxes:   make(map[string]*recorder),
	}
}

// admit connects name and clears everything it was sent so far.
func (f *fixture) admit(t *testing.T, names ...string) {
	t.Helper()
	for _, name := range names {
		box := &recorder{}
		_, err := f.lobby.Admit(name, box)
		require.NoError(t, err)
		f.boxes[name] = box
	}
	f.resetAll()
}

func (f *fixture) resetAll() {
	for _, box := range f.boxes {
		box.reset()
	}
}

func (f *fixture) box(name string) *recorder {
	return f.boxes[name]
}

func (f *fixture) requireConsistent(t *testing.T) {
	t.Helper()
	require.NoError(t, f.lobby.CheckInvariants())
}
