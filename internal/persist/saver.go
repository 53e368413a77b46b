package persist

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/fgcaster/overlay/internal/match"
)

// Saver owns the persisted document and debounces state writes. Mutations
// arrive as kicks; the first kick after a clean save arms a timer, later
// kicks inside the window just replace the pending document. The disk sees
// at most one write per window no matter how fast a controller types.
//
// Port changes skip the debounce: they are rare, explicit, and the caller
// wants to know the write happened.
type Saver struct {
	file  *File
	clock clockwork.Clock
	delay time.Duration
	log   *zap.Logger

	kicks   chan kick
	ports   chan portReq
	flushes chan chan error

	doc   Document
	dirty bool
}

type kick struct {
	version int
	state   match.State
}

type portReq struct {
	port  int
	reply chan portResult
}

type portResult struct {
	prev int
	err  error
}

func NewSaver(file *File, initial Document, clock clockwork.Clock, delay time.Duration, logger *zap.Logger) *Saver {
	return &Saver{
		file:    file,
		clock:   clock,
		delay:   delay,
		log:     logger,
		kicks:   make(chan kick, 1),
		ports:   make(chan portReq),
		flushes: make(chan chan error),
		doc:     initial,
	}
}

// Kick records a new version to persist. It never blocks: if a kick is
// already pending it is replaced, so the loop always sees the latest.
func (s *Saver) Kick(version int, state match.State) {
	k := kick{version: version, state: state}
	for {
		select {
		case s.kicks <- k:
			return
		default:
		}
		select {
		case <-s.kicks:
		default:
		}
	}
}

// SetPort persists a new listen port immediately and returns the previous
// one. The change takes effect on the next start.
func (s *Saver) SetPort(port int) (int, error) {
	req := portReq{port: port, reply: make(chan portResult, 1)}
	s.ports <- req
	res := <-req.reply
	return res.prev, res.err
}

// Flush forces a write of anything pending and waits for it.
func (s *Saver) Flush() error {
	reply := make(chan error, 1)
	s.flushes <- reply
	return <-reply
}

// Run is the event loop. It exits when ctx is cancelled, writing any pending
// state first so a clean shutdown never loses the last edits.
func (s *Saver) Run(ctx context.Context) error {
	var timer clockwork.Timer
	var fire <-chan time.Time

	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer = nil
		}
		fire = nil
	}

	for {
		select {
		case <-ctx.Done():
			select {
			case k := <-s.kicks:
				s.absorb(k)
			default:
			}
			disarm()
			if s.dirty {
				return s.flush()
			}
			return nil

		case k := <-s.kicks:
			s.absorb(k)
			if fire == nil {
				timer = s.clock.NewTimer(s.delay)
				fire = timer.Chan()
			}

		case <-fire:
			timer = nil
			fire = nil
			if s.dirty {
				s.flush()
			}

		case req := <-s.ports:
			prev := s.doc.Port
			s.doc.Port = req.port
			err := s.file.Save(s.doc)
			if err == nil {
				s.dirty = false
				disarm()
				s.log.Info("port saved",
					zap.Int("prev", prev),
					zap.Int("port", req.port))
			}
			req.reply <- portResult{prev: prev, err: err}

		case reply := <-s.flushes:
			var err error
			if s.dirty {
				err = s.flush()
				disarm()
			}
			reply <- err
		}
	}
}

func (s *Saver) absorb(k kick) {
	s.doc.Version = k.version
	s.doc.State = k.state
	s.dirty = true
}

func (s *Saver) flush() error {
	if err := s.file.Save(s.doc); err != nil {
		s.log.Error("state save failed", zap.Error(err))
		return err
	}
	s.dirty = false
	s.log.Debug("state saved", zap.Int("version", s.doc.Version))
	return nil
}
