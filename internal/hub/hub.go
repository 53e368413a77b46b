// Package hub serializes every mutation and fans the results out to the
// connected clients.
//
// The hub is a single goroutine owning a message inbox. Connections,
// disconnections and commands all arrive as messages, so state transitions
// need no locking and every client observes the same version order.
package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/fgcaster/overlay/internal/match"
	"github.com/fgcaster/overlay/internal/store"
)

type Msg interface{ isHubMsg() }

// Join registers a connection. The hub immediately sends a full snapshot to
// the outbox so the client can render without waiting for the next change.
type Join struct {
	ID        string
	CanMutate bool
	Outbox    chan Outbound
}

func (Join) isHubMsg() {}

type Leave struct{ ID string }

func (Leave) isHubMsg() {}

// FromClient carries one command. ID names the sender so rejections go back
// to it alone.
type FromClient struct {
	ID  string
	Cmd match.Command
}

func (FromClient) isHubMsg() {}

type GetView struct {
	Reply chan View
}

func (GetView) isHubMsg() {}

type Shutdown struct{}

func (Shutdown) isHubMsg() {}

// Outbound is one frame queued for a client. Exactly one of State, Delta or
// Err is set: a full snapshot, a section diff, or a rejection notice.
type Outbound struct {
	Version int
	State   *match.State
	Delta   *match.Delta
	Err     string
}

type View struct {
	Version    int
	NumClients int
	State      match.State
}

type client struct {
	outbox    chan Outbound
	canMutate bool
}

// Persister receives accepted versions for background saving. The hub never
// waits on it.
type Persister interface {
	Kick(version int, state match.State)
}

type Hub struct {
	inbox   chan Msg
	store   *store.Store
	saver   Persister
	log     *zap.Logger
	clients map[string]*client
	last    match.State // most recently broadcast state, diff base
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(parent context.Context, st *store.Store, saver Persister, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)

	h := &Hub{
		inbox:   make(chan Msg, 64),
		store:   st,
		saver:   saver,
		log:     logger,
		clients: make(map[string]*client),
		last:    st.Snapshot().State,
		ctx:     ctx,
		cancel:  cancel,
	}

	go h.loop()
	return h
}

// Inbox is where the WS layer (and tests) send messages.
func (h *Hub) Inbox() chan<- Msg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				c := &client{outbox: msg.Outbox, canMutate: msg.CanMutate}
				h.clients[msg.ID] = c
				// Through deliver, not a direct send: a joiner that handed us
				// a full outbox must not stall the loop, it gets evicted like
				// any other slow client.
				snap := h.store.Snapshot()
				h.deliver(msg.ID, c, Outbound{Version: snap.Version, State: &snap.State})
				h.log.Info("client joined",
					zap.String("client", msg.ID),
					zap.Bool("controller", msg.CanMutate),
					zap.Int("clients", len(h.clients)))

			case Leave:
				// Closing the outbox is what releases the client's writer
				// goroutine. Eviction already removed the entry, so a Leave
				// that races it finds nothing and closes nothing twice.
				if c, ok := h.clients[msg.ID]; ok {
					close(c.outbox)
					delete(h.clients, msg.ID)
				}
				h.log.Info("client left",
					zap.String("client", msg.ID),
					zap.Int("clients", len(h.clients)))

			case FromClient:
				h.handleCommand(msg)

			case GetView:
				// test-only: reflect internal state without data races
				snap := h.store.Snapshot()
				msg.Reply <- View{
					Version:    snap.Version,
					NumClients: len(h.clients),
					State:      snap.State,
				}

			case Shutdown:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) handleCommand(msg FromClient) {
	c, ok := h.clients[msg.ID]
	if !ok {
		// Raced with its own Leave; nothing to answer.
		return
	}

	if !c.canMutate {
		h.log.Debug("command from read-only client",
			zap.String("client", msg.ID),
			zap.String("type", string(msg.Cmd.Type)))
		h.deliver(msg.ID, c, Outbound{Err: "read-only connection"})
		return
	}

	snap, err := h.store.Apply(msg.Cmd)
	if err != nil {
		h.log.Debug("command rejected",
			zap.String("client", msg.ID),
			zap.String("type", string(msg.Cmd.Type)),
			zap.Error(err))
		h.deliver(msg.ID, c, Outbound{Err: err.Error()})
		return
	}

	h.saver.Kick(snap.Version, snap.State)

	delta, changed := match.Diff(h.last, snap.State)
	h.last = snap.State

	out := Outbound{Version: snap.Version}
	if changed*2 > match.DeltaSections {
		out.State = &snap.State
	} else {
		out.Delta = &delta
	}
	h.broadcast(out)

	h.log.Debug("command applied",
		zap.String("client", msg.ID),
		zap.String("type", string(msg.Cmd.Type)),
		zap.Int("version", snap.Version),
		zap.Int("changed_sections", changed))
}

func (h *Hub) broadcast(out Outbound) {
	for id, c := range h.clients {
		h.deliver(id, c, out)
	}
}

// deliver never blocks the loop: a client whose outbox is full is dropped,
// its websocket writer sees the closed channel and hangs up.
func (h *Hub) deliver(id string, c *client, out Outbound) {
	select {
	case c.outbox <- out:
	default:
		close(c.outbox)
		delete(h.clients, id)
		h.log.Warn("evicting slow client", zap.String("client", id))
	}
}

func (h *Hub) shutdown() {
	for id, c := range h.clients {
		close(c.outbox)
		delete(h.clients, id)
	}
	h.cancel()
	h.log.Info("hub stopped")
}
