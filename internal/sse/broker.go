// Package sse implements a Server-Sent Events broker that tells connected
// clients about session and workspace changes.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Event types for workspace file changes.
var fileEvents = map[string]string{
	"created": "workspace.created",
	"updated": "workspace.updated",
	"deleted": "workspace.deleted",
}

const (
	// historySize is how many recent messages are kept for replay to
	// clients reconnecting with Last-Event-ID.
	historySize = 128
	// clientBuffer is the per-client queue; a slow client loses messages
	// beyond it rather than stalling the broker.
	clientBuffer = 64
	// keepAlive is the interval of comment lines that keep idle
	// connections open through proxies.
	keepAlive = 25 * time.Second
)

type message struct {
	id  uint64
	raw []byte
}

type subscription struct {
	ch chan []byte
	// after replays retained messages with a greater id. Zero means none.
	after uint64
	// added is closed once the replay is queued and the client registered.
	added chan struct{}
}

type changeReq struct {
	event Event
	// refresh asks for a tree.refresh once the throttle window allows.
	refresh bool
}

// Broker manages SSE client connections and broadcasts events.
//
// One goroutine owns the client set, the replay history and the refresh
// throttle; the public methods talk to it over channels. Every message gets
// a monotonically increasing id.
type Broker struct {
	refreshMin time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	changeCh      chan changeReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits tree.refresh at most once per
// refreshThrottle. A refresh requested inside the window is sent when the
// window ends, so the last change is always followed by one. Zero sends a
// refresh after every change.
func NewBroker(refreshThrottle time.Duration) *Broker {
	if refreshThrottle < 0 {
		refreshThrottle = time.Second
	}

	b := &Broker{
		refreshMin:    refreshThrottle,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		changeCh:      make(chan changeReq),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

// loop state, owned by run.
type hub struct {
	clients map[chan []byte]struct{}
	history []message
	next    uint64
}

func (h *hub) broadcast(event Event) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return
	}
	h.next++
	msg := message{
		id:  h.next,
		raw: []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", h.next, event.Type, payload)),
	}
	if len(h.history) == historySize {
		copy(h.history, h.history[1:])
		h.history = h.history[:historySize-1]
	}
	h.history = append(h.history, msg)

	for ch := range h.clients {
		select {
		case ch <- msg.raw:
		default:
		}
	}
}

func (h *hub) add(sub subscription) {
	if sub.after > 0 {
		for _, m := range h.history {
			if m.id <= sub.after {
				continue
			}
			select {
			case sub.ch <- m.raw:
			default:
			}
		}
	}
	h.clients[sub.ch] = struct{}{}
	close(sub.added)
}

func (b *Broker) run() {
	defer close(b.stopped)

	h := &hub{clients: make(map[chan []byte]struct{})}

	var lastRefresh time.Time
	refreshTimer := time.NewTimer(b.refreshMin)
	refreshTimer.Stop()
	defer refreshTimer.Stop()
	refreshPending := false

	refresh := func() {
		lastRefresh = time.Now()
		h.broadcast(Event{Type: "tree.refresh", Data: map[string]string{}})
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				close(ch)
			}
			return

		case sub := <-b.subscribeCh:
			h.add(sub)

		case ch := <-b.unsubscribeCh:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}

		case req := <-b.changeCh:
			h.broadcast(req.event)
			if !req.refresh || refreshPending {
				continue
			}
			if wait := b.refreshMin - time.Since(lastRefresh); wait > 0 {
				refreshPending = true
				refreshTimer.Reset(wait)
				continue
			}
			refresh()

		case <-refreshTimer.C:
			refreshPending = false
			refresh()

		case resp := <-b.countReqCh:
			resp <- len(h.clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeAfter(0)
}

// SubscribeAfter adds a new client that first receives the retained
// messages with an id greater than lastID.
func (b *Broker) SubscribeAfter(lastID uint64) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	sub := subscription{ch: ch, after: lastID, added: make(chan struct{})}
	select {
	case b.subscribeCh <- sub:
	case <-b.stopped:
		close(ch)
		return ch
	}
	select {
	case <-sub.added:
	case <-b.stopped:
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.change(changeReq{event: event})
}

// Notify publishes a session change as "thread.<kind>" followed by a
// throttled tree.refresh.
func (b *Broker) Notify(kind string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	b.change(changeReq{event: Event{Type: "thread." + kind, Data: data}, refresh: true})
}

// PublishFileEvent publishes a workspace file change reported by the index
// watcher. Unknown kinds are dropped.
func (b *Broker) PublishFileEvent(kind, path string) {
	typ, ok := fileEvents[kind]
	if !ok {
		return
	}
	b.change(changeReq{event: Event{Type: typ, Data: map[string]string{"path": path}}})
}

// change hands req to the loop. The channel is unbuffered, so events from
// one caller are broadcast in call order and before any later request.
func (b *Broker) change(req changeReq) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- req:
	case <-b.stopped:
	}
}

// ServeHTTP streams events to one client (GET /api/events). A reconnecting
// client's Last-Event-ID header resumes from the retained history.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribeAfter(lastID)
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(keepAlive)
	defer ping.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
