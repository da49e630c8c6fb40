// Package sse streams pipeline run results to connected clients as
// Server-Sent Events.
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/backlinker/internal/updater"
)

// Event types.
const (
	EventRunCompleted      = "run.completed"
	EventDocumentRewritten = "document.rewritten"
)

// Event is one frame on the stream. ID, when set, is sent as the SSE id
// field so clients can tell which run produced the frame.
type Event struct {
	Type string
	ID   string
	Data any
}

// DocumentRewritten is the payload of a document.rewritten event.
type DocumentRewritten struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`
}

// RunCompleted is the payload of a run.completed event.
type RunCompleted struct {
	RunID     string `json:"run_id"`
	DryRun    bool   `json:"dry_run"`
	Documents int    `json:"documents"`
	Rewritten int    `json:"rewritten"`
	Failed    int    `json:"failed"`
	Conflicts int    `json:"conflicts"`
}

// encode renders e in the text/event-stream wire format.
func (e Event) encode() ([]byte, error) {
	payload, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if e.ID != "" {
		buf.WriteString("id: " + e.ID + "\n")
	}
	buf.WriteString("event: " + e.Type + "\n")
	buf.WriteString("data: ")
	buf.Write(payload)
	buf.WriteString("\n\n")
	return buf.Bytes(), nil
}

// DefaultHeartbeat is the interval of keep-alive comments on idle streams.
const DefaultHeartbeat = 15 * time.Second

// Broker fans events out to subscribers. A single loop goroutine owns the
// subscriber set and the last run.completed frame, which is replayed to every
// new subscriber.
type Broker struct {
	join      chan chan []byte
	leave     chan chan []byte
	events    chan Event
	count     chan chan int
	heartbeat time.Duration

	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its loop.
func NewBroker() *Broker {
	b := &Broker{
		join:      make(chan chan []byte),
		leave:     make(chan chan []byte),
		events:    make(chan Event, 256),
		count:     make(chan chan int),
		heartbeat: DefaultHeartbeat,
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	subs := make(map[chan []byte]struct{})
	var lastRun []byte

	send := func(ch chan []byte, frame []byte) {
		select {
		case ch <- frame:
		default:
			// slow subscriber, drop the frame
		}
	}

	for {
		select {
		case <-b.stop:
			for ch := range subs {
				close(ch)
			}
			return

		case ch := <-b.join:
			subs[ch] = struct{}{}
			if lastRun != nil {
				send(ch, lastRun)
			}

		case ch := <-b.leave:
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}

		case e := <-b.events:
			frame, err := e.encode()
			if err != nil {
				continue
			}
			if e.Type == EventRunCompleted {
				lastRun = frame
			}
			for ch := range subs {
				send(ch, frame)
			}

		case resp := <-b.count:
			resp <- len(subs)
		}
	}
}

// Close stops the loop and closes every subscriber channel. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe registers a subscriber. The channel is closed by Unsubscribe or
// Close.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of subscribers.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
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

// Publish queues an event for every subscriber. It is a no-op after Close.
func (b *Broker) Publish(e Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.events <- e:
	case <-b.stopped:
	}
}

var _ updater.Sink = (*Broker)(nil)

// Consume publishes one document.rewritten event per written document, then
// the run.completed summary. Dry runs only produce the summary.
func (b *Broker) Consume(_ context.Context, r *updater.Report) error {
	if !r.DryRun {
		for _, p := range r.Rewritten {
			b.Publish(Event{Type: EventDocumentRewritten, ID: r.RunID, Data: DocumentRewritten{RunID: r.RunID, Path: p}})
		}
	}
	b.Publish(Event{Type: EventRunCompleted, ID: r.RunID, Data: RunCompleted{
		RunID:     r.RunID,
		DryRun:    r.DryRun,
		Documents: r.DocumentCount(),
		Rewritten: len(r.Rewritten),
		Failed:    len(r.Failed),
		Conflicts: len(r.Conflicts),
	}})
	return nil
}

// ServeHTTP streams events until the client disconnects or the broker
// closes. Idle streams get a comment line every heartbeat interval.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case frame, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(frame)
			flusher.Flush()
		}
	}
}
