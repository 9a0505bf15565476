// Package sse implements a Server-Sent Events broker for sync progress and topic changes.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast. Course scopes the event to
// subscribers following that course; empty means every subscriber.
type Event struct {
	Type   string `json:"type"`
	Course string `json:"course,omitempty"`
	Data   any    `json:"data"`
}

type subscribeReq struct {
	ch     chan []byte
	course string
}

type topicEventReq struct {
	kind    string
	course  string
	topicID int
}

type syncEventReq struct {
	course  string
	state   string
	changed bool
	data    any
}

// TopicChange is the payload of topic.* events.
type TopicChange struct {
	Course  string `json:"course"`
	TopicID int    `json:"topic_id"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set, the event sequence and the
// catalog throttle timestamp. Public methods talk to it over channels.
type Broker struct {
	catalogMin time.Duration

	subscribeCh   chan subscribeReq
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	topicEventCh  chan topicEventReq
	syncEventCh   chan syncEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given catalog.updated throttle interval.
func NewBroker(catalogThrottle time.Duration) *Broker {
	if catalogThrottle <= 0 {
		catalogThrottle = 2 * time.Second
	}

	b := &Broker{
		catalogMin:    catalogThrottle,
		subscribeCh:   make(chan subscribeReq),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		topicEventCh:  make(chan topicEventReq, 256),
		syncEventCh:   make(chan syncEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	// clients maps each subscriber to its course filter ("" follows all courses).
	clients := make(map[chan []byte]string)
	var lastCatalog time.Time
	var seq uint64

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		raw := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch, course := range clients {
			if course != "" && event.Course != "" && course != event.Course {
				continue
			}
			select {
			case ch <- raw:
			default:
				// Slow client; drop rather than stall the loop.
			}
		}
	}

	catalogChanged := func() {
		now := time.Now()
		if now.Sub(lastCatalog) >= b.catalogMin {
			lastCatalog = now
			broadcast(Event{Type: "catalog.updated", Data: map[string]string{}})
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case req := <-b.subscribeCh:
			clients[req.ch] = req.course

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.topicEventCh:
			switch req.kind {
			case "created", "updated", "deleted":
				broadcast(Event{
					Type:   "topic." + req.kind,
					Course: req.course,
					Data:   TopicChange{Course: req.course, TopicID: req.topicID},
				})
			default:
				continue
			}
			catalogChanged()

		case req := <-b.syncEventCh:
			broadcast(Event{Type: "sync." + req.state, Course: req.course, Data: req.data})
			if req.changed {
				catalogChanged()
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
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

// Subscribe adds a client following every course and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	return b.SubscribeCourse("")
}

// SubscribeCourse adds a client that only receives events of one course
// plus unscoped events such as catalog.updated.
func (b *Broker) SubscribeCourse(course string) chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- subscribeReq{ch: ch, course: course}:
	case <-b.stopped:
		close(ch)
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
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishTopicEvent publishes a topic change and a throttled catalog.updated event.
// kind is one of "created", "updated", "deleted"; other kinds are ignored.
func (b *Broker) PublishTopicEvent(kind, course string, topicID int) {
	if b.closed.Load() {
		return
	}
	select {
	case b.topicEventCh <- topicEventReq{kind: kind, course: course, topicID: topicID}:
	case <-b.stopped:
	}
}

// PublishSyncEvent publishes a sync.<state> event for course. When changed is
// set the cached catalog was modified and a throttled catalog.updated follows.
func (b *Broker) PublishSyncEvent(course, state string, changed bool, data any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.syncEventCh <- syncEventReq{course: course, state: state, changed: changed, data: data}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
// An optional ?course= query narrows the stream to one course.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.SubscribeCourse(r.URL.Query().Get("course"))
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
