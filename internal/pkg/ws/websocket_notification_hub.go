package ws

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

const DirectoryTopic = "directory"

// Events queued per listener before it counts as stalled and is dropped.
const outboxSize = 16

var ErrListenerGone = errors.New("websocket listener is not registered")

func DuelTopic(gameId uint64) string {
	return fmt.Sprintf("duel/%d", gameId)
}

func ActionTopic(actionId string) string {
	return "action/" + actionId
}

// Listener is the write side of a websocket connection.
type Listener interface {
	WriteJSON(v interface{}) error
}

// outbox serializes writes to one listener off the hub lock.
type outbox struct {
	events chan any
	topics map[string]struct{}
}

type WebSocketNotificationHub struct {
	mutex     sync.Mutex
	listeners map[string][]Listener
	outboxes  map[Listener]*outbox
}

func NewNotificationHub() *WebSocketNotificationHub {
	return &WebSocketNotificationHub{
		listeners: make(map[string][]Listener),
		outboxes:  make(map[Listener]*outbox),
	}
}

func (hub *WebSocketNotificationHub) RegisterListener(topic string, conn Listener) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	box, ok := hub.outboxes[conn]
	if !ok {
		box = &outbox{events: make(chan any, outboxSize), topics: map[string]struct{}{}}
		hub.outboxes[conn] = box
		go hub.drain(conn, box)
	}
	if _, ok := box.topics[topic]; ok {
		return
	}
	box.topics[topic] = struct{}{}
	hub.listeners[topic] = append(hub.listeners[topic], conn)
}

func (hub *WebSocketNotificationHub) UnregisterListener(topic string, conn Listener) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	hub.remove(topic, conn)
}

func (hub *WebSocketNotificationHub) ListenerCount(topic string) int {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	return len(hub.listeners[topic])
}

// Publish queues event for every listener of targetTopic and returns without
// waiting for any write. A listener whose queue is full is dropped.
func (hub *WebSocketNotificationHub) Publish(targetTopic string, event any) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	for _, listener := range append([]Listener(nil), hub.listeners[targetTopic]...) {
		if !hub.enqueue(listener, event) {
			log.Debug().Str("topic", targetTopic).Msg("Dropping stalled websocket listener")
			hub.drop(listener)
		}
	}
}

// Send queues event for a single registered listener, after anything already
// published to it.
func (hub *WebSocketNotificationHub) Send(conn Listener, event any) error {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	if _, ok := hub.outboxes[conn]; !ok {
		return ErrListenerGone
	}
	if !hub.enqueue(conn, event) {
		hub.drop(conn)
		return ErrListenerGone
	}
	return nil
}

func (hub *WebSocketNotificationHub) enqueue(conn Listener, event any) bool {
	box, ok := hub.outboxes[conn]
	if !ok {
		return false
	}
	select {
	case box.events <- event:
		return true
	default:
		return false
	}
}

func (hub *WebSocketNotificationHub) drain(conn Listener, box *outbox) {
	for event := range box.events {
		if err := conn.WriteJSON(event); err != nil {
			log.Debug().Err(err).Msg("Dropping websocket listener")
			hub.mutex.Lock()
			if hub.outboxes[conn] == box {
				hub.drop(conn)
			}
			hub.mutex.Unlock()
			return
		}
	}
}

// drop removes conn from every topic. Callers hold the mutex.
func (hub *WebSocketNotificationHub) drop(conn Listener) {
	box, ok := hub.outboxes[conn]
	if !ok {
		return
	}
	for topic := range box.topics {
		hub.remove(topic, conn)
	}
}

func (hub *WebSocketNotificationHub) remove(topic string, conn Listener) {
	current := hub.listeners[topic]
	for i, listener := range current {
		if listener == conn {
			current = append(current[:i], current[i+1:]...)
			break
		}
	}
	if len(current) == 0 {
		delete(hub.listeners, topic)
	} else {
		hub.listeners[topic] = current
	}

	box, ok := hub.outboxes[conn]
	if !ok {
		return
	}
	delete(box.topics, topic)
	if len(box.topics) == 0 {
		delete(hub.outboxes, conn)
		close(box.events)
	}
}
