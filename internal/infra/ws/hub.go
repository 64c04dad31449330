package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"counseling-platform/internal/infra/metrics"
)

// TopicCounsellorQueue is the shared topic counsellors subscribe to for
// queue-wide status change notifications.
const TopicCounsellorQueue = "counsellor_queue"

// ChatTopic names the per-chat broadcast topic.
func ChatTopic(chatID int64) string { return fmt.Sprintf("chat:%d", chatID) }

// Hub is the in-process pub/sub fan-out: topic name to subscriber set.
// Fan-out is fire-and-forget per subscriber; a client whose send buffer is
// full misses the frame (counted) rather than stalling the sender.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*Client]bool
}

func NewHub() *Hub {
	return &Hub{topics: make(map[string]map[*Client]bool)}
}

func (h *Hub) subscribe(topic string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.topics[topic]
	if set == nil {
		set = make(map[*Client]bool)
		h.topics[topic] = set
	}
	set[c] = true
}

// unsubscribeAll detaches the client from every topic it joined.
func (h *Hub) unsubscribeAll(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range c.topics {
		set := h.topics[topic]
		if set == nil {
			continue
		}
		delete(set, c)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
}

// Broadcast marshals the frame once and enqueues it to every subscriber of
// the topic without blocking.
func (h *Hub) Broadcast(topic string, frameType string, frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.topics[topic] {
		c.enqueue(data)
	}
	metrics.IncBroadcast(frameType)
}

// Subscribers reports the current subscriber count of a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
