package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Event types.
const (
	EventDetectionRun = "detection_run"
	EventCancelled    = "subscription_cancelled"
	EventSweep        = "sweep"
)

// Event is emitted after a detection run, a cancellation or a sweep.
type Event struct {
	ID             int64     `json:"id"`
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	UserID         string    `json:"user_id,omitempty"`
	SubscriptionID string    `json:"subscription_id,omitempty"`
	Status         string    `json:"status,omitempty"`
	Found          []string  `json:"found,omitempty"`
	Inserted       int       `json:"inserted,omitempty"`
	Finalized      int       `json:"finalized,omitempty"`
}

// visibleTo reports whether user may see ev.
func (ev Event) visibleTo(user string) bool {
	return ev.UserID == user
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.nextEventID++
	ev.ID = s.nextEventID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, sub := range s.subs {
		if !ev.visibleTo(sub.user) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) eventsFor(user string) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if ev.visibleTo(user) {
			out = append(out, ev)
		}
	}
	return out
}

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"events": s.eventsFor(UserFrom(r.Context()))})
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := make(chan Event, 16)
	id := s.addSubscriber(UserFrom(r.Context()), ch)
	defer s.removeSubscriber(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

type subscriber struct {
	user string
	ch   chan Event
}

func (s *Service) addSubscriber(user string, ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = subscriber{user: user, ch: ch}
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}

func (s *Service) subscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}
