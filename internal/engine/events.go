package engine

import "log/slog"

// Event is a notable occurrence in the city.
type Event struct {
	Tick        uint64 `json:"tick"`
	Day         int    `json:"day"`
	Time        string `json:"time"`
	Category    string `json:"category"` // "construction", "demolition", "population", ...
	Description string `json:"description"`
}

// Subscribe returns a channel that receives every new event. Slow readers
// miss events rather than stall the tick.
func (s *Simulation) Subscribe() chan Event {
	ch := make(chan Event, 64)
	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()
	return ch
}

// Unsubscribe detaches and closes a channel returned by Subscribe.
func (s *Simulation) Unsubscribe(ch chan Event) {
	s.subMu.Lock()
	if _, ok := s.subscribers[ch]; ok {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.subMu.Unlock()
}

// RecentEvents returns up to n of the newest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	start := 0
	if n > 0 && len(s.Events) > n {
		start = len(s.Events) - n
	}
	out := make([]Event, len(s.Events)-start)
	copy(out, s.Events[start:])
	return out
}

func (s *Simulation) emit(category, description string) {
	e := Event{
		Tick:        s.Tick,
		Day:         s.Clock.Day(),
		Time:        s.Clock.TimeOfDay(),
		Category:    category,
		Description: description,
	}
	s.Events = append(s.Events, e)
	// Trim old events to prevent unbounded growth.
	if limit := s.Opts.MaxEvents; limit > 0 && len(s.Events) > limit {
		s.Events = s.Events[len(s.Events)-limit:]
	}
	slog.Debug("event", "category", category, "description", description)

	s.subMu.Lock()
	for ch := range s.subscribers {
		select {
		case ch <- e:
		default:
		}
	}
	s.subMu.Unlock()
}
