// Package gate decides when upstream data is stale and when a hardware push
// is due.
//
// The two intervals are independent: a tick may trigger a data refresh, a
// transport send, both, or neither. The store keeps the last successfully
// fetched records so a failed refresh degrades to stale-but-valid data
// instead of an empty panel.
package gate

import (
	"sync"
	"time"

	"github.com/inkduo/inkduo/frame"
)

// Gate tracks two independent "last performed at" timestamps against their
// intervals. The zero value of each timestamp means "never done", so both
// operations are due immediately after construction. State is not persisted
// across restarts.
type Gate struct {
	mu        sync.Mutex
	lastFetch time.Time
	lastSend  time.Time

	dataInterval time.Duration
	sendInterval time.Duration
}

// New returns a Gate with the given refresh intervals.
func New(dataInterval, sendInterval time.Duration) *Gate {
	return &Gate{
		dataInterval: dataInterval,
		sendInterval: sendInterval,
	}
}

// DataDue reports whether a data refresh is due at now.
func (g *Gate) DataDue(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastFetch.IsZero() || now.Sub(g.lastFetch) >= g.dataInterval
}

// SendDue reports whether a transport send is due at now.
func (g *Gate) SendDue(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastSend.IsZero() || now.Sub(g.lastSend) >= g.sendInterval
}

// MarkFetch records a completed data refresh attempt at now. Failed fetches
// are marked too: retrying on every tick would hammer the upstream API for
// the whole outage.
func (g *Gate) MarkFetch(now time.Time) {
	g.mu.Lock()
	g.lastFetch = now
	g.mu.Unlock()
}

// MarkSend records a completed transport send at now.
func (g *Gate) MarkSend(now time.Time) {
	g.mu.Lock()
	g.lastSend = now
	g.mu.Unlock()
}

// Store caches the most recent successfully fetched records. A fetch failure
// leaves the previous records in place; the placeholder is only ever seen
// when no fetch has succeeded since process start.
type Store struct {
	mu      sync.Mutex
	weather *frame.Weather
	events  []frame.Event
}

// SetWeather replaces the cached weather record.
func (s *Store) SetWeather(w frame.Weather) {
	s.mu.Lock()
	s.weather = &w
	s.mu.Unlock()
}

// SetEvents replaces the cached event list.
func (s *Store) SetEvents(events []frame.Event) {
	s.mu.Lock()
	s.events = append([]frame.Event(nil), events...)
	s.mu.Unlock()
}

// Weather returns the cached weather record, or the placeholder if nothing
// was ever cached.
func (s *Store) Weather() frame.Weather {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.weather == nil {
		return PlaceholderWeather
	}
	return *s.weather
}

// Events returns a copy of the cached event list. It is empty, not nil
// placeholder content, when nothing was ever cached: an empty calendar is a
// valid display state.
func (s *Store) Events() []frame.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]frame.Event(nil), s.events...)
}

// HasWeather reports whether a weather record was ever cached.
func (s *Store) HasWeather() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weather != nil
}

// PlaceholderWeather is displayed until the first successful fetch.
var PlaceholderWeather = frame.Weather{
	Description: "Weather data unavailable",
	Location:    "Unknown",
}
