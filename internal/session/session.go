// Package session owns per-session UI state: the cached canonical sequence,
// the station it belongs to, and the current theme, language, and model mode.
//
// Stale fetch protection uses a monotonically increasing request sequence:
// each fetch takes a ticket before issuing the request, and its result is
// applied only if no newer ticket has been issued since. Last write wins by
// request identity, not completion order.
package session

import (
	"sync"

	"github.com/geowatch/chartreader/internal/domain"
)

// Defaults applied to a fresh session.
const (
	DefaultTheme     = "light"
	DefaultLanguage  = "en"
	DefaultModelMode = "moondream"
)

// Snapshot is a read-only copy of the cached fetch result.
type Snapshot struct {
	StationCode string
	Series      domain.Series
	Raw         []domain.RawRecord
}

// State holds session state behind a mutex. The zero value is not usable;
// call New.
type State struct {
	mu sync.Mutex

	stationCode string
	series      domain.Series
	raw         []domain.RawRecord
	hasData     bool

	theme     string
	language  string
	modelMode string

	issued  uint64 // last ticket handed out
	applied uint64 // ticket of the currently cached result
}

// New creates a session with default theme, language, and model mode.
func New() *State {
	return &State{
		theme:     DefaultTheme,
		language:  DefaultLanguage,
		modelMode: DefaultModelMode,
	}
}

// BeginFetch issues a ticket for a new fetch. Issuing a ticket supersedes
// every in-flight fetch with a lower ticket.
func (s *State) BeginFetch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return s.issued
}

// ApplyFetch caches a fetch result if its ticket is still the latest issued.
// Returns false when the result is stale and must be discarded.
func (s *State) ApplyFetch(ticket uint64, stationCode string, series domain.Series, raw []domain.RawRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticket != s.issued {
		return false
	}

	s.stationCode = stationCode
	s.series = series
	s.raw = raw
	s.hasData = true
	s.applied = ticket
	return true
}

// Cached returns the current fetch result. ok is false when no fetch has
// been applied yet.
func (s *State) Cached() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasData {
		return Snapshot{}, false
	}
	return Snapshot{StationCode: s.stationCode, Series: s.series, Raw: s.raw}, true
}

// SetTheme records the active chart theme.
func (s *State) SetTheme(theme string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = theme
}

// Theme returns the active chart theme.
func (s *State) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

// SetLanguage records the response language tag.
func (s *State) SetLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
}

// Language returns the response language tag.
func (s *State) Language() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.language
}

// SetModelMode records the selected model mode key.
func (s *State) SetModelMode(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modelMode = mode
}

// ModelMode returns the selected model mode key.
func (s *State) ModelMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modelMode
}
