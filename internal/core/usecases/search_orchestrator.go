package usecases

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/samirrijal/miniguide/internal/core/domain"
	"github.com/samirrijal/miniguide/internal/core/ports"
	"github.com/samirrijal/miniguide/internal/pkg/metrics"
)

const (
	defaultDebounce       = 200 * time.Millisecond
	defaultMinQueryLength = 2
	defaultSearchLimit    = 8
	defaultLookupTimeout  = 8 * time.Second
)

// SearchOptions configures a SearchOrchestrator. Zero values pick defaults.
type SearchOptions struct {
	Debounce       time.Duration
	MinQueryLength int
	Limit          int
	LookupTimeout  time.Duration
	// Popular is surfaced for an empty, focused input.
	Popular []domain.PlaceCandidate
	Clock   Clock
	// Spawn runs a lookup once its debounce timer fired. Defaults to running
	// it inline on the timer goroutine.
	Spawn  func(func())
	Logger *slog.Logger
	// OnResults receives every published result set. It is called with the
	// orchestrator lock held and must not call back into the orchestrator.
	OnResults func(domain.SearchResults)
}

// SearchOrchestrator debounces keystrokes, tiers lookups over a primary and a
// fallback source, and publishes only results for the latest query.
type SearchOrchestrator struct {
	primary  ports.GeoSource
	fallback ports.GeoSource
	opts     SearchOptions
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	seq     uint64
	text    string
	focused bool
	timer   Timer
	results domain.SearchResults
	closed  bool
}

// NewSearchOrchestrator wires a primary (network) source and a fallback that
// is used whenever the primary fails.
func NewSearchOrchestrator(primary, fallback ports.GeoSource, opts SearchOptions) *SearchOrchestrator {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	if opts.MinQueryLength <= 0 {
		opts.MinQueryLength = defaultMinQueryLength
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultSearchLimit
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = defaultLookupTimeout
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Spawn == nil {
		opts.Spawn = func(f func()) { f() }
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SearchOrchestrator{
		primary:  primary,
		fallback: fallback,
		opts:     opts,
		log:      log.With("component", "search"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// QueryChanged records one edit of the input and schedules a lookup if needed.
func (s *SearchOrchestrator) QueryChanged(text string) domain.SearchQuery {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	q := domain.SearchQuery{Text: text, Seq: s.seq}
	s.text = text
	s.stopTimerLocked()
	if s.closed {
		return q
	}

	n := utf8.RuneCountInString(strings.TrimSpace(text))
	switch {
	case n == 0:
		if s.focused {
			s.publishPopularLocked(q)
		} else {
			s.publishLocked(domain.SearchResults{Query: q})
		}
	case n < s.opts.MinQueryLength:
		s.publishLocked(domain.SearchResults{Query: q})
	default:
		s.timer = s.opts.Clock.AfterFunc(s.opts.Debounce, func() { s.fire(q) })
	}
	return q
}

// SetFocus shows or hides the suggestion list. Blur never cancels a pending
// lookup; its results are stored and shown on the next focus.
func (s *SearchOrchestrator) SetFocus(focused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.focused == focused {
		return
	}
	s.focused = focused

	if !focused {
		if s.results.Open {
			r := s.results
			r.Open = false
			s.publishLocked(r)
		}
		return
	}

	q := domain.SearchQuery{Text: s.text, Seq: s.seq}
	if strings.TrimSpace(s.text) == "" {
		s.publishPopularLocked(q)
		return
	}
	if s.results.Query.Seq == s.seq && len(s.results.Candidates) > 0 {
		r := s.results
		r.Open = true
		s.publishLocked(r)
	}
}

// Select commits the candidate name as query text, drops any pending or
// in-flight lookup, and closes the list. It issues no lookup.
func (s *SearchOrchestrator) Select(c domain.PlaceCandidate) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.text = c.Name
	s.stopTimerLocked()
	if !s.closed {
		s.publishLocked(domain.SearchResults{Query: domain.SearchQuery{Text: c.Name, Seq: s.seq}})
	}
	return c.Name
}

// Results returns the last published result set.
func (s *SearchOrchestrator) Results() domain.SearchResults {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.results
	r.Candidates = append([]domain.PlaceCandidate(nil), s.results.Candidates...)
	return r
}

// Text returns the current input text.
func (s *SearchOrchestrator) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Close stops the pending timer and turns every later completion into a no-op.
func (s *SearchOrchestrator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimerLocked()
	s.cancel()
}

func (s *SearchOrchestrator) fire(q domain.SearchQuery) {
	s.mu.Lock()
	live := !s.closed && q.Seq == s.seq
	if live {
		s.timer = nil
	}
	s.mu.Unlock()
	if !live {
		return
	}
	s.opts.Spawn(func() { s.lookup(q) })
}

func (s *SearchOrchestrator) lookup(q domain.SearchQuery) {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.LookupTimeout)
	defer cancel()

	source := domain.SourceLive
	cands, err := s.primary.Search(ctx, q.Text, s.opts.Limit)
	if err != nil {
		s.log.Warn("primary place source failed, using local fallback",
			"query", q.Text, "seq", q.Seq, "error", err)
		metrics.SearchFallbacks.Inc()
		source = domain.SourceLocalFallback
		// the fallback never fails
		cands, _ = s.fallback.Search(ctx, q.Text, s.opts.Limit)
	}

	tagged := make([]domain.PlaceCandidate, len(cands))
	for i, c := range cands {
		tagged[i] = c.WithSource(source)
	}
	s.apply(q, tagged, source)
}

func (s *SearchOrchestrator) apply(q domain.SearchQuery, cands []domain.PlaceCandidate, source domain.SourceKind) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if q.Seq != s.seq {
		metrics.SearchStaleDiscards.Inc()
		s.log.Debug("discarding stale search results",
			"query", q.Text, "seq", q.Seq, "latest", s.seq, "error", domain.ErrStaleResult)
		return
	}
	metrics.SearchLookups.WithLabelValues(string(source)).Inc()
	s.publishLocked(domain.SearchResults{
		Query:      q,
		Candidates: cands,
		Source:     source,
		Open:       s.focused,
	})
}

func (s *SearchOrchestrator) publishPopularLocked(q domain.SearchQuery) {
	popular := make([]domain.PlaceCandidate, len(s.opts.Popular))
	for i, c := range s.opts.Popular {
		popular[i] = c.WithSource(domain.SourcePopular)
	}
	metrics.SearchLookups.WithLabelValues(string(domain.SourcePopular)).Inc()
	s.publishLocked(domain.SearchResults{
		Query:      q,
		Candidates: popular,
		Source:     domain.SourcePopular,
		Open:       true,
	})
}

func (s *SearchOrchestrator) publishLocked(r domain.SearchResults) {
	s.results = r
	if s.opts.OnResults != nil {
		s.opts.OnResults(r)
	}
}

func (s *SearchOrchestrator) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
