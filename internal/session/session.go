// Package session holds comparison sessions: one immutable baseline per
// session, projected against by any number of concurrent comparisons.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/iter"

	"github.com/signalsfoundry/globe-scale/core"
	"github.com/signalsfoundry/globe-scale/internal/logging"
	"github.com/signalsfoundry/globe-scale/kb"
	"github.com/signalsfoundry/globe-scale/model"
)

var (
	// ErrSessionNotFound indicates the session ID is unknown.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionInvalid indicates a malformed session request.
	ErrSessionInvalid = errors.New("invalid session")
	// ErrModeNotFound is re-exported so callers need not import kb.
	ErrModeNotFound = kb.ErrModeNotFound
)

// DefaultFitHeadroom scales the required baseline length applied by Fit.
// The limit is inclusive, so landing exactly on it would still be too large.
const DefaultFitHeadroom = 0.999

const (
	maxIDLength    = 128
	maxFitAttempts = 3
)

// Session is one comparison session. It is a value; the store replaces it
// wholesale and never mutates a stored Session.
type Session struct {
	ID            string        `json:"id"`
	Mode          model.Mode    `json:"mode"`
	Baseline      core.Baseline `json:"baseline"`
	EstablishedAt time.Time     `json:"established_at"`
}

// Comparison is the outcome of projecting one target value.
type Comparison struct {
	Value float64 `json:"value"`
	core.ProjectionResult
	// Degenerate marks projections with nothing to draw: a degenerate
	// baseline or a non-positive, non-finite target.
	Degenerate bool             `json:"degenerate"`
	Ring       []model.GeoPoint `json:"ring,omitempty"`
}

// Outcome classifies c for metrics and logs.
func (c Comparison) Outcome() string {
	switch {
	case c.Degenerate:
		return "degenerate"
	case c.TooLarge:
		return "too_large"
	default:
		return "fits"
	}
}

// CompareRequest describes a batch of targets against one session.
type CompareRequest struct {
	Targets  []float64
	Center   model.GeoPoint
	Segments int
	WithRing bool
}

// FitResult reports what Fit did.
type FitResult struct {
	Session    Session    `json:"session"`
	Comparison Comparison `json:"comparison"`
	Adjusted   bool       `json:"adjusted"`
}

// RingSource generates point rings, possibly from a cache.
type RingSource interface {
	Points(ctx context.Context, center model.GeoPoint, radiusMeters float64, segments int) []model.GeoPoint
}

// MetricsRecorder receives session-level counts.
type MetricsRecorder interface {
	ObserveProjection(mode, outcome string)
	ObserveFraming(antipodal bool)
	SetActiveSessions(n int)
}

type directRings struct{}

func (directRings) Points(_ context.Context, center model.GeoPoint, radiusMeters float64, segments int) []model.GeoPoint {
	return core.CirclePoints(center, radiusMeters, segments)
}

// Store coordinates sessions, the mode table and the active framer.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]Session
	lastUsed map[string]time.Time

	modes  *kb.ModeTable
	framer atomic.Pointer[core.Framer]

	rings       RingSource
	log         logging.Logger
	metrics     MetricsRecorder
	segments    int
	maxParallel int
	headroom    float64
	now         func() time.Time
}

// Option customises Store construction.
type Option func(*Store)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithRingSource replaces direct ring generation, typically with a cache.
func WithRingSource(r RingSource) Option {
	return func(s *Store) {
		if r != nil {
			s.rings = r
		}
	}
}

// WithFramer sets the initial framer.
func WithFramer(f *core.Framer) Option {
	return func(s *Store) {
		if f != nil {
			s.framer.Store(f)
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// WithDefaultSegments sets the ring resolution used when a request leaves
// segments unset.
func WithDefaultSegments(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.segments = core.ClampSegments(n)
		}
	}
}

// WithMaxParallel bounds the goroutines one Compare call may use.
func WithMaxParallel(n int) Option {
	return func(s *Store) {
		s.maxParallel = n
	}
}

// WithFitHeadroom overrides DefaultFitHeadroom. Values outside (0, 1] are
// ignored.
func WithFitHeadroom(h float64) Option {
	return func(s *Store) {
		if h > 0 && h <= 1 {
			s.headroom = h
		}
	}
}

// NewStore builds a Store over modes. A nil table uses the built-in modes.
func NewStore(modes *kb.ModeTable, opts ...Option) *Store {
	if modes == nil {
		modes = kb.NewDefaultModeTable()
	}
	s := &Store{
		sessions: make(map[string]Session),
		lastUsed: make(map[string]time.Time),
		modes:    modes,
		rings:    directRings{},
		log:      logging.Noop(),
		segments: core.DefaultSegments,
		headroom: DefaultFitHeadroom,
		now:      time.Now,
	}
	s.framer.Store(core.NewFramer(core.DefaultFramerConfig()))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Modes exposes the mode table backing the store.
func (s *Store) Modes() *kb.ModeTable {
	return s.modes
}

// Framer returns the active framer.
func (s *Store) Framer() *core.Framer {
	return s.framer.Load()
}

// SetFramer swaps the active framer. In-flight framings finish with the
// framer they started with.
func (s *Store) SetFramer(f *core.Framer) {
	if f == nil {
		return
	}
	s.framer.Store(f)
}

// Establish creates or replaces session id with a fresh baseline. An empty
// id is replaced by a generated one. Degenerate baselines are accepted;
// their comparisons report Degenerate.
func (s *Store) Establish(ctx context.Context, id, mode string, referenceValue, referenceLengthMeters float64) (Session, error) {
	if err := validateID(id); err != nil {
		return Session{}, err
	}
	m, err := s.modes.GetMode(mode)
	if err != nil {
		return Session{}, fmt.Errorf("establish session: %w", err)
	}
	if id == "" {
		id = uuid.NewString()
	}

	sess := Session{
		ID:            id,
		Mode:          m,
		Baseline:      core.SetBaseline(referenceValue, referenceLengthMeters, m.ScaleKind),
		EstablishedAt: s.now().UTC(),
	}
	s.put(sess)

	log := logging.FromContext(ctx, s.log)
	log.Info(ctx, "baseline established",
		logging.String("session_id", id),
		logging.String("mode", m.Name),
		logging.Float("reference_value", referenceValue),
		logging.Float("reference_length_m", referenceLengthMeters),
		logging.Bool("degenerate", !sess.Baseline.Valid()),
	)
	return sess, nil
}

// Get returns session id.
func (s *Store) Get(id string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Reset drops session id.
func (s *Store) Reset(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.sessions[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	delete(s.sessions, id)
	delete(s.lastUsed, id)
	n := len(s.sessions)
	s.mu.Unlock()

	s.setActive(n)
	logging.FromContext(ctx, s.log).Info(ctx, "session reset", logging.String("session_id", id))
	return nil
}

// Expire drops every session last used before cutoff and returns their IDs
// sorted.
func (s *Store) Expire(ctx context.Context, cutoff time.Time) []string {
	s.mu.Lock()
	var expired []string
	for id, used := range s.lastUsed {
		if used.Before(cutoff) {
			delete(s.sessions, id)
			delete(s.lastUsed, id)
			expired = append(expired, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if len(expired) == 0 {
		return nil
	}
	sort.Strings(expired)
	s.setActive(n)
	logging.FromContext(ctx, s.log).Info(ctx, "sessions expired",
		logging.Int("count", len(expired)),
		logging.Int("remaining", n),
	)
	return expired
}

// Sessions returns every session sorted by ID.
func (s *Store) Sessions() []Session {
	s.mu.RLock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Compare projects every target against the session's baseline in
// parallel. Results keep the order of req.Targets. Drawable results get a
// ring when req.WithRing is set. Once ctx is done no further rings are
// built and Compare returns ctx.Err().
func (s *Store) Compare(ctx context.Context, id string, req CompareRequest) ([]Comparison, error) {
	sess, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.touch(id)

	segments := s.resolveSegments(req.Segments)

	mapper := iter.Mapper[float64, Comparison]{MaxGoroutines: s.maxParallel}
	results := mapper.Map(req.Targets, func(v *float64) Comparison {
		c := assess(sess, *v)
		if req.WithRing && c.Drawable() && ctx.Err() == nil {
			c.Ring = s.rings.Points(ctx, req.Center, c.RadiusMeters, segments)
		}
		return c
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log := logging.FromContext(ctx, s.log)
	for _, c := range results {
		outcome := c.Outcome()
		if s.metrics != nil {
			s.metrics.ObserveProjection(sess.Mode.Name, outcome)
		}
		if c.TooLarge {
			log.Debug(ctx, "comparison wraps past the antipode",
				logging.String("session_id", sess.ID),
				logging.Float("value", c.Value),
				logging.Float("radius_m", c.RadiusMeters),
				logging.Float("required_baseline_length_m", c.RequiredBaselineLengthMeters),
			)
		}
	}
	return results, nil
}

// Fit makes targetValue drawable by re-anchoring the session at the
// required baseline length, scaled by the fit headroom. Targets that
// already fit leave the session untouched.
//
// The refitted baseline is stored only if the session still holds the
// baseline Fit started from. A session re-established meanwhile is fitted
// again from its new baseline; a session reset meanwhile stays gone.
func (s *Store) Fit(ctx context.Context, id string, targetValue float64) (FitResult, error) {
	for attempt := 0; ; attempt++ {
		res, stale, err := s.fitOnce(id, targetValue)
		if !stale {
			if err == nil && res.Adjusted {
				logging.FromContext(ctx, s.log).Info(ctx, "baseline refitted",
					logging.String("session_id", id),
					logging.Float("value", targetValue),
					logging.Float("reference_length_m", res.Session.Baseline.ReferenceLengthMeters),
				)
			}
			return res, err
		}
		if attempt+1 >= maxFitAttempts {
			return FitResult{}, fmt.Errorf("%w: session %q kept changing during fit", ErrSessionInvalid, id)
		}
	}
}

// fitOnce reports stale when the session was replaced between reading it
// and storing the refitted baseline.
func (s *Store) fitOnce(id string, targetValue float64) (FitResult, bool, error) {
	sess, err := s.Get(id)
	if err != nil {
		return FitResult{}, false, err
	}
	s.touch(id)

	c := assess(sess, targetValue)
	if c.Degenerate {
		return FitResult{}, false, fmt.Errorf("%w: value %v has no projection in session %q", ErrSessionInvalid, targetValue, id)
	}
	if !c.TooLarge {
		return FitResult{Session: sess, Comparison: c}, false, nil
	}
	if c.RequiredBaselineLengthMeters <= 0 {
		return FitResult{}, false, fmt.Errorf("%w: value %v cannot be fitted in session %q", ErrSessionInvalid, targetValue, id)
	}

	fitted := sess
	fitted.Baseline = sess.Baseline.WithReferenceLength(c.RequiredBaselineLengthMeters * s.headroom)
	now := s.now()
	fitted.EstablishedAt = now.UTC()

	s.mu.Lock()
	cur, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return FitResult{}, false, fmt.Errorf("%w: %q", ErrSessionNotFound, id)
	}
	if cur.Baseline != sess.Baseline || !cur.EstablishedAt.Equal(sess.EstablishedAt) {
		s.mu.Unlock()
		return FitResult{}, true, nil
	}
	s.sessions[id] = fitted
	s.lastUsed[id] = now
	s.mu.Unlock()

	return FitResult{Session: fitted, Comparison: assess(fitted, targetValue), Adjusted: true}, false, nil
}

// Ring returns the point ring for a circle through the store's ring source.
// segments <= 0 selects the store default; values above core.MaxSegments
// are capped.
func (s *Store) Ring(ctx context.Context, center model.GeoPoint, radiusMeters float64, segments int) []model.GeoPoint {
	return s.rings.Points(ctx, center, radiusMeters, s.resolveSegments(segments))
}

func (s *Store) resolveSegments(segments int) int {
	if segments <= 0 {
		return s.segments
	}
	return core.ClampSegments(segments)
}

// Frame places the camera for circle with the active framer.
func (s *Store) Frame(circle model.Circle, fovDegrees float64) model.CameraPlacement {
	p := s.Framer().Frame(circle, fovDegrees)
	if s.metrics != nil {
		s.metrics.ObserveFraming(p.Antipodal)
	}
	return p
}

func (s *Store) put(sess Session) {
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.lastUsed[sess.ID] = s.now()
	n := len(s.sessions)
	s.mu.Unlock()
	s.setActive(n)
}

func (s *Store) touch(id string) {
	now := s.now()
	s.mu.Lock()
	if _, ok := s.sessions[id]; ok {
		s.lastUsed[id] = now
	}
	s.mu.Unlock()
}

func (s *Store) setActive(n int) {
	if s.metrics != nil {
		s.metrics.SetActiveSessions(n)
	}
}

func assess(sess Session, value float64) Comparison {
	r := core.Assess(sess.Baseline, value, sess.Mode.LengthIsRadius)
	return Comparison{
		Value:            value,
		ProjectionResult: r,
		Degenerate:       !r.TooLarge && (r.LengthMeters <= 0 || math.IsNaN(r.LengthMeters)),
	}
}

func validateID(id string) error {
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: id longer than %d bytes", ErrSessionInvalid, maxIDLength)
	}
	if strings.ContainsAny(id, " \t\r\n/") {
		return fmt.Errorf("%w: id %q contains whitespace or '/'", ErrSessionInvalid, id)
	}
	return nil
}
