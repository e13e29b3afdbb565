// Package scroll keeps a scrolling region pinned to its bottom edge while
// content grows, unless the user has scrolled away.
package scroll

// DefaultThreshold is the distance from the bottom still counted as "at bottom".
const DefaultThreshold = 24

// Region is a scrollable area measured in any consistent unit (pixels, lines).
type Region interface {
	ScrollHeight() int
	ClientHeight() int
	ScrollTop() int
	SetScrollTop(top int)
}

// Option configures a Sticky controller.
type Option func(*Sticky)

// WithThreshold sets the at-bottom threshold.
func WithThreshold(threshold int) Option {
	return func(s *Sticky) { s.threshold = threshold }
}

// Sticky observes a region and re-pins it to the bottom after content
// changes while the user is at the bottom. The jump is immediate.
type Sticky struct {
	region    Region
	threshold int
	stick     bool
	deps      []any
}

// NewSticky measures region once and pins it if it starts at the bottom.
func NewSticky(region Region, opts ...Option) *Sticky {
	s := &Sticky{region: region, threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(s)
	}
	s.stick = s.atBottom()
	if s.stick {
		s.pin()
	}
	return s
}

// StickToBottom reports whether the region is currently pinned.
func (s *Sticky) StickToBottom() bool {
	return s.stick
}

// Distance returns how far the viewport is from the bottom edge.
func (s *Sticky) Distance() int {
	return s.region.ScrollHeight() - s.region.ScrollTop() - s.region.ClientHeight()
}

func (s *Sticky) atBottom() bool {
	return s.Distance() <= s.threshold
}

// OnScroll re-measures after the user (or anything else) scrolled.
// Returning to the bottom area re-pins fully.
func (s *Sticky) OnScroll() {
	was := s.stick
	s.stick = s.atBottom()
	if s.stick && !was {
		s.pin()
	}
}

// Track compares deps with the values from the previous call and, when any
// differ, reacts as to a content change. Values must be comparable.
func (s *Sticky) Track(deps ...any) {
	if s.deps != nil && equalDeps(s.deps, deps) {
		return
	}
	s.deps = append(s.deps[:0:0], deps...)
	s.Changed()
}

// Changed reacts to new content: pinned regions jump to the bottom, others
// keep the user's position.
func (s *Sticky) Changed() {
	if s.stick {
		s.pin()
	}
}

func (s *Sticky) pin() {
	top := s.region.ScrollHeight() - s.region.ClientHeight()
	if top < 0 {
		top = 0
	}
	s.region.SetScrollTop(top)
}

func equalDeps(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
