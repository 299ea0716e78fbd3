// Package ids provides the monotonic identifier sequences owned by one
// compilation.
package ids

// Sequence hands out strictly increasing identifiers starting at 1.
// The zero value is ready to use. A Sequence is not safe for concurrent use;
// it belongs to a single compilation.
type Sequence struct {
	last uint64
}

// Next returns the next identifier.
func (s *Sequence) Next() uint64 {
	s.last++
	return s.last
}

// Last returns the most recently issued identifier, or 0 if none was issued.
func (s *Sequence) Last() uint64 { return s.last }
