package decode

// Decision is the outcome of the reuse rule.
type Decision int

const (
	// Reuse keeps the session and catches up with AdvanceTo.
	Reuse Decision = iota
	// Reopen closes the session and opens a fresh one at the target.
	Reopen
)

func (d Decision) String() string {
	if d == Reuse {
		return "reuse"
	}
	return "reopen"
}

// Decide chooses between reusing s and reopening for a request to decode
// p.Path at p.Start seconds. A nil session always reopens, and so does a
// request for another format or one whose Aspect or explicit size gives a
// different output size.
func Decide(s *Session, p Params, threshold float64) Decision {
	if s == nil || s.input == nil {
		return Reopen
	}
	if s.path != p.Path || s.format != p.Format {
		return Reopen
	}
	if w, h := s.sizeFor(p); w != s.width || h != s.height {
		return Reopen
	}
	tpts := s.ToPTS(p.Start)
	if tpts <= s.lastPTS {
		return Reopen
	}
	if tpts > s.lastPTS+s.ToPTS(threshold) {
		return Reopen
	}
	return Reuse
}

// NeedsReopen reports whether a request must open a fresh session.
func NeedsReopen(s *Session, p Params, threshold float64) bool {
	return Decide(s, p, threshold) == Reopen
}
