// Package sequence rejects duplicate, reordered and replayed frames by
// tracking the highest sequence id accepted so far.
//
// The counter is 32 bits and never wraps on its own. Once a sender reaches
// the top of the range every further frame is stale until an operator calls
// Reset.
package sequence

import "go.uber.org/atomic"

// Verdict is the outcome of an admission check
type Verdict int

const (
	Accepted Verdict = iota
	Stale
)

func (v Verdict) String() string {
	if v == Accepted {
		return "accepted"
	}
	return "stale"
}

// Guard holds the last accepted sequence id. The zero value is ready to use
// and starts at 0, so id 0 is never accepted.
type Guard struct {
	last atomic.Uint32
}

// Admit accepts id only if it is strictly greater than the last accepted id.
// Safe for concurrent use; of two racing callers with the same id exactly
// one is accepted.
func (g *Guard) Admit(id uint32) Verdict {
	for {
		cur := g.last.Load()
		if id <= cur {
			return Stale
		}
		if g.last.CompareAndSwap(cur, id) {
			return Accepted
		}
	}
}

// Reset sets the last accepted id back to 0. It is an operator action and
// must not be reachable from the command channel.
func (g *Guard) Reset() {
	g.last.Store(0)
}

// Last returns the last accepted id
func (g *Guard) Last() uint32 {
	return g.last.Load()
}
