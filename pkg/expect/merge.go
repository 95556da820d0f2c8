package expect

import "iter"

// Strategy decides how a set of outputs combines into one.
type Strategy int

const (
	// MergeAll passes when every output passes. It passes when there are none.
	MergeAll Strategy = iota
	// MergeAny passes when at least one output passes. It fails when there are none.
	MergeAny
)

func (s Strategy) String() string {
	if s == MergeAny {
		return "any"
	}
	return "all"
}

// decisive reports whether an output with this status settles the merge.
func (s Strategy) decisive(st Status) bool {
	switch s {
	case MergeAny:
		return st == StatusPass
	default:
		return st == StatusFail
	}
}

func (s Strategy) vacuous(cx *Context) *Result {
	if s == MergeAny {
		return cx.Fail("no outputs")
	}
	return cx.Pass()
}

// Merge combines outputs under strategy.
//
// Synchronous outputs are consumed lazily in order and the first decisive one
// is returned, so outputs after it are never produced. Otherwise the last
// output seen is returned, or a vacuous result when there were none. Pending
// outputs are set aside; if any remain, the result is a *Pending that checks
// each child as it resolves, in whatever order they complete.
func Merge(cx *Context, strategy Strategy, outputs iter.Seq[Output]) Output {
	var (
		last    Output
		pending []*Pending
	)
	for out := range outputs {
		out = settle(out)
		if p, ok := out.(*Pending); ok {
			pending = append(pending, p)
			continue
		}
		if strategy.decisive(out.Status()) {
			return out
		}
		last = out
	}

	if len(pending) == 0 {
		if last == nil {
			return strategy.vacuous(cx)
		}
		return last
	}

	m := &pendingMerge{cx: cx, strategy: strategy, last: last, children: pending}
	return newPending(m.poll, m.wakers)
}

type pendingMerge struct {
	cx       *Context
	strategy Strategy
	last     Output
	children []*Pending
}

func (m *pendingMerge) poll() (Output, bool) {
	remaining := m.children[:0]
	for _, child := range m.children {
		out, ok := child.step()
		if !ok {
			remaining = append(remaining, child)
			continue
		}
		out = settle(out)
		if p, ok := out.(*Pending); ok {
			remaining = append(remaining, p)
			continue
		}
		if m.strategy.decisive(out.Status()) {
			// Unfinished children are abandoned.
			m.children = nil
			return out, true
		}
		m.last = out
	}
	m.children = remaining
	if len(remaining) > 0 {
		return nil, false
	}
	if m.last == nil {
		return m.strategy.vacuous(m.cx), true
	}
	return m.last, true
}

func (m *pendingMerge) wakers() []<-chan struct{} {
	var chans []<-chan struct{}
	for _, child := range m.children {
		chans = append(chans, child.waitOn()...)
	}
	return chans
}
