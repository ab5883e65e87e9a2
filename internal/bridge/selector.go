package bridge

import "sync"

// Selector chooses one bridge out of the fetched candidates. previous is the
// bridge that was in use before a reload, or nil. It returns false when no
// candidate is usable.
type Selector func(candidates []Configuration, previous *Configuration) (Configuration, bool)

// NewRoundRobinSelector returns a Selector that walks the candidate list in
// order across calls and skips previous when there is an alternative. The
// returned Selector is safe for concurrent use.
func NewRoundRobinSelector() Selector {
	var mu sync.Mutex
	next := 0
	return func(candidates []Configuration, previous *Configuration) (Configuration, bool) {
		if len(candidates) == 0 {
			return Configuration{}, false
		}
		mu.Lock()
		defer mu.Unlock()
		for range candidates {
			c := candidates[next%len(candidates)]
			next++
			if previous == nil || c != *previous || len(candidates) == 1 {
				return c, true
			}
		}
		// Every candidate equals previous.
		return *previous, true
	}
}
