package probe

import "context"

// MultiChecker runs several checkers against one target in order.
type MultiChecker struct {
	Checkers []Checker
}

func NewMultiChecker(checkers ...Checker) *MultiChecker {
	return &MultiChecker{Checkers: checkers}
}

func (m *MultiChecker) Run(ctx context.Context, target string) []Result {
	results := make([]Result, 0, len(m.Checkers))
	for _, c := range m.Checkers {
		r := c.Check(ctx, target)
		if r.Name == "" {
			r.Name = c.Name()
		}
		results = append(results, r)
	}
	return results
}
