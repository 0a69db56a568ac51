package probe

import "context"

// Result is the outcome of one probe against one target.
//
// StatusCode is the HTTP status when available and 0 for transport or DNS
// errors. Name is the checker that produced it.
type Result struct {
	Name       string
	Success    bool
	Message    string
	StatusCode int
	LatencyMS  float64
}

// Checker is implemented by any service check (HTTP, DNS, ...). Name is
// used as the reporting entity.
type Checker interface {
	Name() string
	Check(ctx context.Context, target string) Result
}
