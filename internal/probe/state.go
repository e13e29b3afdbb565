package probe

import "context"

// State of a connection test.
type State int

const (
	Idle State = iota
	Testing
	OK
	Fail
)

func (s State) String() string {
	switch s {
	case Testing:
		return "testing"
	case OK:
		return "ok"
	case Fail:
		return "fail"
	}
	return "idle"
}

// Status is the last known outcome of a connection test.
type Status struct {
	State      State
	Info       string
	HTTPStatus *int
	URL        string
}

// Checker asks the proxy for a health report.
type Checker interface {
	Health(ctx context.Context) (Report, error)
}

// Probe runs connection tests. A new test can start from any state.
type Probe struct {
	status Status
}

// Status returns the current status.
func (p *Probe) Status() Status {
	return p.status
}

// Begin enters the testing state, forgetting the previous outcome.
func (p *Probe) Begin() {
	p.status = Status{State: Testing}
}

// Finish records the outcome of a test started with Begin. A transport
// error fails the test with its message as the reason.
func (p *Probe) Finish(report Report, err error) Status {
	switch {
	case err != nil:
		p.status = Status{State: Fail, Info: err.Error()}
	case report.Reachable:
		p.status = Status{State: OK, Info: report.Message, HTTPStatus: report.HTTPStatus, URL: report.Resource}
	default:
		p.status = Status{State: Fail, Info: report.Message, HTTPStatus: report.HTTPStatus, URL: report.Resource}
	}
	return p.status
}

// Run performs one test. There are no retries.
func (p *Probe) Run(ctx context.Context, c Checker) Status {
	p.Begin()
	report, err := c.Health(ctx)
	return p.Finish(report, err)
}
