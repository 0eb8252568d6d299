package pipeline

import "fmt"

// OutcomeState is the terminal state of one load.
type OutcomeState int

const (
	LoadCompleted OutcomeState = iota
	LoadCancelled
	LoadFailed
)

// Outcome is the terminal signal of a load. Cancellation is not a failure:
// Err is set only for LoadFailed.
type Outcome struct {
	State OutcomeState
	Err   error
}

func (o Outcome) String() string {
	switch o.State {
	case LoadCompleted:
		return "completed"
	case LoadCancelled:
		return "cancelled"
	case LoadFailed:
		return fmt.Sprintf("failed: %v", o.Err)
	}
	return "unknown"
}

func completed() Outcome       { return Outcome{State: LoadCompleted} }
func cancelled() Outcome       { return Outcome{State: LoadCancelled} }
func failed(err error) Outcome { return Outcome{State: LoadFailed, Err: err} }

// Consumer receives one load's results: the total once at load start, then
// batches in strict source order with a running loaded counter, then exactly
// one terminal signal. Batches already delivered stay valid whatever the
// terminal state.
type Consumer[T any] interface {
	Begin(total int)
	Deliver(batch []T, loaded int)
	End(outcome Outcome)
}

// ConsumerFuncs adapts plain functions to Consumer. Nil fields are ignored.
type ConsumerFuncs[T any] struct {
	OnBegin   func(total int)
	OnDeliver func(batch []T, loaded int)
	OnEnd     func(outcome Outcome)
}

func (c ConsumerFuncs[T]) Begin(total int) {
	if c.OnBegin != nil {
		c.OnBegin(total)
	}
}

func (c ConsumerFuncs[T]) Deliver(batch []T, loaded int) {
	if c.OnDeliver != nil {
		c.OnDeliver(batch, loaded)
	}
}

func (c ConsumerFuncs[T]) End(outcome Outcome) {
	if c.OnEnd != nil {
		c.OnEnd(outcome)
	}
}
