package order

import "fmt"

// State implements the state pattern for order lifecycle transitions.
// Forward moves are permissive; only cancellation is constrained.
type State interface {
	Status() Status
	Advance(o *Order, to Status) (State, error)
	Cancel(o *Order) (State, error)
}

func stateFor(s Status) State {
	switch s {
	case StatusProcessing:
		return processingState{}
	case StatusShipped:
		return shippedState{}
	case StatusDelivered:
		return deliveredState{}
	case StatusCancelled:
		return cancelledState{}
	default:
		return pendingState{}
	}
}

func advance(to Status) (State, error) {
	if _, err := ParseStatus(string(to)); err != nil {
		return nil, err
	}
	return stateFor(to), nil
}

type pendingState struct{}

func (pendingState) Status() Status { return StatusPending }

func (pendingState) Advance(_ *Order, to Status) (State, error) { return advance(to) }

func (pendingState) Cancel(*Order) (State, error) { return cancelledState{}, nil }

type processingState struct{}

func (processingState) Status() Status { return StatusProcessing }

func (processingState) Advance(_ *Order, to Status) (State, error) { return advance(to) }

func (processingState) Cancel(*Order) (State, error) { return cancelledState{}, nil }

type shippedState struct{}

func (shippedState) Status() Status { return StatusShipped }

func (shippedState) Advance(_ *Order, to Status) (State, error) { return advance(to) }

func (shippedState) Cancel(*Order) (State, error) {
	return nil, fmt.Errorf("%w: cannot cancel an order that has been shipped", ErrInvalidTransition)
}

type deliveredState struct{}

func (deliveredState) Status() Status { return StatusDelivered }

func (deliveredState) Advance(_ *Order, to Status) (State, error) { return advance(to) }

func (deliveredState) Cancel(*Order) (State, error) {
	return nil, fmt.Errorf("%w: cannot cancel an order that has been delivered", ErrInvalidTransition)
}

type cancelledState struct{}

func (cancelledState) Status() Status { return StatusCancelled }

// Advance refuses to reopen a cancelled order; its stock has already been released.
func (cancelledState) Advance(*Order, Status) (State, error) {
	return nil, fmt.Errorf("%w: order is cancelled", ErrInvalidTransition)
}

func (cancelledState) Cancel(*Order) (State, error) {
	return nil, fmt.Errorf("%w: order is already cancelled", ErrInvalidTransition)
}
