package mirror

// State is a phase of a download run.
type State string

const (
	StateAccelerated State = "accelerated"
	StateStandard    State = "standard"
	StateSucceeded   State = "succeeded"
	StateFailed      State = "failed"
)

// InitialState is Accelerated when acceleration is requested and available.
func InitialState(accelerate bool) State {
	if accelerate {
		return StateAccelerated
	}
	return StateStandard
}

// Next returns the state that follows a finished retry sequence. A failed
// accelerated sequence downgrades to Standard; a failed standard sequence
// is terminal.
func (s State) Next(ok bool) State {
	switch s {
	case StateAccelerated:
		if ok {
			return StateSucceeded
		}
		return StateStandard
	case StateStandard:
		if ok {
			return StateSucceeded
		}
		return StateFailed
	}

	return s
}

func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

func (s State) Accelerated() bool {
	return s == StateAccelerated
}
