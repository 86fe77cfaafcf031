package domain

// ChannelState is the lifecycle state of the host channel.
type ChannelState string

// Channel states.
const (
	StateUninitialized ChannelState = "UNINITIALIZED"
	StateReady         ChannelState = "READY"
	StateActive        ChannelState = "ACTIVE"
	StateSubmitting    ChannelState = "SUBMITTING"
	StateTerminated    ChannelState = "TERMINATED"
)

// AllowedTransitions defines the valid channel state transitions.
// The key is the current state, and the value is a slice of valid target states.
var AllowedTransitions = map[ChannelState][]ChannelState{
	StateUninitialized: {
		StateReady,
		StateTerminated,
	},
	StateReady: {
		StateActive,
		StateTerminated,
	},
	StateActive: {
		StateSubmitting,
		StateTerminated,
	},
	StateSubmitting: {
		StateTerminated,
	},
	StateTerminated: {}, // Terminal state
}

// CanTransition checks if a transition from one state to another is allowed.
func CanTransition(from, to ChannelState) bool {
	allowed, exists := AllowedTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error if the transition is not allowed.
func ValidateTransition(from, to ChannelState) error {
	if !CanTransition(from, to) {
		return NewInvalidTransitionError(from, to)
	}
	return nil
}
