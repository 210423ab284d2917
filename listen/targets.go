package listen

// TargetState is the lifecycle state of a target.
type TargetState int

// Target lifecycle: PENDING → ADDED → CURRENT → REMOVING → REMOVED
const (
	TargetUnknown TargetState = iota
	TargetPending
	TargetAdded
	TargetCurrent
	TargetRemoving
	TargetRemoved
)

// String returns the state name
func (s TargetState) String() string {
	switch s {
	case TargetPending:
		return "PENDING"
	case TargetAdded:
		return "ADDED"
	case TargetCurrent:
		return "CURRENT"
	case TargetRemoving:
		return "REMOVING"
	case TargetRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// expected reports whether more frames for the target are still on their way.
func (s TargetState) expected() bool {
	return s == TargetPending || s == TargetAdded
}

type target struct {
	state         TargetState
	removalQueued bool
	// discard targets update state but their messages are never stored
	discard bool
	// done is set once the target's burst was drained; leftovers are pruned
	done bool
	// counted targets contribute to the active target gauge
	counted bool
	// stored is the number of stored messages still pending for this target
	stored int
}
