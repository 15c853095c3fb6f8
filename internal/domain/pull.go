package domain

// PullState is the terminal outcome of one provider pull within a refresh run.
type PullState int

const (
	// PullSuccessful means the provider returned data and persistence succeeded.
	PullSuccessful PullState = iota
	// PullAwaitingUpstream means the step was skipped or deferred because an
	// upstream provider has not published yet. Not an error.
	PullAwaitingUpstream
	// PullFailed means the provider call or its persistence failed.
	PullFailed
)

// StatusSuccessful is the ledger serialization of a successful pull.
const StatusSuccessful = "Successful"

// PullResult is the tagged outcome of a provider pull. Statuses stay typed
// through the run and are serialized to strings only at the ledger boundary.
type PullResult struct {
	State   PullState
	Message string
	Err     error
}

// PullOK marks a pull successful.
func PullOK() PullResult {
	return PullResult{State: PullSuccessful}
}

// PullAwaiting marks a pull skipped or deferred with a human-readable reason.
func PullAwaiting(message string) PullResult {
	return PullResult{State: PullAwaitingUpstream, Message: message}
}

// PullError marks a pull failed.
func PullError(err error) PullResult {
	return PullResult{State: PullFailed, Err: err}
}

// Successful reports whether the pull terminated successfully. A pull that
// succeeded transport-wise but is awaiting upstream data is not successful.
func (r PullResult) Successful() bool {
	return r.State == PullSuccessful
}

// LedgerString serializes the result for the refresh ledger.
func (r PullResult) LedgerString() string {
	switch r.State {
	case PullSuccessful:
		return StatusSuccessful
	case PullAwaitingUpstream:
		return r.Message
	default:
		if r.Err != nil {
			return r.Err.Error()
		}
		return "unknown error"
	}
}
