package importer

// Phase represents where an import job is in its lifecycle.
type Phase string

const (
	// PhaseIdle means no job has run yet.
	PhaseIdle Phase = "idle"

	// PhaseValidating means the URL is being checked locally.
	PhaseValidating Phase = "validating"

	// PhaseSubmitting means the import request is being prepared.
	PhaseSubmitting Phase = "submitting"

	// PhaseAwaitingResult means the request is with the server.
	PhaseAwaitingResult Phase = "awaiting_result"

	// PhaseRefreshing means the import succeeded and the library is
	// being reloaded so the new videos are visible.
	PhaseRefreshing Phase = "refreshing"

	// PhaseDone means the job finished and the library reflects it.
	PhaseDone Phase = "done"

	// PhaseFailed means the job stopped with an error.
	PhaseFailed Phase = "failed"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// IsActive returns true while a job occupies the workflow. A new job can
// only start when the current phase is not active.
func (p Phase) IsActive() bool {
	switch p {
	case PhaseValidating, PhaseSubmitting, PhaseAwaitingResult, PhaseRefreshing:
		return true
	}
	return false
}

// IsTerminal returns true once a job has settled.
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed
}
