package studio

// Status is the save-state projection surfaced to UI components. It is
// derived from tracker and flush-queue state rather than stored, so a
// renderer can never observe a stale combination.
type Status string

const (
	// StatusIdle means no edits have been made this session.
	StatusIdle Status = "idle"

	// StatusPending means there are unsaved local edits.
	StatusPending Status = "pending"

	// StatusSaving means a flush batch is in the network layer.
	StatusSaving Status = "saving"

	// StatusSaved means the most recent flush persisted every target.
	StatusSaved Status = "saved"

	// StatusFailed means the most recent flush left at least one override
	// unsaved. The failed ids remain in the dirty set for retry.
	StatusFailed Status = "failed"
)

// IsValid reports whether s is a known status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusIdle, StatusPending, StatusSaving, StatusSaved, StatusFailed:
		return true
	}
	return false
}

// Label returns the status-line text for s.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Unsaved changes"
	case StatusSaving:
		return "Saving..."
	case StatusSaved:
		return "All changes saved"
	case StatusFailed:
		return "Some overrides failed to save"
	default:
		return ""
	}
}

// projectStatus derives the displayed status. A failure outranks the dirty
// set because failed saves re-enter it; a subsequent edit clears the failure
// and the projection falls back to pending.
func projectStatus(saving bool, dirty int, lastErr error, everSaved bool) Status {
	switch {
	case saving:
		return StatusSaving
	case lastErr != nil:
		return StatusFailed
	case dirty > 0:
		return StatusPending
	case everSaved:
		return StatusSaved
	default:
		return StatusIdle
	}
}
