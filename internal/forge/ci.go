package forge

import (
	"strings"

	"github.com/jmcampanini/grove-status/internal/status"
)

// Provider state strings are mapped here. Any state a provider adds later
// lands on PipelinePending, so an unfamiliar run never reads as finished.

func gitlabPipelineStatus(state string) status.PipelineStatus {
	switch strings.ToLower(state) {
	case "running":
		return status.PipelineRunning
	case "pending", "waiting_for_resource", "preparing", "created", "waiting_for_callback":
		return status.PipelinePending
	case "success":
		return status.PipelineSuccess
	case "failed":
		return status.PipelineFailed
	case "canceled", "canceling":
		return status.PipelineCanceled
	case "skipped":
		return status.PipelineSkipped
	case "manual", "scheduled":
		return status.PipelineManual
	}
	return status.PipelinePending
}

func woodpeckerPipelineStatus(state string) status.PipelineStatus {
	switch strings.ToLower(state) {
	case "running":
		return status.PipelineRunning
	case "pending", "created", "blocked":
		return status.PipelinePending
	case "success":
		return status.PipelineSuccess
	case "failure", "error":
		return status.PipelineFailed
	case "killed", "declined":
		return status.PipelineCanceled
	case "skipped":
		return status.PipelineSkipped
	}
	return status.PipelinePending
}

// forgejoRunStatus maps a Forgejo Actions run. Finished runs carry their
// outcome in conclusion; some Forgejo versions report it directly in status.
func forgejoRunStatus(state, conclusion string) status.PipelineStatus {
	switch strings.ToLower(state) {
	case "running", "in_progress", "waiting":
		return status.PipelineRunning
	case "pending", "queued", "blocked", "requested":
		return status.PipelinePending
	case "completed":
		return conclusionStatus(conclusion)
	case "success", "failure", "cancelled", "canceled", "skipped", "timed_out":
		return conclusionStatus(state)
	}
	return status.PipelinePending
}

// githubCheckStatus maps a GitHub check run.
func githubCheckStatus(state, conclusion string) status.PipelineStatus {
	switch strings.ToLower(state) {
	case "in_progress":
		return status.PipelineRunning
	case "queued", "pending", "requested", "waiting":
		return status.PipelinePending
	case "completed":
		return conclusionStatus(conclusion)
	}
	return status.PipelinePending
}

func conclusionStatus(conclusion string) status.PipelineStatus {
	switch strings.ToLower(conclusion) {
	case "success", "neutral":
		return status.PipelineSuccess
	case "failure", "timed_out", "startup_failure":
		return status.PipelineFailed
	case "cancelled", "canceled":
		return status.PipelineCanceled
	case "skipped":
		return status.PipelineSkipped
	case "action_required":
		return status.PipelineManual
	}
	return status.PipelinePending
}

// aggregatePipelines folds the runs for one commit into a single status.
// A failure anywhere wins, then anything still in flight, then cancellation.
// All-skipped stays skipped; no runs at all is PipelineNone.
func aggregatePipelines(runs []status.PipelineStatus) status.PipelineStatus {
	if len(runs) == 0 {
		return status.PipelineNone
	}

	seen := make(map[status.PipelineStatus]bool, len(runs))
	for _, r := range runs {
		seen[r] = true
	}

	for _, p := range []status.PipelineStatus{
		status.PipelineFailed,
		status.PipelineRunning,
		status.PipelinePending,
		status.PipelineManual,
		status.PipelineCanceled,
		status.PipelineSuccess,
		status.PipelineSkipped,
	} {
		if seen[p] {
			return p
		}
	}
	return status.PipelineNone
}
