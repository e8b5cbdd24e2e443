package status

import "fmt"

// PipelineStatus is the provider-agnostic outcome of the CI run for a request's head commit.
// The zero value is PipelineNone.
type PipelineStatus int

const (
	PipelineNone PipelineStatus = iota // no pipeline run found
	PipelinePending
	PipelineRunning
	PipelineSuccess
	PipelineFailed
	PipelineCanceled
	PipelineSkipped
	PipelineManual
)

var pipelineNames = map[PipelineStatus]string{
	PipelineNone:     "none",
	PipelinePending:  "pending",
	PipelineRunning:  "running",
	PipelineSuccess:  "success",
	PipelineFailed:   "failed",
	PipelineCanceled: "canceled",
	PipelineSkipped:  "skipped",
	PipelineManual:   "manual",
}

func (p PipelineStatus) String() string {
	if name, ok := pipelineNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PipelineStatus(%d)", int(p))
}

func (p PipelineStatus) IsValid() bool {
	_, ok := pipelineNames[p]
	return ok
}

// IsTerminal reports whether the pipeline has finished and will not change without a new run.
func (p PipelineStatus) IsTerminal() bool {
	switch p {
	case PipelineSuccess, PipelineFailed, PipelineCanceled, PipelineSkipped:
		return true
	}
	return false
}

// Symbol returns a single-cell glyph for dashboard columns.
func (p PipelineStatus) Symbol() string {
	switch p {
	case PipelineRunning:
		return "●"
	case PipelinePending:
		return "◐"
	case PipelineSuccess:
		return "✓"
	case PipelineFailed:
		return "✗"
	case PipelineCanceled, PipelineSkipped:
		return "⊘"
	case PipelineManual:
		return "▶"
	default:
		return "─"
	}
}

// Label returns a human readable label.
func (p PipelineStatus) Label() string {
	switch p {
	case PipelineRunning:
		return "Running"
	case PipelinePending:
		return "Pending"
	case PipelineSuccess:
		return "Passed"
	case PipelineFailed:
		return "Failed"
	case PipelineCanceled:
		return "Canceled"
	case PipelineSkipped:
		return "Skipped"
	case PipelineManual:
		return "Manual"
	default:
		return "None"
	}
}

func (p PipelineStatus) MarshalText() ([]byte, error) {
	name, ok := pipelineNames[p]
	if !ok {
		return nil, fmt.Errorf("invalid pipeline status: %d", int(p))
	}
	return []byte(name), nil
}

func (p *PipelineStatus) UnmarshalText(text []byte) error {
	parsed, err := ParsePipelineStatus(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePipelineStatus parses the canonical name produced by String.
// An empty string parses as PipelineNone.
func ParsePipelineStatus(s string) (PipelineStatus, error) {
	if s == "" {
		return PipelineNone, nil
	}
	for status, name := range pipelineNames {
		if name == s {
			return status, nil
		}
	}
	return PipelineNone, fmt.Errorf("unknown pipeline status: %q", s)
}
