package status

import (
	"encoding/json"
	"fmt"
)

// RequestState identifies the variant of a PullRequestStatus.
type RequestState int

const (
	StateNone RequestState = iota
	StateOpen
	StateDraft
	StateMerged
	StateClosed
)

var stateNames = map[RequestState]string{
	StateNone:   "none",
	StateOpen:   "open",
	StateDraft:  "draft",
	StateMerged: "merged",
	StateClosed: "closed",
}

func (s RequestState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("RequestState(%d)", int(s))
}

// PullRequestStatus is the unified state of a pull request (GitHub, Codeberg) or
// merge request (GitLab) for one branch. The zero value is the None variant.
//
// Values are built through None, Open, Draft, Merged and Closed so that url and
// pipeline are only ever carried by the Open and Draft variants. The type is
// comparable with ==.
type PullRequestStatus struct {
	state    RequestState
	number   int
	url      string
	pipeline PipelineStatus
}

// None reports that no request is known for the branch.
func None() PullRequestStatus {
	return PullRequestStatus{}
}

// Open is a request that is open and not marked draft.
func Open(number int, url string, pipeline PipelineStatus) PullRequestStatus {
	return PullRequestStatus{state: StateOpen, number: number, url: url, pipeline: pipeline}
}

// Draft is an open request marked as draft or work in progress.
func Draft(number int, url string, pipeline PipelineStatus) PullRequestStatus {
	return PullRequestStatus{state: StateDraft, number: number, url: url, pipeline: pipeline}
}

// Merged is terminal; no pipeline is tracked for merged requests.
func Merged(number int) PullRequestStatus {
	return PullRequestStatus{state: StateMerged, number: number}
}

// Closed is terminal and was not merged.
func Closed(number int) PullRequestStatus {
	return PullRequestStatus{state: StateClosed, number: number}
}

func (s PullRequestStatus) State() RequestState { return s.state }

// Number is the provider-assigned request number (GitLab IID). Zero for None.
func (s PullRequestStatus) Number() int { return s.number }

// IsNone reports whether this is the None variant.
func (s PullRequestStatus) IsNone() bool { return s.state == StateNone }

// IsActive reports whether the request is Open or Draft.
func (s PullRequestStatus) IsActive() bool {
	return s.state == StateOpen || s.state == StateDraft
}

// URL returns the web URL of an Open or Draft request.
func (s PullRequestStatus) URL() (string, bool) {
	if !s.IsActive() {
		return "", false
	}
	return s.url, true
}

// Pipeline returns the CI status of an Open or Draft request, PipelineNone otherwise.
func (s PullRequestStatus) Pipeline() PipelineStatus {
	if !s.IsActive() {
		return PipelineNone
	}
	return s.pipeline
}

// WithPipeline returns a copy with the pipeline replaced. Terminal variants are returned unchanged.
func (s PullRequestStatus) WithPipeline(p PipelineStatus) PullRequestStatus {
	if !s.IsActive() {
		return s
	}
	s.pipeline = p
	return s
}

// FormatShort renders the status for narrow columns, e.g. "#42 Draft".
func (s PullRequestStatus) FormatShort() string {
	switch s.state {
	case StateOpen:
		return fmt.Sprintf("#%d", s.number)
	case StateDraft:
		return fmt.Sprintf("#%d Draft", s.number)
	case StateMerged:
		return fmt.Sprintf("#%d Merged", s.number)
	case StateClosed:
		return fmt.Sprintf("#%d Closed", s.number)
	default:
		return "None"
	}
}

func (s PullRequestStatus) String() string {
	if s.IsActive() {
		return fmt.Sprintf("%s #%d (pipeline %s)", s.state, s.number, s.pipeline)
	}
	if s.state == StateNone {
		return "none"
	}
	return fmt.Sprintf("%s #%d", s.state, s.number)
}

type wirePullRequestStatus struct {
	State    string          `json:"state"`
	Number   int             `json:"number,omitempty"`
	URL      string          `json:"url,omitempty"`
	Pipeline *PipelineStatus `json:"pipeline,omitempty"`
}

func (s PullRequestStatus) MarshalJSON() ([]byte, error) {
	wire := wirePullRequestStatus{State: s.state.String()}
	if s.state != StateNone {
		wire.Number = s.number
	}
	if s.IsActive() {
		p := s.pipeline
		wire.URL = s.url
		wire.Pipeline = &p
	}
	return json.Marshal(wire)
}

func (s *PullRequestStatus) UnmarshalJSON(data []byte) error {
	var wire wirePullRequestStatus
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	pipeline := PipelineNone
	if wire.Pipeline != nil {
		pipeline = *wire.Pipeline
	}

	switch wire.State {
	case "", "none":
		*s = None()
	case "open":
		*s = Open(wire.Number, wire.URL, pipeline)
	case "draft":
		*s = Draft(wire.Number, wire.URL, pipeline)
	case "merged":
		*s = Merged(wire.Number)
	case "closed":
		*s = Closed(wire.Number)
	default:
		return fmt.Errorf("unknown pull request state: %s", wire.State)
	}
	return nil
}
