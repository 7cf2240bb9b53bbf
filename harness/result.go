package harness

import (
	"strings"
)

type Results struct {
	Scenarios []ScenarioResult
	Failures  []ScenarioResult
}

// ScenarioResult is the outcome of one scenario that actually ran. Skipped
// scenarios are reported through the ScenarioLogger only and produce no
// result.
type ScenarioResult struct {
	ScenarioID ScenarioID
	Errors     []error
	// TimedOut marks a scenario that overran its deadline and was
	// abandoned. It is reported distinctly from an assertion failure.
	TimedOut bool
}

func (r Results) OK() bool {
	return len(r.Failures) == 0
}

type ScenarioID struct {
	Path []string
}

func (s ScenarioID) String() string {
	return strings.Join(s.Path, "/")
}
