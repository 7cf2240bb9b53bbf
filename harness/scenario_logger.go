package harness

import (
	"time"

	"github.com/pgcompute/compute-contract-tests/logging"
)

type ScenarioLogger interface {
	ScenarioStarted(id ScenarioID)
	ScenarioError(id ScenarioID, err error)
	ScenarioFinished(id ScenarioID, failed bool, debugOutput logging.CapturedOutput)
	ScenarioSkipped(id ScenarioID, reason string)
	ScenarioTimedOut(id ScenarioID, after time.Duration, debugOutput logging.CapturedOutput)
}

type nullScenarioLogger struct{}

func (n nullScenarioLogger) ScenarioStarted(ScenarioID)                                     {}
func (n nullScenarioLogger) ScenarioError(ScenarioID, error)                                {}
func (n nullScenarioLogger) ScenarioFinished(ScenarioID, bool, logging.CapturedOutput)      {}
func (n nullScenarioLogger) ScenarioSkipped(ScenarioID, string)                             {}
func (n nullScenarioLogger) ScenarioTimedOut(ScenarioID, time.Duration, logging.CapturedOutput) {}
