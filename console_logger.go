package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/pgcompute/compute-contract-tests/harness"
	"github.com/pgcompute/compute-contract-tests/logging"
)

var (
	failedColor   = color.New(color.FgRed, color.Bold)
	timedOutColor = color.New(color.FgYellow, color.Bold)
	skippedColor  = color.New(color.FgCyan)
)

type ConsoleScenarioLogger struct {
	DebugOutputOnFailure bool
	DebugOutputOnSuccess bool
}

func (c *ConsoleScenarioLogger) ScenarioStarted(id harness.ScenarioID) {
	fmt.Printf("[%s]\n", id)
}

func (c *ConsoleScenarioLogger) ScenarioError(id harness.ScenarioID, err error) {
	for _, line := range strings.Split(err.Error(), "\n") {
		fmt.Printf("  %s\n", line)
	}
}

func (c *ConsoleScenarioLogger) ScenarioFinished(id harness.ScenarioID, failed bool, debugOutput logging.CapturedOutput) {
	if failed {
		failedColor.Printf("  FAILED: %s\n", id)
	}
	if len(debugOutput) > 0 &&
		((failed && c.DebugOutputOnFailure) || (!failed && c.DebugOutputOnSuccess)) {
		debugOutput.Dump(os.Stdout, "    DEBUG ")
	}
}

func (c *ConsoleScenarioLogger) ScenarioSkipped(id harness.ScenarioID, reason string) {
	if reason == "" {
		skippedColor.Printf("  SKIPPED: %s\n", id)
	} else {
		skippedColor.Printf("  SKIPPED: %s (%s)\n", id, reason)
	}
}

func (c *ConsoleScenarioLogger) ScenarioTimedOut(id harness.ScenarioID, after time.Duration, debugOutput logging.CapturedOutput) {
	timedOutColor.Printf("  TIMED OUT: %s (after %s)\n", id, after)
	if len(debugOutput) > 0 && c.DebugOutputOnFailure {
		debugOutput.Dump(os.Stdout, "    DEBUG ")
	}
}

func printResults(results harness.Results) {
	if results.OK() {
		fmt.Printf("All scenarios passed (%d total)\n", len(results.Scenarios))
		return
	}
	failedColor.Printf("%d of %d scenarios failed:\n", len(results.Failures), len(results.Scenarios))
	for _, f := range results.Failures {
		if f.TimedOut {
			timedOutColor.Printf("  %s: timed out\n", f.ScenarioID)
			continue
		}
		failedColor.Printf("  %s\n", f.ScenarioID)
		for _, err := range f.Errors {
			fmt.Printf("    %s\n", err)
		}
	}
}
