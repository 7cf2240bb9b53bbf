package harness

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/pgcompute/compute-contract-tests/logging"
)

type environment struct {
	results        Results
	scenarioLogger ScenarioLogger
	filter         Filter
}

// Context carries the state of one scenario execution. Scenario code reports
// failures through it; assertion helpers treat it like a *testing.T.
//
// A Context may be written to from the scenario goroutine after its deadline
// has expired and the runner has moved on, so all mutable state is guarded
// by a lock.
type Context struct {
	env         *environment
	id          ScenarioID
	debugLogger logging.CapturingLogger
	lock        sync.Mutex
	failed      bool
	skipped     bool
	timedOut    bool
	abandoned   bool
	skipReason  string
	errors      []error
}

// Run executes a top-level suite function and returns the accumulated
// results for every scenario it ran.
func Run(
	filter Filter,
	scenarioLogger ScenarioLogger,
	action func(*Context),
) Results {
	if scenarioLogger == nil {
		scenarioLogger = nullScenarioLogger{}
	}
	env := &environment{
		filter:         filter,
		scenarioLogger: scenarioLogger,
	}
	c := &Context{env: env}
	c.run(action)
	return env.results
}

func (c *Context) run(action func(*Context)) {
	defer func() {
		if r := recover(); r != nil {
			if c.isSkipped() {
				return
			}
			var addError error
			c.lock.Lock()
			c.failed = true
			if _, ok := r.(*Context); ok {
				if len(c.errors) == 0 {
					addError = errors.New("scenario failed with no failure message")
				}
			} else {
				addError = fmt.Errorf("unexpected panic in scenario: %+v\n%s", r, string(debug.Stack()))
			}
			if addError != nil {
				c.errors = append(c.errors, addError)
			}
			c.lock.Unlock()
			if addError != nil {
				c.env.scenarioLogger.ScenarioError(c.id, addError)
			}
		}
	}()

	action(c)
}

func (c *Context) ID() ScenarioID {
	return c.id
}

// DefaultScenarioDeadline is the upper bound applied to every scenario
// started through Run. A scenario that legitimately needs more (or less)
// time uses RunWithDeadline instead.
var DefaultScenarioDeadline = time.Second * 600

// Run executes a child scenario under the default deadline.
func (c *Context) Run(name string, action func(*Context)) {
	c.RunWithDeadline(name, DefaultScenarioDeadline, action)
}

// RunGroup executes a scenario that only groups child scenarios, with no
// deadline of its own. Each child is bounded individually; bounding the
// group too would cut off later children when earlier ones run long.
func (c *Context) RunGroup(name string, action func(*Context)) {
	c.RunWithDeadline(name, 0, action)
}

// RunWithDeadline executes a child scenario, abandoning it if it is still
// running after the given timeout. A timeout of zero means no deadline. An
// abandoned scenario is reported as timed out; any failures it records
// afterwards are discarded.
func (c *Context) RunWithDeadline(name string, timeout time.Duration, action func(*Context)) {
	id := ScenarioID{Path: append(append([]string(nil), c.id.Path...), name)}

	c.env.scenarioLogger.ScenarioStarted(id)
	if c.env.filter != nil && !c.env.filter(id) {
		c.env.scenarioLogger.ScenarioSkipped(id, "excluded by filter parameters")
		return
	}
	c1 := &Context{
		id:  id,
		env: c.env,
	}

	if timeout <= 0 {
		c1.run(action)
	} else {
		done := make(chan struct{})
		go func() {
			defer close(done)
			c1.run(action)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			c1.abandon()
		}
	}

	c1.lock.Lock()
	skipped, skipReason := c1.skipped, c1.skipReason
	timedOut, failed := c1.timedOut, c1.failed
	errs := append([]error(nil), c1.errors...)
	c1.lock.Unlock()

	switch {
	case skipped:
		c.env.scenarioLogger.ScenarioSkipped(id, skipReason)
	case timedOut:
		c.env.scenarioLogger.ScenarioTimedOut(id, timeout, c1.debugLogger.Output())
	default:
		c.env.scenarioLogger.ScenarioFinished(id, failed, c1.debugLogger.Output())
	}

	if skipped {
		return
	}
	result := ScenarioResult{ScenarioID: id, Errors: errs, TimedOut: timedOut}
	c.env.results.Scenarios = append(c.env.results.Scenarios, result)
	if failed || timedOut {
		c.env.results.Failures = append(c.env.results.Failures, result)
	}
}

// Errorf records a scenario failure without aborting the scenario.
func (c *Context) Errorf(format string, args ...interface{}) {
	err := fmt.Errorf(format, args...)
	c.lock.Lock()
	if c.abandoned {
		c.lock.Unlock()
		return
	}
	c.failed = true
	c.errors = append(c.errors, err)
	c.lock.Unlock()
	c.env.scenarioLogger.ScenarioError(c.id, err)
}

// FailNow aborts the scenario immediately. The methods in the require
// package call this.
func (c *Context) FailNow() {
	panic(c)
}

func (c *Context) Skip() {
	c.lock.Lock()
	c.skipped = true
	c.lock.Unlock()
	panic(c)
}

func (c *Context) SkipWithReason(reason string) {
	c.lock.Lock()
	c.skipReason = reason
	c.lock.Unlock()
	c.Skip()
}

// Debug writes to the scenario's captured debug log.
func (c *Context) Debug(message string, args ...interface{}) {
	c.debugLogger.Printf(message, args...)
}

func (c *Context) DebugLogger() logging.Logger {
	return &c.debugLogger
}

func (c *Context) abandon() {
	c.lock.Lock()
	c.abandoned = true
	c.timedOut = true
	c.lock.Unlock()
}

func (c *Context) isSkipped() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.skipped
}
