package scenarios

import (
	"context"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/pgcompute/compute-contract-tests/bench"
	"github.com/pgcompute/compute-contract-tests/computeservice"
	"github.com/pgcompute/compute-contract-tests/evidence"
	"github.com/pgcompute/compute-contract-tests/harness"
	"github.com/pgcompute/compute-contract-tests/servicedef"
)

// T represents a scenario or sub-scenario in the verification suite.
//
// It implements the same basic functionality as Go's testing.T, but in an
// environment that is outside of the Go test runner. Those basics are
// provided by the lower-level harness package.
//
// It also provides functionality specific to driving the database service:
// every T owns at most one provisioned environment and one current compute
// endpoint, plus a benchmark recorder scoped to the scenario. The
// environment is destroyed when the scenario ends, pass or fail.
//
// To make assertions, you can use the assert and require packages, passing
// the *T as if it were a *testing.T. Many of the helper methods have
// assertions built in, causing the scenario to immediately fail if a
// lifecycle or query call does not succeed, to reduce boilerplate in
// scenario code.
type T struct {
	context     *harness.Context
	client      *computeservice.Client
	benchmarker *bench.Benchmarker
	recorder    *bench.Recorder
	env         *computeservice.Environment
	endpoint    *computeservice.Endpoint
}

func (t *T) childScope(c *harness.Context) *T {
	return &T{
		context:     c,
		client:      t.client,
		benchmarker: t.benchmarker,
		recorder:    t.benchmarker.ForScenario(c.ID().String()),
	}
}

func (t *T) close() {
	if t.env != nil {
		if err := t.env.Destroy(); err != nil {
			t.context.Debug("could not destroy environment: %s", err)
		}
		t.env = nil
	}
}

// Errorf is called by assertions to log a scenario failure. It does not
// cause an immediate exit.
func (t *T) Errorf(format string, args ...interface{}) {
	t.context.Errorf(format, args...)
}

// FailNow is called by assertions when a scenario should fail and
// immediately exit. The methods in the require package call FailNow.
func (t *T) FailNow() {
	t.context.FailNow()
}

// Run runs a sub-scenario with its own environment scope, under the
// harness's default deadline.
func (t *T) Run(name string, action func(*T)) {
	t.context.Run(name, func(c *harness.Context) {
		t1 := t.childScope(c)
		defer t1.close()
		action(t1)
	})
}

// RunGroup runs a sub-scenario that only groups other scenarios; the group
// carries no deadline of its own, so its children's deadlines add up freely.
func (t *T) RunGroup(name string, action func(*T)) {
	t.context.RunGroup(name, func(c *harness.Context) {
		t1 := t.childScope(c)
		defer t1.close()
		action(t1)
	})
}

// RunWithDeadline is like Run but abandons the sub-scenario if it overruns
// the given deadline, reporting it as timed out.
func (t *T) RunWithDeadline(name string, deadline time.Duration, action func(*T)) {
	t.context.RunWithDeadline(name, deadline, func(c *harness.Context) {
		t1 := t.childScope(c)
		defer t1.close()
		action(t1)
	})
}

func (t *T) Skip() { t.context.Skip() }

func (t *T) SkipWithReason(reason string) { t.context.SkipWithReason(reason) }

// Debug writes to the scenario's captured debug log, which is shown only
// when the scenario fails (or with -debug-all).
func (t *T) Debug(format string, args ...interface{}) {
	t.context.Debug(format, args...)
}

// HasCapability returns whether the control plane advertised the capability.
func (t *T) HasCapability(capability string) bool {
	return t.client.HasCapability(capability)
}

// RequireEnvironment provisions a fresh environment for this scenario, with
// the given replica/quorum count for the durability layer (0 means the
// control plane's default). The environment is exclusively owned by this
// scenario and destroyed when it ends.
func (t *T) RequireEnvironment(numSafekeepers int) *computeservice.Environment {
	params := servicedef.CreateEnvironmentParams{}
	if numSafekeepers > 0 {
		params.NumSafekeepers = ldvalue.NewOptionalInt(numSafekeepers)
	}
	env, err := t.client.CreateEnvironment(params, t.context.DebugLogger())
	require.NoError(t, err, "environment could not be provisioned")
	t.env = env
	return env
}

func (t *T) requireEnvironmentStarted() {
	require.NotNil(t, t.env, "scenario tried to use an environment before provisioning one")
}

// RequireBranch creates a branch in the scenario's environment.
func (t *T) RequireBranch(name, ancestor string) {
	t.requireEnvironmentStarted()
	require.NoError(t, t.env.CreateBranch(name, ancestor))
}

// RequireEndpoint creates an endpoint on the named branch without starting
// it, and makes it the scenario's current endpoint.
func (t *T) RequireEndpoint(branch string) *computeservice.Endpoint {
	t.requireEnvironmentStarted()
	endpoint, err := t.env.CreateEndpoint(branch)
	require.NoError(t, err)
	t.endpoint = endpoint
	return endpoint
}

// RequireCreateStart creates and starts an endpoint on the named branch,
// returning only once the service reports it query-capable.
func (t *T) RequireCreateStart(branch string) *computeservice.Endpoint {
	t.requireEnvironmentStarted()
	endpoint, err := t.env.CreateStartEndpoint(branch)
	require.NoError(t, err)
	t.endpoint = endpoint
	return endpoint
}

func (t *T) requireEndpoint() *computeservice.Endpoint {
	require.NotNil(t, t.endpoint, "scenario tried to use an endpoint before creating one")
	return t.endpoint
}

// RequireSQL executes a statement on the current endpoint, failing the
// scenario on error.
func (t *T) RequireSQL(stmt string) [][]interface{} {
	rows, err := t.requireEndpoint().SafeSQL(context.Background(), stmt)
	require.NoError(t, err)
	return rows
}

// RequireExec executes a statement that returns no rows.
func (t *T) RequireExec(stmt string) {
	require.NoError(t, t.requireEndpoint().Exec(context.Background(), stmt))
}

// RequireExecBatch executes the statements in order on one connection.
func (t *T) RequireExecBatch(stmts []string) {
	require.NoError(t, t.requireEndpoint().ExecBatch(context.Background(), stmts))
}

// RequireDestroyEndpoint destroys the scenario's current endpoint. Starting
// again afterwards means creating a fresh endpoint.
func (t *T) RequireDestroyEndpoint() {
	require.NoError(t, t.requireEndpoint().Destroy())
	t.endpoint = nil
}

// RequireMetricsDocument fetches the current endpoint's metrics document.
func (t *T) RequireMetricsDocument() ldvalue.Value {
	doc, err := t.requireEndpoint().MetricsJSON(context.Background())
	require.NoError(t, err)
	return doc
}

// AwaitSQLInt polls the query until it yields want, failing the scenario if
// the deadline expires first. It returns the awaited value.
func (t *T) AwaitSQLInt(stmt string, want int64, deadline time.Duration) int64 {
	value, err := t.requireEndpoint().WaitForSQLInt(context.Background(), stmt, want, deadline)
	require.NoError(t, err)
	return value
}

// RequireChecks evaluates evidence checks against the current endpoint's
// SQL, metrics, and log surfaces, failing the scenario at the first
// mismatch. The metrics document and log text are fetched at most once per
// call, however many checks read them.
func (t *T) RequireChecks(checks ...evidence.Check) {
	endpoint := t.requireEndpoint()
	src := evidence.Sources{
		Query:   endpoint.SafeSQL,
		Metrics: endpoint.MetricsJSON,
		Log:     endpoint.ReadLog,
	}
	require.NoError(t, evidence.Evaluate(context.Background(), src.Memoized(), checks...))
}

// RequireMetricsChecks evaluates metrics-document checks against a document
// the scenario already fetched, so a phase that both asserts on and records
// the document reads it once.
func (t *T) RequireMetricsChecks(doc ldvalue.Value, checks ...evidence.Check) {
	src := evidence.Sources{
		Metrics: func(context.Context) (ldvalue.Value, error) { return doc, nil },
	}
	require.NoError(t, evidence.Evaluate(context.Background(), src, checks...))
}

// MeasureDuration records the elapsed time of fn under the given label as
// one duration sample for this scenario.
func (t *T) MeasureDuration(label string, fn func()) {
	t.Debug("measuring %q", label)
	t.recorder.MeasureDuration(label, fn)
}

// Record publishes a metric value through the benchmark reporter.
func (t *T) Record(name string, value float64, unit string, direction bench.Direction) {
	t.recorder.Record(name, value, unit, direction)
}
