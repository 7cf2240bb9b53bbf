package scenarios

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/pgcompute/compute-contract-tests/bench"
	"github.com/pgcompute/compute-contract-tests/computeservice"
	"github.com/pgcompute/compute-contract-tests/evidence"
	"github.com/pgcompute/compute-contract-tests/harness"
	"github.com/pgcompute/compute-contract-tests/logging"
	"github.com/pgcompute/compute-contract-tests/servicedef"
)

type recordingScenarioLogger struct {
	skipped map[string]string
}

func (l *recordingScenarioLogger) ScenarioStarted(harness.ScenarioID)                 {}
func (l *recordingScenarioLogger) ScenarioError(harness.ScenarioID, error)            {}
func (l *recordingScenarioLogger) ScenarioFinished(harness.ScenarioID, bool, logging.CapturedOutput) {
}
func (l *recordingScenarioLogger) ScenarioTimedOut(harness.ScenarioID, time.Duration, logging.CapturedOutput) {
}
func (l *recordingScenarioLogger) ScenarioSkipped(id harness.ScenarioID, reason string) {
	if l.skipped == nil {
		l.skipped = make(map[string]string)
	}
	l.skipped[id.String()] = reason
}

func clientWithCapabilities(t *testing.T, capabilities []string) *computeservice.Client {
	t.Helper()
	status := servicedef.ServiceStatus{Description: "fake control plane", Capabilities: capabilities}
	server := httptest.NewServer(httphelpers.HandlerWithJSONResponse(status, nil))
	t.Cleanup(server.Close)

	client, err := computeservice.NewClient(server.URL, time.Second, logging.NullLogger(), io.Discard)
	require.NoError(t, err)
	return client
}

func TestMigrationScenarioSkipsWithoutRespecCapability(t *testing.T) {
	client := clientWithCapabilities(t, []string{"branches"})

	var filters harness.RegexFilters
	require.NoError(t, filters.MustMatch.Set("^migrations"))

	logger := &recordingScenarioLogger{}
	results := RunScenarioSuite(client, bench.NewBenchmarker(nil, nil), filters.AsFilter, logger)

	assert.True(t, results.OK())
	// Only the parent group produces a result; the skipped scenario does not.
	require.Len(t, results.Scenarios, 1)
	assert.Equal(t, "migrations", results.Scenarios[0].ScenarioID.String())
	assert.Contains(t, logger.skipped["migrations/idempotence"], "respec")
}

func TestFilterExcludesStartupScenarios(t *testing.T) {
	client := clientWithCapabilities(t, nil)

	var filters harness.RegexFilters
	require.NoError(t, filters.MustNotMatch.Set("."))

	logger := &recordingScenarioLogger{}
	results := RunScenarioSuite(client, bench.NewBenchmarker(nil, nil), filters.AsFilter, logger)

	assert.True(t, results.OK())
	assert.Empty(t, results.Scenarios)
}

func TestRequireMetricsChecksEvaluatesSuppliedDocument(t *testing.T) {
	// The checks run against the document the scenario already fetched;
	// no endpoint round trip is involved.
	doc := ldvalue.ObjectBuild().
		Set("config_ms", ldvalue.Int(15)).
		Set("total_startup_ms", ldvalue.Int(190)).
		Build()

	results := harness.Run(nil, nil, func(c *harness.Context) {
		c.Run("metrics", func(c *harness.Context) {
			st := &T{context: c}
			st.RequireMetricsChecks(doc,
				evidence.FieldNonNegative{Key: "config_ms"},
				evidence.FieldNonNegative{Key: "total_startup_ms"},
			)
		})
	})
	assert.True(t, results.OK())

	results = harness.Run(nil, nil, func(c *harness.Context) {
		c.Run("metrics", func(c *harness.Context) {
			st := &T{context: c}
			st.RequireMetricsChecks(doc, evidence.FieldNonNegative{Key: "basebackup_ms"})
		})
	})
	require.Len(t, results.Failures, 1)
	assert.Contains(t, results.Failures[0].Errors[0].Error(), "basebackup_ms")
}

func TestStartupDurationMetricMapping(t *testing.T) {
	// The mapping from service field names to report names is part of the
	// contract with downstream comparison tooling.
	expected := map[string]string{
		"wait_for_spec_ms":    "wait_for_spec",
		"sync_safekeepers_ms": "sync_safekeepers",
		"basebackup_ms":       "basebackup",
		"config_ms":           "config",
		"total_startup_ms":    "total_startup",
	}
	actual := map[string]string{}
	for _, m := range startupDurationMetrics {
		actual[m.key] = m.name
	}
	assert.Equal(t, expected, actual)
}
