package scenarios

import (
	"github.com/stretchr/testify/require"

	"github.com/pgcompute/compute-contract-tests/bench"
	"github.com/pgcompute/compute-contract-tests/evidence"
)

const startupBranchName = "test_startup"

// startupSafekeepers gives the durability layer a quorum of 3 so that it
// tolerates one replica failure during durability-sensitive phases.
const startupSafekeepers = 3

// startupDurationMetrics maps the service's internal field names in
// /metrics.json to the harness-level report names. The mapping is enumerated
// once here; a key missing from the document fails the scenario, because a
// missing field signals an instrumentation regression in the service.
var startupDurationMetrics = []struct {
	key  string
	name string
}{
	{"wait_for_spec_ms", "wait_for_spec"},
	{"sync_safekeepers_ms", "sync_safekeepers"},
	{"basebackup_ms", "basebackup"},
	{"config_ms", "config"},
	{"total_startup_ms", "total_startup"},
}

func DoStartupScenarios(t *T) {
	t.Run("simple", DoStartupSimpleScenario)
	t.RunWithDeadline("with-load", startupWithLoadDeadline, DoStartupWithLoadScenario)
}

// DoStartupSimpleScenario just starts an endpoint and measures duration,
// both as observed from outside and as self-reported by the service.
//
// NOTE the self-reported breakdown might not represent the startup time of a
// large database: the base backup might be larger, or the safekeepers might
// need more syncing, or there might be more operations to apply during the
// config step. The with-load scenario covers that.
func DoStartupSimpleScenario(t *T) {
	t.RequireEnvironment(startupSafekeepers)
	t.RequireBranch(startupBranchName, "")

	// Timing covers create+start plus a trivial query, to confirm the
	// endpoint is query-capable rather than merely process-started.
	t.MeasureDuration("start_and_select", func() {
		t.RequireCreateStart(startupBranchName)
		t.RequireSQL("select 1;")
	})

	// One fetch of the document serves both the field checks and the
	// re-published samples.
	metrics := t.RequireMetricsDocument()

	var fieldChecks []evidence.Check
	for _, m := range startupDurationMetrics {
		fieldChecks = append(fieldChecks, evidence.FieldNonNegative{Key: m.key})
	}
	t.RequireMetricsChecks(metrics, fieldChecks...)

	for _, m := range startupDurationMetrics {
		value, ok := metrics.TryGetByKey(m.key)
		require.True(t, ok, "metrics document is missing key %q", m.key)
		t.Record(m.name, value.Float64Value(), "ms", bench.LowerIsBetter)
	}
}
