package scenarios

import (
	"github.com/pgcompute/compute-contract-tests/bench"
	"github.com/pgcompute/compute-contract-tests/computeservice"
	"github.com/pgcompute/compute-contract-tests/harness"
)

// AllCapabilities lists the optional control-plane capabilities that some
// scenarios depend on. Scenarios requiring a capability the service does not
// advertise are skipped rather than failed.
var AllCapabilities = []string{
	"branches",
	"respec",
	"metrics-json",
	"compute-log",
}

// RunScenarioSuite runs every scenario (subject to the filter) and returns
// the accumulated results. Scenarios execute strictly sequentially; each one
// provisions and owns its environment, and runs under
// harness.DefaultScenarioDeadline unless it declares its own deadline.
func RunScenarioSuite(
	client *computeservice.Client,
	benchmarker *bench.Benchmarker,
	filter harness.Filter,
	scenarioLogger harness.ScenarioLogger,
) harness.Results {
	return harness.Run(filter, scenarioLogger, func(c *harness.Context) {
		t := &T{
			context:     c,
			client:      client,
			benchmarker: benchmarker,
		}

		t.RunGroup("startup", DoStartupScenarios)
		t.RunGroup("migrations", DoMigrationScenarios)
	})
}
