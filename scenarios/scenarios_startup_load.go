package scenarios

import (
	"fmt"
	"time"
)

// This scenario sometimes runs for longer than a typical per-scenario bound,
// so it carries its own hard deadline.
const startupWithLoadDeadline = time.Second * 600

const (
	loadNumTables = 100
	loadNumRows   = 1000000 // ~30 MB per table
)

// DoStartupWithLoadScenario measures cold-restart cost with and without
// data, and first-read versus cached second-read cost. A restart here is
// destroy-then-create, not a soft restart, to force the full
// re-provisioning cost to be measured. Each destroy→recreate→first-query
// sequence is one atomic timed phase.
func DoStartupWithLoadScenario(t *T) {
	t.RequireEnvironment(startupSafekeepers)
	t.RequireBranch(startupBranchName, "")

	// Start
	t.MeasureDuration("startup_time", func() {
		t.RequireCreateStart(startupBranchName)
		t.RequireSQL("select 1;")
	})

	// Restart
	t.RequireDestroyEndpoint()
	t.MeasureDuration("restart_time", func() {
		t.RequireCreateStart(startupBranchName)
		t.RequireSQL("select 1;")
	})

	// Fill up, on a single connection
	stmts := make([]string, 0, loadNumTables*2)
	for i := 0; i < loadNumTables; i++ {
		stmts = append(stmts,
			fmt.Sprintf("create table t_%d (i integer);", i),
			fmt.Sprintf("insert into t_%d values (generate_series(1,%d));", i, loadNumRows))
	}
	t.RequireExecBatch(stmts)

	// Read
	t.MeasureDuration("read_time", func() {
		t.RequireSQL("select * from t_0;")
	})

	// Read again. The second read is recorded as a distinct sample; whether
	// it is faster than the first is left as an observational metric, not a
	// pass/fail condition.
	t.MeasureDuration("second_read_time", func() {
		t.RequireSQL("select * from t_0;")
	})

	// Restart with data in place
	t.RequireDestroyEndpoint()
	t.MeasureDuration("restart_with_data", func() {
		t.RequireCreateStart(startupBranchName)
		t.RequireSQL("select 1;")
	})

	// Read after restart
	t.MeasureDuration("read_after_restart", func() {
		t.RequireSQL("select * from t_0;")
	})
}
