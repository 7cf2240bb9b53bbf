package scenarios

import (
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgcompute/compute-contract-tests/evidence"
	"github.com/pgcompute/compute-contract-tests/servicedef"
)

const migrationCounterSQL = "SELECT id FROM neon_migration.migration_id"

// expectedMigrationCount is the total number of catalog migrations known to
// exist in the service at the time of writing. Bump it when the service
// gains a migration.
const expectedMigrationCount = 2

// Migrations run out-of-band from the SQL-ready signal, so the counter is
// awaited with a bounded poll under this deadline rather than a fixed sleep.
const migrationSettleDeadline = time.Second * 30

const (
	firstBootMigrationLogLine  = "INFO start_compute:apply_config:handle_migrations: Ran 2 migrations"
	secondBootMigrationLogLine = "INFO start_compute:apply_config:handle_migrations: Ran 0 migrations"
)

func DoMigrationScenarios(t *T) {
	t.Run("idempotence", DoMigrationIdempotenceScenario)
}

// DoMigrationIdempotenceScenario verifies that the catalog-migration
// subsystem applies every known migration exactly once on the first boot of
// an empty branch, and applies nothing on a subsequent boot against the
// already-migrated schema — checked through the persisted migration counter
// and through the service's own log lines.
func DoMigrationIdempotenceScenario(t *T) {
	if !t.HasCapability("respec") {
		t.SkipWithReason("control plane does not support respec")
	}

	t.RequireEnvironment(0)
	t.RequireBranch("test_migrations", servicedef.AncestorEmpty)

	// Catalog migrations must not be skipped on this endpoint.
	endpoint := t.RequireEndpoint("test_migrations")
	require.NoError(t, endpoint.Respec(servicedef.EndpointSpec{SkipPgCatalogUpdates: false}))
	require.NoError(t, endpoint.Start())

	firstCount := t.AwaitSQLInt(migrationCounterSQL, expectedMigrationCount, migrationSettleDeadline)
	t.RequireChecks(evidence.QueryEquals{SQL: migrationCounterSQL, Want: int64(expectedMigrationCount)})

	// Soft stop/start against unchanged state: re-running startup must not
	// re-apply or double-count migrations.
	require.NoError(t, endpoint.Stop())
	require.NoError(t, endpoint.Start())

	secondCount := t.AwaitSQLInt(migrationCounterSQL, expectedMigrationCount, migrationSettleDeadline)
	assert.Equal(t, firstCount, secondCount, "migration counter changed across a restart with no new migrations")
	assert.GreaterOrEqual(t, secondCount, firstCount, "migration counter decreased across a restart")

	t.RequireChecks(
		evidence.QueryEquals{SQL: migrationCounterSQL, Want: int64(expectedMigrationCount)},
		evidence.LogContains{Literal: firstBootMigrationLogLine},
		evidence.LogContains{Literal: secondBootMigrationLogLine},
	)
}
