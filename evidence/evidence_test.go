package evidence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

func fakeSources(rows [][]interface{}, metrics ldvalue.Value, logText string) Sources {
	return Sources{
		Query: func(ctx context.Context, stmt string) ([][]interface{}, error) {
			return rows, nil
		},
		Metrics: func(ctx context.Context) (ldvalue.Value, error) {
			return metrics, nil
		},
		Log: func() (string, error) {
			return logText, nil
		},
	}
}

func TestQueryEqualsPassesOnExactMatch(t *testing.T) {
	src := fakeSources([][]interface{}{{int64(2)}}, ldvalue.Null(), "")
	check := QueryEquals{SQL: "SELECT id FROM neon_migration.migration_id", Want: int64(2)}
	assert.NoError(t, check.Check(context.Background(), src))
}

func TestQueryEqualsNormalizesIntegerWidths(t *testing.T) {
	// Drivers return int32 for integer columns; the comparison must not
	// care about width.
	src := fakeSources([][]interface{}{{int32(2)}}, ldvalue.Null(), "")
	check := QueryEquals{SQL: "select 1;", Want: int64(2)}
	assert.NoError(t, check.Check(context.Background(), src))
}

func TestQueryEqualsReportsExpectedVsActual(t *testing.T) {
	src := fakeSources([][]interface{}{{int64(3)}}, ldvalue.Null(), "")
	check := QueryEquals{SQL: "SELECT id FROM neon_migration.migration_id", Want: int64(2)}
	err := check.Check(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 2, got 3")
	assert.Contains(t, err.Error(), "query-equals")
}

func TestQueryEqualsFailsOnEmptyResult(t *testing.T) {
	src := fakeSources(nil, ldvalue.Null(), "")
	check := QueryEquals{SQL: "select 1;", Want: int64(1)}
	err := check.Check(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rows")
}

func TestFieldPresent(t *testing.T) {
	doc := ldvalue.ObjectBuild().
		Set("total_startup_ms", ldvalue.Int(150)).
		Set("description", ldvalue.String("startup")).
		Build()
	src := fakeSources(nil, doc, "")

	assert.NoError(t, FieldPresent{Key: "total_startup_ms"}.Check(context.Background(), src))

	err := FieldPresent{Key: "basebackup_ms"}.Check(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"basebackup_ms"`)
	assert.Contains(t, err.Error(), "missing")

	err = FieldPresent{Key: "description"}.Check(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a number")
}

func TestFieldNonNegative(t *testing.T) {
	doc := ldvalue.ObjectBuild().
		Set("config_ms", ldvalue.Int(0)).
		Set("drift_ms", ldvalue.Int(-5)).
		Build()
	src := fakeSources(nil, doc, "")

	assert.NoError(t, FieldNonNegative{Key: "config_ms"}.Check(context.Background(), src))

	err := FieldNonNegative{Key: "drift_ms"}.Check(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-negative")
}

func TestLogContains(t *testing.T) {
	logText := "INFO start_compute:apply_config:handle_migrations: Ran 2 migrations\n"
	src := fakeSources(nil, ldvalue.Null(), logText)

	pass := LogContains{Literal: "Ran 2 migrations"}
	assert.NoError(t, pass.Check(context.Background(), src))

	fail := LogContains{Literal: "Ran 0 migrations"}
	err := fail.Check(context.Background(), src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Ran 0 migrations"`)
}

func TestMemoizedSourcesFetchEachSurfaceOnce(t *testing.T) {
	doc := ldvalue.ObjectBuild().
		Set("config_ms", ldvalue.Int(15)).
		Set("total_startup_ms", ldvalue.Int(190)).
		Build()
	metricsFetches, logReads := 0, 0
	src := Sources{
		Metrics: func(ctx context.Context) (ldvalue.Value, error) {
			metricsFetches++
			return doc, nil
		},
		Log: func() (string, error) {
			logReads++
			return "Ran 2 migrations\nRan 0 migrations\n", nil
		},
	}

	err := Evaluate(context.Background(), src.Memoized(),
		FieldNonNegative{Key: "config_ms"},
		FieldNonNegative{Key: "total_startup_ms"},
		LogContains{Literal: "Ran 2 migrations"},
		LogContains{Literal: "Ran 0 migrations"},
	)
	require.NoError(t, err)
	assert.Equal(t, 1, metricsFetches)
	assert.Equal(t, 1, logReads)
}

func TestMemoizedSourcesCacheErrors(t *testing.T) {
	logReads := 0
	src := Sources{
		Log: func() (string, error) {
			logReads++
			return "", errors.New("log unreadable")
		},
	}.Memoized()

	for i := 0; i < 2; i++ {
		_, err := src.Log()
		require.Error(t, err)
	}
	assert.Equal(t, 1, logReads)
}

func TestEvaluateStopsAtFirstFailure(t *testing.T) {
	queried := 0
	src := Sources{
		Query: func(ctx context.Context, stmt string) ([][]interface{}, error) {
			queried++
			return [][]interface{}{{int64(1)}}, nil
		},
		Log: func() (string, error) {
			return "", errors.New("log unreadable")
		},
	}

	err := Evaluate(context.Background(), src,
		LogContains{Literal: "anything"},
		QueryEquals{SQL: "select 1;", Want: int64(1)},
	)
	require.Error(t, err)
	assert.Equal(t, 0, queried, "evaluation should stop before reaching the query check")
}
