package computeservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/pgcompute/compute-contract-tests/logging"
	"github.com/pgcompute/compute-contract-tests/servicedef"
)

const computeLogFileName = "compute.log"

// Endpoint is one compute endpoint of an environment. Its lifecycle state
// (absent, starting, running, stopped, destroyed) is owned by the service;
// the harness only issues transitions and observes their outcome. Lifecycle
// calls are never retried: each one either succeeds or returns a definitive
// error.
type Endpoint struct {
	env         *Environment
	branch      string
	resourceURL string
	logger      logging.Logger
	info        servicedef.EndpointInfo
}

func (ep *Endpoint) Branch() string { return ep.branch }

// Info returns the endpoint's externally reachable surfaces as of the most
// recent create or start.
func (ep *Endpoint) Info() servicedef.EndpointInfo { return ep.info }

// Start transitions the endpoint to running. The control plane returns only
// once the endpoint reports itself ready for queries, and responds with
// refreshed connection info since ports can change across restarts.
func (ep *Endpoint) Start() error {
	respBody, err := ep.sendCommand(servicedef.CommandParams{Command: servicedef.CommandStart})
	if err != nil {
		return err
	}
	if len(respBody) != 0 {
		var info servicedef.EndpointInfo
		if err := json.Unmarshal(respBody, &info); err != nil {
			return fmt.Errorf("malformed endpoint info from control plane: %s", string(respBody))
		}
		ep.info = info
	}
	return nil
}

// Stop performs a soft stop: the endpoint's on-disk state is retained and
// the endpoint can be started again.
func (ep *Endpoint) Stop() error {
	_, err := ep.sendCommand(servicedef.CommandParams{Command: servicedef.CommandStop})
	return err
}

// Destroy stops the endpoint and discards it entirely. A restart after
// Destroy means creating a fresh endpoint, forcing the full re-provisioning
// cost to be paid again.
func (ep *Endpoint) Destroy() error {
	_, err := ep.sendCommand(servicedef.CommandParams{Command: servicedef.CommandDestroy})
	if err != nil {
		return err
	}
	return deleteResource(ep.resourceURL)
}

// Respec applies a new endpoint spec. The endpoint must not be running.
func (ep *Endpoint) Respec(spec servicedef.EndpointSpec) error {
	_, err := ep.sendCommand(servicedef.CommandParams{Command: servicedef.CommandRespec, Spec: &spec})
	return err
}

func (ep *Endpoint) sendCommand(params servicedef.CommandParams) ([]byte, error) {
	data, _ := json.Marshal(params)
	ep.logger.Printf("Sending command to endpoint %s: %s", ep.resourceURL, string(data))
	resp, err := http.DefaultClient.Post(ep.resourceURL, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return nil, err
	}
	var respBody []byte
	if resp.Body != nil {
		respBody, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
	}
	if resp.StatusCode >= 300 {
		message := ""
		if len(respBody) != 0 {
			message = ": " + string(respBody)
		}
		return nil, fmt.Errorf("command %q returned HTTP status %d%s", params.Command, resp.StatusCode, message)
	}
	return respBody, nil
}

// SafeSQL executes a single statement on a fresh connection and returns all
// result rows.
func (ep *Endpoint) SafeSQL(ctx context.Context, stmt string) ([][]interface{}, error) {
	conn, err := pgx.Connect(ctx, ep.info.PgConnstr)
	if err != nil {
		return nil, fmt.Errorf("could not connect to endpoint: %w", err)
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", stmt, err)
	}
	defer rows.Close()

	var ret [][]interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		ret = append(ret, values)
	}
	return ret, rows.Err()
}

// Exec executes a statement that returns no rows.
func (ep *Endpoint) Exec(ctx context.Context, stmt string) error {
	conn, err := pgx.Connect(ctx, ep.info.PgConnstr)
	if err != nil {
		return fmt.Errorf("could not connect to endpoint: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("statement %q failed: %w", stmt, err)
	}
	return nil
}

// ExecBatch executes a sequence of statements on one connection, in order.
func (ep *Endpoint) ExecBatch(ctx context.Context, stmts []string) error {
	conn, err := pgx.Connect(ctx, ep.info.PgConnstr)
	if err != nil {
		return fmt.Errorf("could not connect to endpoint: %w", err)
	}
	defer conn.Close(ctx)

	for _, stmt := range stmts {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("statement %q failed: %w", stmt, err)
		}
	}
	return nil
}

// QueryInt runs a statement expected to return a single integer value.
func (ep *Endpoint) QueryInt(ctx context.Context, stmt string) (int64, error) {
	conn, err := pgx.Connect(ctx, ep.info.PgConnstr)
	if err != nil {
		return 0, fmt.Errorf("could not connect to endpoint: %w", err)
	}
	defer conn.Close(ctx)

	var value int64
	if err := conn.QueryRow(ctx, stmt).Scan(&value); err != nil {
		return 0, fmt.Errorf("query %q failed: %w", stmt, err)
	}
	return value, nil
}

// MetricsJSON fetches the endpoint's self-reported timing breakdown from its
// HTTP metrics surface.
func (ep *Endpoint) MetricsJSON(ctx context.Context) (ldvalue.Value, error) {
	port, ok := ep.info.HTTPPort.Get()
	if !ok {
		return ldvalue.Null(), fmt.Errorf("endpoint on branch %q has no HTTP port", ep.branch)
	}
	url := fmt.Sprintf("http://%s:%d/metrics.json", ep.info.Host, port)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return ldvalue.Null(), err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return ldvalue.Null(), fmt.Errorf("could not fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return ldvalue.Null(), fmt.Errorf("GET %s returned HTTP status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return ldvalue.Null(), err
	}
	var value ldvalue.Value
	if err := json.Unmarshal(data, &value); err != nil {
		return ldvalue.Null(), fmt.Errorf("malformed metrics document: %s", string(data))
	}
	return value, nil
}

// LogPath returns the path of the endpoint's plain-text process log.
func (ep *Endpoint) LogPath() string {
	return filepath.Join(ep.info.DataDir, computeLogFileName)
}

// ReadLog returns the full contents of the endpoint's process log.
func (ep *Endpoint) ReadLog() (string, error) {
	data, err := os.ReadFile(ep.LogPath())
	if err != nil {
		return "", fmt.Errorf("could not read endpoint log: %w", err)
	}
	return string(data), nil
}

// WaitForSQLInt polls the given single-integer query until it returns want.
// See WaitForInt for the polling policy. Query errors are treated as
// not-ready, since the state being awaited may be applied asynchronously
// after the SQL surface comes up.
func (ep *Endpoint) WaitForSQLInt(ctx context.Context, stmt string, want int64, deadline time.Duration) (int64, error) {
	return WaitForInt(ctx, func(ctx context.Context) (int64, error) {
		return ep.QueryInt(ctx, stmt)
	}, want, deadline)
}
