package computeservice

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

	"github.com/pgcompute/compute-contract-tests/logging"
	"github.com/pgcompute/compute-contract-tests/servicedef"
)

var testStatus = servicedef.ServiceStatus{
	Description:  "fake control plane",
	Capabilities: []string{"branches", "respec"},
}

// fakeControlPlane routes the root status/provision resources and one
// environment's sub-resources, recording every request.
func fakeControlPlane(t *testing.T, envHandler http.Handler) (*Client, <-chan httphelpers.HTTPRequestInfo) {
	t.Helper()

	mux := http.NewServeMux()
	mux.Handle("/environments/", envHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "GET":
			httphelpers.HandlerWithJSONResponse(testStatus, nil).ServeHTTP(w, r)
		case "POST":
			w.Header().Set("Location", "/environments/1")
			w.WriteHeader(201)
		default:
			w.WriteHeader(405)
		}
	})
	handler, requestsCh := httphelpers.RecordingHandler(mux)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(server.URL, time.Second, logging.NullLogger(), io.Discard)
	require.NoError(t, err)
	<-requestsCh // drop the status query
	return client, requestsCh
}

func TestNewClientReadsCapabilities(t *testing.T) {
	client, _ := fakeControlPlane(t, httphelpers.HandlerWithStatus(404))

	assert.Equal(t, []string{"branches", "respec"}, client.Capabilities())
	assert.True(t, client.HasCapability("respec"))
	assert.False(t, client.HasCapability("metrics-json"))
}

func TestMissingCapabilities(t *testing.T) {
	client, _ := fakeControlPlane(t, httphelpers.HandlerWithStatus(404))

	missing := client.MissingCapabilities([]string{"branches", "metrics-json", "respec", "compute-log"})
	assert.Equal(t, []string{"metrics-json", "compute-log"}, missing)
	assert.Empty(t, client.MissingCapabilities([]string{"branches"}))
}

func TestNewClientTimesOutWhenServiceNeverAnswers(t *testing.T) {
	// A port that nothing is listening on.
	_, err := NewClient("http://127.0.0.1:9", time.Millisecond*300, logging.NullLogger(), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestNewClientRejectsNon200Status(t *testing.T) {
	server := httptest.NewServer(httphelpers.HandlerWithStatus(500))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second, logging.NullLogger(), io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code 500")
}

func TestCreateEnvironmentResolvesRelativeLocation(t *testing.T) {
	client, requestsCh := fakeControlPlane(t, httphelpers.HandlerWithStatus(204))

	env, err := client.CreateEnvironment(servicedef.CreateEnvironmentParams{
		NumSafekeepers: ldvalue.NewOptionalInt(3),
	}, nil)
	require.NoError(t, err)

	req := <-requestsCh
	assert.Equal(t, "POST", req.Request.Method)
	var params servicedef.CreateEnvironmentParams
	require.NoError(t, json.Unmarshal(req.Body, &params))
	assert.Equal(t, 3, params.NumSafekeepers.IntValue())

	require.NoError(t, env.Destroy())
	req = <-requestsCh
	assert.Equal(t, "DELETE", req.Request.Method)
	assert.Equal(t, "/environments/1", req.Request.URL.Path)
}

func TestCreateEnvironmentSurfacesErrorBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" {
			httphelpers.HandlerWithJSONResponse(testStatus, nil).ServeHTTP(w, r)
			return
		}
		w.WriteHeader(503)
		_, _ = w.Write([]byte("no capacity"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(server.URL, time.Second, logging.NullLogger(), io.Discard)
	require.NoError(t, err)

	_, err = client.CreateEnvironment(servicedef.CreateEnvironmentParams{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "no capacity")
}

func TestCreateEnvironmentRequiresLocationHeader(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" {
			httphelpers.HandlerWithJSONResponse(testStatus, nil).ServeHTTP(w, r)
			return
		}
		w.WriteHeader(201)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(server.URL, time.Second, logging.NullLogger(), io.Discard)
	require.NoError(t, err)

	_, err = client.CreateEnvironment(servicedef.CreateEnvironmentParams{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Location")
}

func TestCreateBranchPostsParams(t *testing.T) {
	client, requestsCh := fakeControlPlane(t, locationHandler("/environments/1/branches/test_migrations", nil))

	env, err := client.CreateEnvironment(servicedef.CreateEnvironmentParams{}, nil)
	require.NoError(t, err)
	<-requestsCh // drop the provision request

	require.NoError(t, env.CreateBranch("test_migrations", servicedef.AncestorEmpty))

	req := <-requestsCh
	assert.Equal(t, "/environments/1/branches", req.Request.URL.Path)
	var params servicedef.CreateBranchParams
	require.NoError(t, json.Unmarshal(req.Body, &params))
	assert.Equal(t, "test_migrations", params.Name)
	assert.Equal(t, "empty", params.Ancestor)
}

func TestCreateEndpointParsesInfo(t *testing.T) {
	info := servicedef.EndpointInfo{
		PgConnstr: "postgres://cloud_admin@127.0.0.1:55432/postgres",
		Host:      "127.0.0.1",
		HTTPPort:  ldvalue.NewOptionalInt(55433),
		DataDir:   "/tmp/endpoints/ep-1",
	}
	client, requestsCh := fakeControlPlane(t, locationHandler("/environments/1/endpoints/1", info))

	env, err := client.CreateEnvironment(servicedef.CreateEnvironmentParams{}, nil)
	require.NoError(t, err)
	<-requestsCh

	endpoint, err := env.CreateEndpoint("test_startup")
	require.NoError(t, err)
	<-requestsCh

	assert.Equal(t, "test_startup", endpoint.Branch())
	assert.Equal(t, info, endpoint.Info())
	assert.Equal(t, "/tmp/endpoints/ep-1/compute.log", endpoint.LogPath())
}

// locationHandler responds 201 with a Location header and an optional JSON body.
func locationHandler(location string, body interface{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", location)
		if body == nil {
			w.WriteHeader(201)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(201)
		_ = json.NewEncoder(w).Encode(body)
	})
}
