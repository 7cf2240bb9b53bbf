// Package servicedef contains the JSON request and response types shared
// with the control-plane service that the harness drives.
package servicedef

import "gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"

const (
	CommandStart   = "start"
	CommandStop    = "stop"
	CommandDestroy = "destroy"
	CommandRespec  = "respec"
)

// AncestorEmpty creates a branch with no pre-existing data.
const AncestorEmpty = "empty"

// ServiceStatus is returned by the control plane's root status resource.
type ServiceStatus struct {
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities"`
}

// CreateEnvironmentParams asks the control plane to provision an isolated
// instance of the database service.
type CreateEnvironmentParams struct {
	Tag string `json:"tag,omitempty"`
	// NumSafekeepers is the replica/quorum count for the durability layer.
	// When unset the control plane uses its default.
	NumSafekeepers ldvalue.OptionalInt `json:"numSafekeepers,omitempty"`
}

// CreateBranchParams creates a lightweight copy-on-write logical database
// derived from the ancestor's state.
type CreateBranchParams struct {
	Name     string `json:"name"`
	Ancestor string `json:"ancestor,omitempty"`
}

type CreateEndpointParams struct {
	Branch string `json:"branch"`
}

// EndpointSpec is the reconfigurable part of an endpoint, applied via the
// respec command while the endpoint is stopped.
type EndpointSpec struct {
	SkipPgCatalogUpdates bool `json:"skipPgCatalogUpdates"`
}

type CommandParams struct {
	Command string        `json:"command"`
	Spec    *EndpointSpec `json:"spec,omitempty"`
}

// EndpointInfo describes a compute endpoint's externally reachable surfaces.
// It is returned when an endpoint is created and refreshed on every start,
// since the connection string and HTTP port can change across restarts.
type EndpointInfo struct {
	// PgConnstr is a Postgres connection URI for the endpoint's SQL surface.
	PgConnstr string `json:"pgConnstr"`
	// Host and HTTPPort locate the endpoint's HTTP surface, which serves
	// /metrics.json.
	Host     string              `json:"host"`
	HTTPPort ldvalue.OptionalInt `json:"httpPort"`
	// DataDir is the endpoint's working directory on the shared host. The
	// process log is a plain-text file at <DataDir>/compute.log.
	DataDir string `json:"dataDir"`
}
