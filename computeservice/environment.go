package computeservice

import (
	"encoding/json"
	"fmt"

	"github.com/pgcompute/compute-contract-tests/logging"
	"github.com/pgcompute/compute-contract-tests/servicedef"
)

// Environment is one provisioned, isolated instance of the database service.
// It owns its branches and endpoints; destroying it tears all of them down.
type Environment struct {
	resourceURL string
	logger      logging.Logger
}

// Destroy tears down the environment and everything in it.
func (e *Environment) Destroy() error {
	e.logger.Printf("Destroying environment %s", e.resourceURL)
	return deleteResource(e.resourceURL)
}

// CreateBranch creates a copy-on-write logical database derived from the
// ancestor's state. Pass servicedef.AncestorEmpty for a branch with no
// pre-existing data, or "" for the control plane's default base state.
func (e *Environment) CreateBranch(name, ancestor string) error {
	params := servicedef.CreateBranchParams{Name: name, Ancestor: ancestor}
	data, err := json.Marshal(params)
	if err != nil {
		return err
	}
	e.logger.Printf("Creating branch with parameters: %s", string(data))
	_, _, err = postForResource(e.resourceURL+"/branches", e.resourceURL, data)
	return err
}

// CreateEndpoint creates a compute endpoint bound to the named branch. The
// endpoint starts in the stopped state; call Start to make it query-capable.
func (e *Environment) CreateEndpoint(branch string) (*Endpoint, error) {
	params := servicedef.CreateEndpointParams{Branch: branch}
	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	e.logger.Printf("Creating endpoint with parameters: %s", string(data))
	resourceURL, respBody, err := postForResource(e.resourceURL+"/endpoints", e.resourceURL, data)
	if err != nil {
		return nil, err
	}

	var info servicedef.EndpointInfo
	if len(respBody) != 0 {
		if err := json.Unmarshal(respBody, &info); err != nil {
			return nil, fmt.Errorf("malformed endpoint info from control plane: %s", string(respBody))
		}
	}

	return &Endpoint{
		env:         e,
		branch:      branch,
		resourceURL: resourceURL,
		logger:      e.logger,
		info:        info,
	}, nil
}

// CreateStartEndpoint creates an endpoint on the named branch and starts it.
// The call returns only once the service reports the endpoint ready for
// queries.
func (e *Environment) CreateStartEndpoint(branch string) (*Endpoint, error) {
	endpoint, err := e.CreateEndpoint(branch)
	if err != nil {
		return nil, err
	}
	if err := endpoint.Start(); err != nil {
		return nil, err
	}
	return endpoint, nil
}
