// Package computeservice is the HTTP client for the control plane that
// provisions and manages instances of the database service under test.
//
// The control plane exposes a root endpoint for querying its status (GET) or
// provisioning a new isolated environment (POST). Each environment exposes
// sub-resources for branches and compute endpoints. The harness only ever
// observes the service through these public surfaces plus the endpoint's own
// SQL port, HTTP metrics port, and process log file.
package computeservice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pgcompute/compute-contract-tests/logging"
	"github.com/pgcompute/compute-contract-tests/servicedef"
)

const statusPollInterval = time.Millisecond * 100

// Client manages communication with the control plane.
type Client struct {
	baseURL      string
	logger       logging.Logger
	capabilities []string
}

// NewClient creates a Client and verifies that the control plane is
// responding by polling its status resource until it answers or the timeout
// expires.
func NewClient(
	baseURL string,
	timeout time.Duration,
	logger logging.Logger,
	startupOutput io.Writer,
) (*Client, error) {
	if logger == nil {
		logger = logging.NullLogger()
	}
	c := &Client{
		baseURL: baseURL,
		logger:  logger,
	}

	fmt.Fprintf(startupOutput, "Connecting to control plane at %s", baseURL)
	deadline := time.Now().Add(timeout)
	for {
		fmt.Fprintf(startupOutput, ".")
		resp, err := http.DefaultClient.Get(baseURL)
		if err == nil {
			fmt.Fprintln(startupOutput)
			if resp.StatusCode != 200 {
				return nil, fmt.Errorf("control plane returned status code %d", resp.StatusCode)
			}
			if resp.Body == nil {
				return nil, errors.New("control plane provided no status metadata")
			}
			respData, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, err
			}
			fmt.Fprintf(startupOutput, "Status query returned metadata: %s\n", string(respData))
			var status servicedef.ServiceStatus
			if err := json.Unmarshal(respData, &status); err != nil {
				return nil, fmt.Errorf("malformed status response from control plane: %s", string(respData))
			}
			c.capabilities = status.Capabilities
			return c, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("timed out, result of last query was: %w", err)
		}
		time.Sleep(statusPollInterval)
	}
}

// Capabilities returns the list of capabilities, if any, provided by the
// control plane's status resource.
func (c *Client) Capabilities() []string {
	return append([]string(nil), c.capabilities...)
}

func (c *Client) HasCapability(desired string) bool {
	for _, capability := range c.capabilities {
		if capability == desired {
			return true
		}
	}
	return false
}

// MissingCapabilities returns which of the desired capabilities the control
// plane did not advertise, in the order given.
func (c *Client) MissingCapabilities(desired []string) []string {
	var missing []string
	for _, capability := range desired {
		if !c.HasCapability(capability) {
			missing = append(missing, capability)
		}
	}
	return missing
}

// StopService tells the control plane that it should exit.
func (c *Client) StopService() error {
	req, _ := http.NewRequest("DELETE", c.baseURL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err == nil && resp.StatusCode >= 300 {
		return fmt.Errorf("control plane returned HTTP %d", resp.StatusCode)
	}
	// It's normal for the request to return an I/O error if the service
	// immediately quit before sending a response
	return nil
}

// CreateEnvironment asks the control plane to provision a new isolated
// instance of the database service. The environment remains provisioned
// until Destroy is called; no two scenarios share one.
func (c *Client) CreateEnvironment(
	params servicedef.CreateEnvironmentParams,
	logger logging.Logger,
) (*Environment, error) {
	if logger == nil {
		logger = c.logger
	}

	data, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	logger.Printf("Provisioning environment with parameters: %s", string(data))
	resourceURL, _, err := postForResource(c.baseURL, c.baseURL, data)
	if err != nil {
		return nil, err
	}
	logger.Printf("Environment provisioned at %s", resourceURL)

	return &Environment{
		resourceURL: resourceURL,
		logger:      logger,
	}, nil
}

// postForResource POSTs a JSON body and returns the created resource's URL
// from the Location header, along with the raw response body (which may be
// empty).
func postForResource(url, baseURL string, body []byte) (string, []byte, error) {
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", nil, err
	}
	req.Header.Add("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, err
	}
	var respBody []byte
	if resp.Body != nil {
		respBody, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := ""
		if len(respBody) != 0 {
			message = ": " + string(respBody)
		}
		return "", nil, fmt.Errorf("unexpected response status %d from control plane%s", resp.StatusCode, message)
	}
	resourceURL := resp.Header.Get("Location")
	if resourceURL == "" {
		return "", nil, errors.New("control plane did not return a Location header with a resource URL")
	}
	if !strings.HasPrefix(resourceURL, "http:") {
		resourceURL = baseURL + resourceURL
	}
	return resourceURL, respBody, nil
}

func deleteResource(url string) error {
	req, err := http.NewRequest("DELETE", url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	if resp.Body != nil {
		_ = resp.Body.Close()
	}
	if resp.StatusCode != 200 && resp.StatusCode != 204 {
		return fmt.Errorf("DELETE request to control plane returned HTTP status %d", resp.StatusCode)
	}
	return nil
}
