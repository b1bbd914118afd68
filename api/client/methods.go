package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/zkpresence/zkpresence/api"
	"github.com/zkpresence/zkpresence/storage/groups"
)

// SubmitProof submits a presence proof and returns the acceptance receipt.
func (c *HTTPclient) SubmitProof(req *api.SubmitProofRequest) (*api.SubmitProofResponse, error) {
	data, status, err := c.Request(HTTPPOST, req, nil, api.ProofsEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	resp := &api.SubmitProofResponse{}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return resp, nil
}

// Proofs lists stored proofs, newest first. Zero limit uses the server cap.
func (c *HTTPclient) Proofs(limit int) (*api.ProofList, error) {
	return c.proofList(limit, api.ProofsEndpoint)
}

// ProofsBySchool lists the proofs submitted against the given anchor.
func (c *HTTPclient) ProofsBySchool(anchor string, limit int) (*api.ProofList, error) {
	return c.proofList(limit, api.ProofsEndpoint, "school", anchor)
}

func (c *HTTPclient) proofList(limit int, urlPath ...string) (*api.ProofList, error) {
	var params []string
	if limit > 0 {
		params = []string{"limit", strconv.Itoa(limit)}
	}
	data, status, err := c.Request(HTTPGET, nil, params, urlPath...)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	list := &api.ProofList{}
	if err := json.Unmarshal(data, list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return list, nil
}

// NewGroup registers a group under the given anchor.
func (c *HTTPclient) NewGroup(req *api.NewGroupRequest) (*groups.GroupSummary, error) {
	data, status, err := c.Request(HTTPPOST, req, nil, api.GroupsEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	summary := &groups.GroupSummary{}
	if err := json.Unmarshal(data, summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return summary, nil
}

// Groups lists all registered groups.
func (c *HTTPclient) Groups() (*api.GroupList, error) {
	data, status, err := c.Request(HTTPGET, nil, nil, api.GroupsEndpoint)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	list := &api.GroupList{}
	if err := json.Unmarshal(data, list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return list, nil
}

// Group fetches a single group by anchor.
func (c *HTTPclient) Group(anchor string) (*groups.GroupSummary, error) {
	data, status, err := c.Request(HTTPGET, nil, nil, api.GroupsEndpoint, anchor)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	summary := &groups.GroupSummary{}
	if err := json.Unmarshal(data, summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return summary, nil
}

// Demographics fetches the aggregated statistics of a group.
func (c *HTTPclient) Demographics(anchor string) (*api.DemographicsSummary, error) {
	data, status, err := c.Request(HTTPGET, nil, nil, "demographics", anchor)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%s: %d (%s)", errCodeNot200, status, data)
	}
	summary := &api.DemographicsSummary{}
	if err := json.Unmarshal(data, summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return summary, nil
}
