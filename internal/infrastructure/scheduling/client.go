// Package scheduling is the read-only client for the external scheduling
// service that owns departments. Lookups are consumed by the staff
// directory; the department data itself is never persisted here.
package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hvill/identity-service/internal/core/domain"
	"github.com/hvill/identity-service/internal/core/ports"
)

const clientTimeout = 10 * time.Second

// Client calls the scheduling service's department endpoints.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: clientTimeout},
	}
}

type departmentEnvelope struct {
	Data []ports.Department `json:"data"`
}

type singleDepartmentEnvelope struct {
	Data ports.Department `json:"data"`
}

// Departments lists every department known to the scheduling service.
func (c *Client) Departments(ctx context.Context) ([]ports.Department, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/department/view", nil)
	if err != nil {
		return nil, fmt.Errorf("build departments request: %w", err)
	}
	req.Header.Set("x-internal-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch departments: %w: %w", domain.ErrExternalTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch departments: backend returned %d: %w", resp.StatusCode, domain.ErrExternalTransient)
	}

	var envelope departmentEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode departments: %w", err)
	}
	return envelope.Data, nil
}

// DepartmentByID fetches a single department by id.
func (c *Client) DepartmentByID(ctx context.Context, id string) (*ports.Department, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/department/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("build department request: %w", err)
	}
	req.Header.Set("x-internal-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch department: %w: %w", domain.ErrExternalTransient, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var envelope singleDepartmentEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return nil, fmt.Errorf("decode department: %w", err)
		}
		return &envelope.Data, nil
	case http.StatusNotFound:
		return nil, fmt.Errorf("department %s: %w", id, domain.ErrDepartmentNotFound)
	default:
		return nil, fmt.Errorf("fetch department: backend returned %d: %w", resp.StatusCode, domain.ErrExternalTransient)
	}
}
