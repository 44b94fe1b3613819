package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ScanClient implements ScanProvider against the scan source's REST API.
type ScanClient struct {
	client  *http.Client
	token   string
	baseURL string
	logger  logrus.FieldLogger
}

// Ensure ScanClient implements ScanProvider at compile time.
var _ ScanProvider = (*ScanClient)(nil)

// NewScanClient creates a scan provider client authenticated with a
// bearer token.
func NewScanClient(token, baseURL string, timeout time.Duration, logger logrus.FieldLogger) *ScanClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ScanClient{
		client:  &http.Client{Timeout: timeout},
		token:   token,
		baseURL: baseURL,
		logger:  logger,
	}
}

type scanListResponse struct {
	Scans []ScanDescriptor `json:"scans"`
}

// ListScans returns the scans saved at the provider.
func (s *ScanClient) ListScans(ctx context.Context) ([]ScanDescriptor, error) {
	var resp scanListResponse
	if err := s.get(ctx, s.baseURL+"/scans", &resp); err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	return resp.Scans, nil
}

// RunScan executes one saved scan and returns its result rows.
func (s *ScanClient) RunScan(ctx context.Context, id int64) (*ScanResultSet, error) {
	var resp ScanResultSet
	if err := s.get(ctx, fmt.Sprintf("%s/scans/%d/run", s.baseURL, id), &resp); err != nil {
		return nil, fmt.Errorf("running scan %d: %w", id, err)
	}
	return &resp, nil
}

func (s *ScanClient) get(ctx context.Context, endpoint string, response interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", "Bearer "+s.token)
	req.Header.Add("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			s.logger.WithError(cerr).Warn("failed to close response body")
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, rerr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if rerr != nil {
			return &APIError{Status: resp.StatusCode, Body: "failed to read error body"}
		}
		return &APIError{Status: resp.StatusCode, Body: string(body)}
	}
	return json.NewDecoder(resp.Body).Decode(response)
}
