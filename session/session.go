// Package session holds an authenticated Salesforce session and the
// HTTP plumbing shared by the REST (Bulk API v2) and SOAP (Metadata
// API) clients.
package session

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Session struct {
	InstanceURL string
	AccessToken string
	APIVersion  string

	Client *http.Client
}

func New(instanceURL, accessToken, apiVersion string) *Session {
	return &Session{
		InstanceURL: strings.TrimSuffix(instanceURL, "/"),
		AccessToken: accessToken,
		APIVersion:  apiVersion,
		Client:      &http.Client{Timeout: 120 * time.Second},
	}
}

// RestURL builds a /services/data/<version>/... URL on the instance.
func (s *Session) RestURL(parts ...string) string {
	segments := append([]string{s.InstanceURL, "services", "data", s.APIVersion}, parts...)
	return strings.Join(segments, "/")
}

// SoapURL is the Metadata API SOAP endpoint. The path wants the bare
// version number without the "v" prefix.
func (s *Session) SoapURL() string {
	return fmt.Sprintf("%s/services/Soap/m/%s", s.InstanceURL, strings.TrimPrefix(s.APIVersion, "v"))
}

// Do performs an authenticated request and returns the response body.
// Any status >= 400 comes back as an *APIError; the session never
// retries on its own.
func (s *Session) Do(ctx context.Context, method, url, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", url, err)
	}

	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, NewAPIError(resp.StatusCode, respBody)
	}

	return respBody, nil
}
