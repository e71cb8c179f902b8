// Package immport is a thin client for the ImmPort query API: one call to
// obtain a bearer token and one call per (endpoint, study) to fetch result
// records. Requests are made once; retry policy is the caller's concern.
package immport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hipc-validation/virus-strain-validator/pkg/config"
	apperr "github.com/hipc-validation/virus-strain-validator/pkg/errors"
	"github.com/hipc-validation/virus-strain-validator/pkg/logger"
)

// Endpoints supported by the validator, keyed by short name.
var Endpoints = map[string]Endpoint{
	"hai": {
		Name:        "hai",
		Description: "Hemagglutination Inhibition",
	},
	"neutAbTiter": {
		Name:        "neutAbTiter",
		Description: "Virus Neutralization",
	},
}

// Endpoint describes one ImmPort result endpoint.
type Endpoint struct {
	Name        string
	Description string
}

// Record is one result row returned by the API, keyed by field name.
type Record map[string]any

// StringField renders a record field as a string; nil fields render empty.
func (r Record) StringField(name string) string {
	v, ok := r[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Client talks to the ImmPort auth and query services.
type Client struct {
	cfg    config.ImmPortConfig
	http   *http.Client
	logger *slog.Logger
}

// New creates a Client from config.
func New(cfg config.ImmPortConfig) *Client {
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.WithComponent("immport-client"),
	}
}

// Authenticate exchanges a username and password for a bearer token.
func (c *Client) Authenticate(ctx context.Context, username, password string) (string, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("building auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting auth token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", apperr.Newf(apperr.ErrUnauthorized, resp.StatusCode,
			"auth token request returned %s", resp.Status)
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decoding auth response: %w", err)
	}
	if payload.Token == "" {
		return "", fmt.Errorf("auth response carried no token")
	}
	c.logger.Info("authenticated with immport")
	return payload.Token, nil
}

// FetchStudy retrieves the result records of one endpoint for one study
// accession.
func (c *Client) FetchStudy(ctx context.Context, token, endpoint, studyID string) ([]Record, error) {
	if _, ok := Endpoints[endpoint]; !ok {
		return nil, apperr.Newf(apperr.ErrUnknownEndpoint, http.StatusNotFound,
			"endpoint %q", endpoint)
	}
	query := fmt.Sprintf("%s/result/%s?studyAccession=%s",
		strings.TrimRight(c.cfg.QueryURL, "/"), endpoint, url.QueryEscape(studyID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, query, nil)
	if err != nil {
		return nil, fmt.Errorf("building query request: %w", err)
	}
	req.Header.Set("Authorization", "bearer "+token)

	c.logger.Debug("fetching study data", "endpoint", endpoint, "study", studyID)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s data for %s: %w", endpoint, studyID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query for %s/%s returned %s", endpoint, studyID, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading query response: %w", err)
	}
	return DecodeRecords(body)
}

// DecodeRecords parses an API payload into records. The API returns either
// a bare JSON array or an object with the rows under "content".
func DecodeRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		Content []Record `json:"content"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding study records: %w", err)
	}
	return wrapped.Content, nil
}
