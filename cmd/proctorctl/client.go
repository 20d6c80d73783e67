package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"proctor/internal/config"
)

// commandContext carries the persistent flag values shared by every
// subcommand and resolves the daemon address lazily.
type commandContext struct {
	serverFlag *string
	configFlag *string
}

func newCommandContext(serverFlag, configFlag *string) *commandContext {
	return &commandContext{serverFlag: serverFlag, configFlag: configFlag}
}

// client resolves the daemon address from --server, falling back to the
// configured API bind address.
func (c *commandContext) client() (*apiClient, error) {
	address := strings.TrimSpace(*c.serverFlag)
	if address == "" {
		cfg, _, _, err := config.Load(strings.TrimSpace(*c.configFlag))
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
		address = cfg.Paths.APIBind
	}
	return newAPIClient(address), nil
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(address string) *apiClient {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return &apiClient{
		baseURL: strings.TrimRight(address, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, dest)
}

func (c *apiClient) post(ctx context.Context, path string, payload, dest any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dest)
}

func (c *apiClient) do(req *http.Request, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}
	if dest == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("%s (%s)", payload.Error, resp.Status)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}
