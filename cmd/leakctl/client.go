package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bryanwahyu/leakwatch/internal/domain/assets"
)

// reply mirrors the API envelope; Data stays raw for --json.
type reply struct {
	Kind string          `json:"kind"`
	Text string          `json:"text"`
	Data json.RawMessage `json:"data"`
}

type apiClient struct {
	base string
	user string
	http *http.Client
}

func newAPIClient(base, user string, timeout time.Duration) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		user: user,
		http: &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *apiClient) triggerScan(ctx context.Context) (*assets.ScanResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/scans", nil)
	if err != nil {
		return nil, err
	}
	var res assets.ScanResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *apiClient) latestScan(ctx context.Context) (*assets.ScanResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/scans/latest", nil)
	if err != nil {
		return nil, err
	}
	var res assets.ScanResult
	if err := c.do(req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *apiClient) command(ctx context.Context, line string) (*reply, error) {
	body, err := json.Marshal(map[string]string{"line": line, "user_id": c.user})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/commands", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	var r reply
	if err := c.do(req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *apiClient) upload(ctx context.Context, path string) (*reply, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("user_id", c.user); err != nil {
		return nil, err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/uploads", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var r reply
	if err := c.do(req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
