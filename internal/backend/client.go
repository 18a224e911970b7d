/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package backend holds both halves of the coordinator API: the HTTP
// client the editor talks through, and the coordinator server itself.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"certstudio/internal/domain"
)

// Batch actions the coordinator accepts.
const (
	ActionGenerate   = "start_generation"
	ActionSend       = "start_sending"
	ActionIndividual = "generate_individual"
)

// Client is the HTTP client for the certificate coordinator API.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a coordinator client. baseURL may include a trailing
// slash; it will be normalized.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SetTimeout overrides the default HTTP timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.client.Timeout = d
	}
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("coordinator %s %s: %s", method, u.Path, resp.Status)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, dest any) error {
	var body io.Reader
	contentType := ""
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}
	resp, err := c.do(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// GetLayout fetches the persisted layout document for a course. The raw
// bytes go straight to layout.Decode, which tolerates the legacy
// double-encoded form.
func (c *Client) GetLayout(ctx context.Context, courseID int64) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/courses/%d/layout", courseID), "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// PutLayout persists a layout document for a course. imageIDs names the
// blocks referencing uploaded images so the server can pin those files.
func (c *Client) PutLayout(ctx context.Context, courseID int64, doc []byte, imageIDs []string) error {
	payload := map[string]any{
		"layout":    json.RawMessage(doc),
		"image_ids": imageIDs,
	}
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/api/courses/%d/layout", courseID), payload, nil)
}

// UploadImage sends an image for use in image blocks and returns the
// served URL.
func (c *Client) UploadImage(ctx context.Context, courseID int64, filename string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/courses/%d/images", courseID), mw.FormDataContentType(), &buf)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var out struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("upload response missing url")
	}
	return out.URL, nil
}

// StartBatch asks the coordinator to start a generation or sending batch
// for a course and returns the batch id. For ActionIndividual, cedula
// selects the single student.
func (c *Client) StartBatch(ctx context.Context, courseID int64, action, cedula string) (string, error) {
	payload := map[string]string{"action": action}
	if cedula != "" {
		payload["cedula"] = cedula
	}
	var out struct {
		BatchID string `json:"batch_id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/courses/%d/batches", courseID), payload, &out); err != nil {
		return "", err
	}
	if out.BatchID == "" {
		return "", fmt.Errorf("coordinator did not return a batch id")
	}
	return out.BatchID, nil
}

// ActiveBatch asks the coordinator whether the course has a batch still
// pending or processing, returning its id or "" when none is in flight.
// A reloading editor uses this to decide whether to resume the progress
// overlay; the coordinator, not client state, is the source of truth.
func (c *Client) ActiveBatch(ctx context.Context, courseID int64) (string, error) {
	var out struct {
		BatchID string `json:"batch_id"`
	}
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/courses/%d/batches", courseID), nil, &out); err != nil {
		return "", err
	}
	return out.BatchID, nil
}

// Progress fetches the status snapshot for a running batch.
func (c *Client) Progress(ctx context.Context, batchID string) (domain.ProgressSnapshot, error) {
	var snap domain.ProgressSnapshot
	err := c.doJSON(ctx, http.MethodGet, "/api/batches/"+url.PathEscape(batchID)+"/progress", nil, &snap)
	return snap, err
}

// DownloadArchive streams the finished batch's certificate ZIP. The
// caller owns the returned reader.
func (c *Client) DownloadArchive(ctx context.Context, batchID string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/batches/"+url.PathEscape(batchID)+"/archive", "", nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// LayoutStore binds a Client to one course and satisfies the editor's
// document store.
type LayoutStore struct {
	Client   *Client
	CourseID int64
}

func (s *LayoutStore) Load(ctx context.Context) ([]byte, error) {
	return s.Client.GetLayout(ctx, s.CourseID)
}

func (s *LayoutStore) Store(ctx context.Context, doc []byte, imageIDs []string) error {
	return s.Client.PutLayout(ctx, s.CourseID, doc, imageIDs)
}

// ProgressSource binds a Client to one batch and satisfies the progress
// poller's fetcher.
type ProgressSource struct {
	Client  *Client
	BatchID string
}

func (s *ProgressSource) Fetch(ctx context.Context) (domain.ProgressSnapshot, error) {
	return s.Client.Progress(ctx, s.BatchID)
}
