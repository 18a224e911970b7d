/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok-123")
	if _, err := c.GetLayout(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("auth header %q", gotAuth)
	}
}

func TestGetAndPutLayout(t *testing.T) {
	stored := []byte(`{"blk-1":{"type":"title","text_override":"CERTIFICADO","x_pct":20,"y_pct":10,"width_pct":60,"font_size":52,"color":"#111","opacity":1}}`)
	var putBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/courses/42/layout" {
			t.Errorf("path %q", r.URL.Path)
		}
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write(stored)
		case http.MethodPut:
			putBody, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"success":true}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	got, err := c.GetLayout(context.Background(), 42)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(stored) {
		t.Fatalf("layout bytes altered in transit")
	}

	if err := c.PutLayout(context.Background(), 42, stored, []string{"blk-img"}); err != nil {
		t.Fatal(err)
	}
	var req struct {
		Layout   json.RawMessage `json:"layout"`
		ImageIDs []string        `json:"image_ids"`
	}
	if err := json.Unmarshal(putBody, &req); err != nil {
		t.Fatal(err)
	}
	if len(req.ImageIDs) != 1 || req.ImageIDs[0] != "blk-img" {
		t.Fatalf("image ids %v", req.ImageIDs)
	}
}

func TestUploadImageReturnsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatal(err)
		}
		f, hdr, err := r.FormFile("image")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		if hdr.Filename != "sello.png" {
			t.Errorf("filename %q", hdr.Filename)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "/media/uploads/sello.png"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	u, err := c.UploadImage(context.Background(), 1, "sello.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if u != "/media/uploads/sello.png" {
		t.Fatalf("url %q", u)
	}
}

func TestStartBatchAndProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/courses/5/batches":
			var req map[string]string
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["action"] != ActionGenerate {
				t.Errorf("action %q", req["action"])
			}
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(map[string]any{"batch_id": "b-1", "total": 12})
		case r.Method == http.MethodGet && r.URL.Path == "/api/batches/b-1/progress":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"success": true, "progress": 50, "exitosos": 6, "fallidos": 0, "is_complete": false,
			})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	id, err := c.StartBatch(context.Background(), 5, ActionGenerate, "")
	if err != nil {
		t.Fatal(err)
	}
	if id != "b-1" {
		t.Fatalf("batch id %q", id)
	}

	src := &ProgressSource{Client: c, BatchID: id}
	snap, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Success || snap.Progress != 50 || snap.Exitosos != 6 || snap.IsComplete {
		t.Fatalf("snapshot %+v", snap)
	}
}

func TestClientSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	if _, err := c.Progress(context.Background(), "x"); err == nil {
		t.Fatalf("500 must surface as error")
	}
	if !strings.Contains(NewClient("http://x", "t").BaseURL, "http://x") {
		t.Fatalf("base url normalization broke")
	}
}

func TestActiveBatchLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/courses/9/batches" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"batch_id": "b-42"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "t")
	id, err := c.ActiveBatch(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if id != "b-42" {
		t.Fatalf("active batch %q", id)
	}
}

func TestActiveBatchEmptyWhenIdle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"batch_id": ""})
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL, "t").ActiveBatch(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if id != "" {
		t.Fatalf("idle course reported batch %q", id)
	}
}

func TestDownloadArchiveStreamsBody(t *testing.T) {
	payload := []byte("zip-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/batches/b-7/archive" {
			t.Errorf("path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	rc, err := NewClient(srv.URL, "t").DownloadArchive(context.Background(), "b-7")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("archive bytes altered in transit")
	}
}
