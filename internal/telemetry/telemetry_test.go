/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("CST_TELEMETRY_OPT_IN", "yes")
	t.Setenv("CST_TELEMETRY_URL", " https://example.com/events ")
	t.Setenv("CST_TELEMETRY_TIMEOUT_MS", "250")
	cfg := FromEnv()
	if !cfg.OptIn {
		t.Fatal("opt-in not parsed")
	}
	if cfg.EventsURL != "https://example.com/events" {
		t.Fatalf("events url %q", cfg.EventsURL)
	}
	if cfg.Timeout != 250*time.Millisecond {
		t.Fatalf("timeout %v", cfg.Timeout)
	}

	t.Setenv("CST_TELEMETRY_OPT_IN", "nope")
	if FromEnv().OptIn {
		t.Fatal("bad value enabled opt-in")
	}
}

func TestEventPayloadFields(t *testing.T) {
	got := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		_ = json.NewDecoder(r.Body).Decode(&m)
		select {
		case got <- m:
		default:
		}
	}))
	defer srv.Close()

	c := New(Config{OptIn: true, EventsURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	c.Event("layout_save", map[string]any{"blocks": 5})
	c.Flush(context.Background())

	select {
	case m := <-got:
		if m["name"] != "layout_save" {
			t.Fatalf("name %v", m["name"])
		}
		if m["blocks"] != float64(5) {
			t.Fatalf("blocks %v", m["blocks"])
		}
		for _, k := range []string{"ts", "version", "os", "arch"} {
			if m[k] == nil || m[k] == "" {
				t.Errorf("missing %s", k)
			}
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never arrived")
	}
}

func TestDisabledClientSendsNothing(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, CrashURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	if c.Enabled() {
		t.Fatal("client enabled without opt-in")
	}
	c.Event("editor_open", nil)
	c.Event("", nil)
	c.UploadCrash([]byte("ignored"))
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("%d requests from a disabled client", hits)
	}
}

func TestOptInWithoutURLIsDisabled(t *testing.T) {
	c := New(Config{OptIn: true, Timeout: time.Second})
	defer c.Close()
	if c.Enabled() {
		t.Fatal("enabled without an endpoint")
	}
}

func TestUploadCrash(t *testing.T) {
	got := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 1024)
		n, _ := r.Body.Read(buf)
		select {
		case got <- buf[:n]:
		default:
		}
	}))
	defer srv.Close()

	c := New(Config{OptIn: true, CrashURL: srv.URL, Timeout: time.Second})
	defer c.Close()
	c.UploadCrash([]byte("panic: boom"))
	select {
	case b := <-got:
		if string(b) != "panic: boom" {
			t.Fatalf("body %q", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("crash report never arrived")
	}
}

// Unroutable address: the send and upload error paths must not panic.
func TestSendErrorBranches(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	defer c.Close()
	c.Event("batch_start", map[string]any{"total": 20})
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
	time.Sleep(50 * time.Millisecond)
}
