/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type memStore struct{ m map[string]string }

func newMemStore() *memStore { return &memStore{m: map[string]string{}} }

func (s *memStore) Get(service, key string) (string, error) {
	v, ok := s.m[service+"/"+key]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (s *memStore) Set(service, key, value string) error {
	s.m[service+"/"+key] = value
	return nil
}

func (s *memStore) Delete(service, key string) error {
	delete(s.m, service+"/"+key)
	return nil
}

func withTempHome(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.Coordinator.BaseURL != "http://localhost:8080" {
		t.Errorf("base url %q", d.Coordinator.BaseURL)
	}
	if d.Generation.ProgressPollMs != 3000 || d.Generation.RefreshDelayMs != 1500 {
		t.Errorf("generation defaults %+v", d.Generation)
	}
	if d.Logging.Level != "info" || d.Logging.Format != "console" {
		t.Errorf("logging defaults %+v", d.Logging)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	withTempHome(t)
	prev := SetTokenStore(newMemStore())
	defer SetTokenStore(prev)

	cfg := Defaults()
	cfg.Coordinator.BaseURL = "https://certs.example.org"
	cfg.Generation.ProgressPollMs = 5000
	cfg.Logging.Level = "debug"
	if err := Save(cfg, "secret-token"); err != nil {
		t.Fatal(err)
	}

	got, tok, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Coordinator.BaseURL != "https://certs.example.org" {
		t.Errorf("base url %q", got.Coordinator.BaseURL)
	}
	if got.Generation.ProgressPollMs != 5000 {
		t.Errorf("poll ms %d", got.Generation.ProgressPollMs)
	}
	if got.Logging.Level != "debug" {
		t.Errorf("level %q", got.Logging.Level)
	}
	if tok != "secret-token" {
		t.Errorf("token %q", tok)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	withTempHome(t)
	prev := SetTokenStore(newMemStore())
	defer SetTokenStore(prev)

	cfg := Defaults()
	cfg.Coordinator.BaseURL = "http://file-value:9999"
	if err := Save(cfg, ""); err != nil {
		t.Fatal(err)
	}
	t.Setenv(EnvCoordinatorURL, "http://env-value:8080")
	t.Setenv(EnvProgressPollMs, "1000")
	t.Setenv(EnvLogFormat, "JSON")

	got, _, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Coordinator.BaseURL != "http://env-value:8080" {
		t.Errorf("env did not win: %q", got.Coordinator.BaseURL)
	}
	if got.Generation.ProgressPollMs != 1000 {
		t.Errorf("poll ms %d", got.Generation.ProgressPollMs)
	}
	if got.Logging.Format != "json" {
		t.Errorf("format not normalized: %q", got.Logging.Format)
	}
}

func TestEnvOverrideFor(t *testing.T) {
	if _, ok := EnvOverrideFor("coordinator.base_url"); ok {
		t.Fatalf("override reported without env set")
	}
	t.Setenv(EnvCoordinatorURL, "http://x")
	name, ok := EnvOverrideFor("coordinator.base_url")
	if !ok || name != EnvCoordinatorURL {
		t.Fatalf("got %q %v", name, ok)
	}
	if _, ok := EnvOverrideFor("no.such.key"); ok {
		t.Fatalf("unknown key reported as overridden")
	}
}

func TestDurationHelpers(t *testing.T) {
	var g GenerationConfig
	if g.PollInterval() != 3*time.Second {
		t.Errorf("zero poll interval = %v", g.PollInterval())
	}
	if g.RefreshDelay() != 1500*time.Millisecond {
		t.Errorf("zero refresh delay = %v", g.RefreshDelay())
	}
	var c CoordinatorConfig
	if c.Timeout() != 15*time.Second {
		t.Errorf("zero timeout = %v", c.Timeout())
	}
	c.TimeoutMs = 250
	if c.Timeout() != 250*time.Millisecond {
		t.Errorf("timeout = %v", c.Timeout())
	}
}

func TestConfigPathScopesToUser(t *testing.T) {
	withTempHome(t)
	p, err := ConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(p) != "config.yaml" {
		t.Errorf("path %q", p)
	}
	if _, err := os.Stat(filepath.Dir(p)); err == nil {
		t.Logf("config dir pre-exists: %s", filepath.Dir(p))
	}
}
