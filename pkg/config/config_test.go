/*
 * Copyright 2025 Statewatch Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errAlwaysInvalid = errors.New("always invalid")

type testConfig struct {
	Name     string   `json:"name"`
	Port     int      `json:"port"`
	Debug    bool     `json:"debug"`
	Interval Duration `json:"interval"`
	Tags     []string `json:"tags"`
}

type validatedConfig struct {
	testConfig
}

func (*validatedConfig) Validate() error {
	return errAlwaysInvalid
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestFileConfigLoader(t *testing.T) {
	path := writeConfigFile(t, `{
		"name": "statewatch",
		"port": 8080,
		"debug": true,
		"interval": "30s",
		"tags": ["a", "b"]
	}`)

	var cfg testConfig

	loader := &FileConfigLoader{}
	require.NoError(t, loader.Load(context.Background(), path, &cfg))

	assert.Equal(t, "statewatch", cfg.Name)
	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 30*time.Second, cfg.Interval.Duration())
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
}

func TestFileConfigLoaderErrors(t *testing.T) {
	loader := &FileConfigLoader{}

	var cfg testConfig

	err := loader.Load(context.Background(), "/does/not/exist.json", &cfg)
	assert.Error(t, err)

	path := writeConfigFile(t, `{not json`)
	err = loader.Load(context.Background(), path, &cfg)
	assert.Error(t, err)
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfigFile(t, `{"name": "ok"}`)

	var cfg testConfig

	c := NewConfig(nil)
	require.NoError(t, c.LoadAndValidate(context.Background(), path, &cfg))
	assert.Equal(t, "ok", cfg.Name)
}

func TestLoadAndValidateRunsValidator(t *testing.T) {
	path := writeConfigFile(t, `{"name": "ok"}`)

	var cfg validatedConfig

	c := NewConfig(nil)
	err := c.LoadAndValidate(context.Background(), path, &cfg)
	assert.ErrorIs(t, err, errAlwaysInvalid)
}

func TestLoaderForSource(t *testing.T) {
	c := NewConfig(nil)

	t.Setenv("CONFIG_SOURCE", "")

	loader, err := c.loaderForSource()
	require.NoError(t, err)
	assert.IsType(t, &FileConfigLoader{}, loader)

	t.Setenv("CONFIG_SOURCE", "env")

	loader, err = c.loaderForSource()
	require.NoError(t, err)
	assert.IsType(t, &EnvConfigLoader{}, loader)

	t.Setenv("CONFIG_SOURCE", "consul")

	_, err = c.loaderForSource()
	assert.ErrorIs(t, err, errInvalidConfigSource)
}

func TestEnvConfigLoader(t *testing.T) {
	t.Setenv("TEST_NAME", "from-env")
	t.Setenv("TEST_PORT", "9090")
	t.Setenv("TEST_DEBUG", "true")
	t.Setenv("TEST_TAGS", "x, y,z")

	var cfg testConfig

	loader := NewEnvConfigLoader(nil, "TEST_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, []string{"x", "y", "z"}, cfg.Tags)
}

func TestEnvConfigLoaderJSONOverride(t *testing.T) {
	t.Setenv("TEST_CONFIG_JSON", `{"name": "from-json", "port": 1234}`)
	t.Setenv("TEST_NAME", "ignored")

	var cfg testConfig

	loader := NewEnvConfigLoader(nil, "TEST_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "from-json", cfg.Name)
	assert.Equal(t, 1234, cfg.Port)
}

func TestEnvConfigLoaderNestedStruct(t *testing.T) {
	type inner struct {
		URL string `json:"url"`
	}

	type outer struct {
		NATS inner `json:"nats"`
	}

	t.Setenv("TEST_NATS_URL", "nats://localhost:4222")

	var cfg outer

	loader := NewEnvConfigLoader(nil, "TEST_")
	require.NoError(t, loader.Load(context.Background(), "", &cfg))

	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestEnvConfigLoaderRejectsNonPointer(t *testing.T) {
	loader := NewEnvConfigLoader(nil, "TEST_")

	assert.ErrorIs(t, loader.Load(context.Background(), "", nil), ErrDstMustBeNonNilPointer)

	var s string

	assert.ErrorIs(t, loader.Load(context.Background(), "", &s), ErrDstMustBePointerToStruct)
}
