// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passgate/passgate/internal/config"
	"github.com/passgate/passgate/pkg/errutil"
)

func runConfigCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewConfigCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "passgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigValidate(t *testing.T) {
	isolateEnv(t)
	path := writeFile(t, "store:\n  driver: memory\njwt:\n  secret: "+testSecret+"\n")

	out, err := runConfigCmd(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "valid")
}

func TestConfigValidateRejects(t *testing.T) {
	isolateEnv(t)
	t.Setenv("PASSGATE_JWT_SECRET", "")

	_, err := runConfigCmd(t, "validate", writeFile(t, "jwt:\n  ttl: soon\n"))
	errutil.AssertErrorCode(t, err, "CONFIG_SCHEMA_VIOLATION")

	_, err = runConfigCmd(t, "validate", writeFile(t, "store:\n  driver: memory\n"))
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")

	_, err = runConfigCmd(t, "validate", filepath.Join(t.TempDir(), "missing.yaml"))
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}

func TestConfigSchema(t *testing.T) {
	out, err := runConfigCmd(t, "schema")
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	assert.Equal(t, config.SchemaID, schema["$id"])
}
