package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServeRejectsMissingConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	err := newApp().Run([]string{"admin-auth-server", "--config", missing})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config file")
}

func TestAppFlags(t *testing.T) {
	app := newApp()
	names := map[string]bool{}
	for _, f := range app.Flags {
		for _, n := range f.Names() {
			names[n] = true
		}
	}
	assert.True(t, names["config"])
	assert.True(t, names["c"])
	assert.True(t, names["env-prefix"])
}
