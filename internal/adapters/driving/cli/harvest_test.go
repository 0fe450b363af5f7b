package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHarvestCmd_Use(t *testing.T) {
	assert.Equal(t, "harvest [source-name]", harvestCmd.Use)
}

func TestHarvestCmd_Flags(t *testing.T) {
	assert.NotNil(t, harvestCmd.Flags().Lookup("read-only"))
	assert.NotNil(t, harvestCmd.Flags().Lookup("dry-run"))
}

func TestHarvestCmd_MissingConfigFails(t *testing.T) {
	originalPath := cfgPath
	cfgPath = "/nonexistent/spider.toml"
	defer func() { cfgPath = originalPath }()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"harvest"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestRootCmd_RegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["harvest"])
	assert.True(t, names["daemon"])
	assert.True(t, names["version"])
}
