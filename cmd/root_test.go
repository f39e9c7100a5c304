package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"assess", "runs", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "visibility-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestAssessCommand_Flags(t *testing.T) {
	flag := assessCmd.Flags().Lookup("request")
	require.NotNil(t, flag, "assess command should have --request flag")

	qFlag := assessCmd.Flags().Lookup("questions")
	require.NotNil(t, qFlag, "assess command should have --questions flag")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"list", "show", "dlq"} {
		assert.True(t, names[name], "expected runs subcommand %q not found", name)
	}
}

func TestRunsListCommand_Flags(t *testing.T) {
	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag, "runs list should have --limit flag")
	assert.Equal(t, "50", flag.DefValue)
}

func TestLoadRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.json")
	writeFile(t, path, `{
		"company": {"name": "Acme Robotics", "domain": "acme-robotics.com"},
		"questions": [
			{"text": "What does Acme Robotics do?", "type": "direct"}
		]
	}`)

	req, err := loadRequest(path)
	require.NoError(t, err)
	assert.Equal(t, "acme-robotics.com", req.Company.Domain)
	require.Len(t, req.Questions, 1)
	assert.Equal(t, "What does Acme Robotics do?", req.Questions[0].Text)
}

func TestLoadRequest_MissingFile(t *testing.T) {
	_, err := loadRequest(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadRequest_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, path, "not json")

	_, err := loadRequest(path)
	assert.Error(t, err)
}
