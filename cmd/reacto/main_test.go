package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/reacto/internal/config"
	"github.com/verte-zerg/reacto/internal/model"
)

func TestValidateConfig(t *testing.T) {
	ok := model.Config{GateKey: "space", ReleaseMs: defaultReleaseMs}
	require.NoError(t, validateConfig(ok))

	cases := map[string]model.Config{
		"multi-char gate":   {GateKey: "ctrl", ReleaseMs: defaultReleaseMs},
		"response key gate": {GateKey: "G", ReleaseMs: defaultReleaseMs},
		"release too short": {GateKey: "space", ReleaseMs: 10},
		"release too long":  {GateKey: "space", ReleaseMs: 5000},
	}
	for name, cfg := range cases {
		require.Error(t, validateConfig(cfg), name)
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	require.Nil(t, cfg.Test.GateKey)
	require.Nil(t, cfg.Log.Level)

	uncommented := strings.ReplaceAll(defaultConfigTemplate(), "# gate-key", "gate-key")
	require.NoError(t, os.WriteFile(path, []byte(uncommented), 0o644))
	cfg, err = config.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, defaultGateKey, *cfg.Test.GateKey)
}

func TestReplayCommandCheck(t *testing.T) {
	script := filepath.Join("..", "..", "internal", "replay", "testdata", "mixed.yaml")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"replay", "--check", script})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "one trial of each outcome")
	require.Contains(t, out.String(), "Correct: 2 (50.0%)")
}

func TestReplayCommandVerboseLogsEngineEvents(t *testing.T) {
	script := filepath.Join("..", "..", "internal", "replay", "testdata", "mixed.yaml")
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"replay", "--verbose", script})

	require.NoError(t, cmd.Execute())
	require.Contains(t, errOut.String(), `"message":"session finished"`)
	require.NotContains(t, out.String(), "session finished")
}

func TestReplayCommandReportsMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	data := "stimuli: [R]\nevents: []\nexpect:\n  stats:\n    total: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"replay", "--check", path})
	require.ErrorContains(t, cmd.Execute(), "1 expectation(s) not met")
}
