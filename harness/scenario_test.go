package harness_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plus3/keel/harness"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadScenario(t *testing.T) {
	s, err := harness.LoadScenario("testdata/scenarios/lerp-linear.yaml")
	require.NoError(t, err)
	assert.Equal(t, "lerp-linear", s.Name)
	assert.Equal(t, 8, s.Frames)
	assert.Equal(t, 0.25, s.Delta)
	require.Len(t, s.Components, 1)
	assert.Equal(t, "lerp", s.Components[0].Kind)
}

func TestLoadScenarioRejectsUnknownFields(t *testing.T) {
	path := writeScenario(t, `
name: typo
frames: 1
delta: 0.1
framez: 5
`)
	_, err := harness.LoadScenario(path)
	assert.Error(t, err)
}

func TestLoadScenarioValidation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing name", "frames: 1\ndelta: 0.1\n"},
		{"zero frames", "name: x\nframes: 0\ndelta: 0.1\n"},
		{"negative delta", "name: x\nframes: 1\ndelta: -1\n"},
		{"bad mode", "name: x\nframes: 1\ndelta: 0.1\nmode: warp\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := harness.LoadScenario(writeScenario(t, tc.body))
			assert.Error(t, err)
		})
	}
}

func TestScenarioRun(t *testing.T) {
	s, err := harness.LoadScenario("testdata/scenarios/lerp-linear.yaml")
	require.NoError(t, err)

	res, err := s.Run()
	require.NoError(t, err)
	assert.Equal(t, 8, res.Frames)
	require.Len(t, res.Trace, 8)
	assert.Equal(t, 0.0, res.Final["x"])
}
