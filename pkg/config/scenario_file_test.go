package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/scenarios/pkg/models"
	"github.com/dukex/scenarios/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const welcomeYAML = `
scenarios:
  - id: welcome
    name: Welcome
    enabled: true
    triggers:
      - id: welcome-signup
        event_code: signup
    elements:
      - id: pause
        type: wait
        options:
          minutes: 60
      - id: in-trial
        type: segment
      - id: welcome-email
        type: email
    edges:
      - from_trigger: welcome-signup
        to: pause
      - from_element: pause
        to: in-trial
      - from_element: in-trial
        to: welcome-email
        positive: true
`

func TestLoadScenarioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenarios.yaml")
	require.NoError(t, os.WriteFile(path, []byte(welcomeYAML), 0o600))

	scenarioFile, err := LoadScenarioFile(path)
	require.NoError(t, err)
	require.Len(t, scenarioFile.Scenarios, 1)

	scenario := scenarioFile.Scenarios[0]
	assert.Equal(t, "welcome", scenario.ID)
	assert.True(t, scenario.Enabled)
	assert.Len(t, scenario.Elements, 3)
	assert.Equal(t, 60, scenario.Elements[0].Options["minutes"])
	require.NotNil(t, scenario.Edges[2].Positive)
	assert.True(t, *scenario.Edges[2].Positive)

	_, err = LoadScenarioFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseScenarioFile_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		expected string
	}{
		{
			name:     "empty",
			yaml:     `scenarios: []`,
			expected: "at least one scenario",
		},
		{
			name:     "malformed",
			yaml:     `scenarios: [`,
			expected: "failed to parse",
		},
		{
			name: "missing name",
			yaml: `
scenarios:
  - id: s`,
			expected: "name is required",
		},
		{
			name: "unknown element type",
			yaml: `
scenarios:
  - id: s
    name: S
    elements:
      - id: e
        type: sms`,
			expected: `unknown element type "sms"`,
		},
		{
			name: "invalid wait options",
			yaml: `
scenarios:
  - id: s
    name: S
    elements:
      - id: e
        type: wait
        options:
          minutes: soon`,
			expected: "invalid element options",
		},
		{
			name: "duplicate id",
			yaml: `
scenarios:
  - id: s
    name: S
    triggers:
      - id: s
        event_code: signup`,
			expected: `duplicate id "s"`,
		},
		{
			name: "edge with two sources",
			yaml: `
scenarios:
  - id: s
    name: S
    triggers:
      - id: t
        event_code: signup
    elements:
      - id: e
        type: email
    edges:
      - from_trigger: t
        from_element: e
        to: e`,
			expected: "exactly one of from_trigger and from_element",
		},
		{
			name: "edge to unknown element",
			yaml: `
scenarios:
  - id: s
    name: S
    triggers:
      - id: t
        event_code: signup
    edges:
      - from_trigger: t
        to: e`,
			expected: `unknown target element "e"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenarioFile([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
		})
	}
}

func TestScenarioFile_Apply(t *testing.T) {
	scenarioFile, err := ParseScenarioFile([]byte(welcomeYAML))
	require.NoError(t, err)

	store := file.NewPersistence(t.TempDir())

	require.NoError(t, scenarioFile.Apply(t.Context(), store))
	require.NoError(t, scenarioFile.Apply(t.Context(), store))

	scenario, err := store.ScenarioRepository().ScenarioByID(t.Context(), "welcome")
	require.NoError(t, err)
	assert.Len(t, scenario.TriggersFor("signup"), 1)

	pause, err := store.ElementRepository().ElementByID(t.Context(), "pause")
	require.NoError(t, err)

	options, err := pause.WaitOptions()
	require.NoError(t, err)
	assert.Equal(t, 60, options.Minutes)

	graph, err := store.GraphRepository().Graph(t.Context())
	require.NoError(t, err)
	require.Len(t, graph.Edges, 3)
	assert.Equal(t, &models.Edge{
		ScenarioID:      "welcome",
		SourceElementID: "in-trial",
		TargetElementID: "welcome-email",
		Positive:        graph.Edges[2].Positive,
	}, graph.Edges[2])
	assert.True(t, *graph.Edges[2].Positive)
}
