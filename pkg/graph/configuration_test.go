package graph_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/scenarios/pkg/graph"
	"github.com/dukex/scenarios/pkg/mocks"
	"github.com/dukex/scenarios/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func branchingGraph(version string) *models.Graph {
	return &models.Graph{
		Version: version,
		Edges: []*models.Edge{
			{SourceTriggerID: "on-signup", TargetElementID: "in-segment"},
			{SourceTriggerID: "on-signup", TargetElementID: "wait"},
			{SourceTriggerID: "on-signup", TargetElementID: "in-segment"},
			{SourceElementID: "in-segment", TargetElementID: "welcome", Positive: boolPtr(true)},
			{SourceElementID: "in-segment", TargetElementID: "nudge", Positive: boolPtr(false)},
			{SourceElementID: "in-segment", TargetElementID: "audit"},
		},
	}
}

func newConfiguration(source *mocks.MockGraphRepository) *graph.Configuration {
	return graph.NewConfiguration(source, slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})))
}

func TestConfiguration_Successors(t *testing.T) {
	source := &mocks.MockGraphRepository{}
	source.On("GraphVersion", mock.Anything).Return("v1", nil)
	source.On("Graph", mock.Anything).Return(branchingGraph("v1"), nil)

	configuration := newConfiguration(source)
	require.NoError(t, configuration.ReloadIfOutdated(t.Context()))

	assert.Equal(t, []string{"in-segment", "wait"}, configuration.ElementsFollowingTrigger("on-signup"))
	assert.Empty(t, configuration.ElementsFollowingTrigger("unknown"))

	assert.Equal(t, []string{"welcome", "audit"}, configuration.ElementsFollowingElement("in-segment", boolPtr(true)))
	assert.Equal(t, []string{"nudge", "audit"}, configuration.ElementsFollowingElement("in-segment", boolPtr(false)))
	assert.Equal(t, []string{"audit"}, configuration.ElementsFollowingElement("in-segment", nil))
	assert.Empty(t, configuration.ElementsFollowingElement("welcome", nil))
}

func TestConfiguration_ReloadOnlyWhenVersionMoves(t *testing.T) {
	source := &mocks.MockGraphRepository{}
	source.On("GraphVersion", mock.Anything).Return("v1", nil).Twice()
	source.On("Graph", mock.Anything).Return(branchingGraph("v1"), nil).Once()

	configuration := newConfiguration(source)
	require.NoError(t, configuration.ReloadIfOutdated(t.Context()))
	require.NoError(t, configuration.ReloadIfOutdated(t.Context()))
	assert.Equal(t, "v1", configuration.Version())

	source.On("GraphVersion", mock.Anything).Return("v2", nil).Once()
	source.On("Graph", mock.Anything).Return(&models.Graph{Version: "v2"}, nil).Once()

	require.NoError(t, configuration.ReloadIfOutdated(t.Context()))
	assert.Equal(t, "v2", configuration.Version())
	assert.Empty(t, configuration.ElementsFollowingTrigger("on-signup"))

	source.AssertExpectations(t)
}

func TestConfiguration_ReloadErrors(t *testing.T) {
	source := &mocks.MockGraphRepository{}
	source.On("GraphVersion", mock.Anything).Return("", errors.New("connection refused")).Once()

	configuration := newConfiguration(source)
	require.Error(t, configuration.ReloadIfOutdated(t.Context()))

	source.On("GraphVersion", mock.Anything).Return("v1", nil).Once()
	source.On("Graph", mock.Anything).Return(nil, errors.New("connection reset")).Once()

	require.Error(t, configuration.ReloadIfOutdated(t.Context()))
	assert.Empty(t, configuration.Version())
}
