package oracle

import (
	"strings"
	"testing"

	"FaceScan/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRubric(t *testing.T) {
	r := DefaultRubric()

	assert.Equal(t, 10, r.MinSpread)
	require.Len(t, r.Metrics, 5)
	for _, m := range r.Metrics {
		assert.Len(t, m.Anchors, 5, m.Key)
		assert.NotEmpty(t, m.Label, m.Key)
	}
	assert.NotEmpty(t, r.Correlations)
}

func TestParseRubric_Rejects(t *testing.T) {
	_, err := ParseRubric([]byte("metrics: ["))
	assert.Error(t, err)

	_, err = ParseRubric([]byte("min_spread: 10\nmetrics: []\n"))
	assert.ErrorContains(t, err, "must describe 5 metrics")
}

func TestBuildPoseCheckPrompt(t *testing.T) {
	prompt := BuildPoseCheckPrompt(entity.PoseLeft)

	assert.Contains(t, prompt, `"left"`)
	assert.Contains(t, prompt, "lenient")
	assert.Contains(t, prompt, "glasses")
	assert.Contains(t, prompt, "strict")
	assert.Contains(t, prompt, `"correctPosition"`)
}

func TestBuildExtractionPrompt(t *testing.T) {
	labels := []entity.PoseID{entity.PoseCenter, entity.PoseLeft, entity.PoseRight}
	prompt := BuildExtractionPrompt(DefaultRubric(), labels)

	assert.Contains(t, prompt, "3 photo(s)")
	assert.Contains(t, prompt, "Image 1: ")
	assert.Contains(t, prompt, "(left)")
	assert.Contains(t, prompt, "Image 3: ")
	assert.NotContains(t, prompt, "Image 4: ")
	assert.Contains(t, prompt, "potential_ceiling must always be 0")
	assert.Contains(t, prompt, "at least 10 points")
	for _, key := range entity.ScoredMetrics {
		assert.Contains(t, prompt, `"`+key+`": number`)
	}
	// five anchors per metric
	assert.Equal(t, 25, strings.Count(prompt, "\n  - "))
}
