package oracle

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"FaceScan/internal/entity"
	"gopkg.in/yaml.v3"
)

//go:embed rubric.yaml
var rubricYAML []byte

type Anchor struct {
	Score       int    `yaml:"score"`
	Description string `yaml:"description"`
}

type MetricRubric struct {
	Key     string   `yaml:"key"`
	Label   string   `yaml:"label"`
	Summary string   `yaml:"summary"`
	Anchors []Anchor `yaml:"anchors"`
}

// Rubric is the scoring guide embedded in every extraction prompt.
type Rubric struct {
	MinSpread    int            `yaml:"min_spread"`
	Metrics      []MetricRubric `yaml:"metrics"`
	Correlations []string       `yaml:"correlations"`
}

const anchorsPerMetric = 5

func ParseRubric(data []byte) (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rubric: %w", err)
	}

	if len(r.Metrics) != len(entity.ScoredMetrics) {
		return nil, fmt.Errorf("rubric must describe %d metrics, got %d", len(entity.ScoredMetrics), len(r.Metrics))
	}
	seen := make(map[string]bool, len(r.Metrics))
	for _, m := range r.Metrics {
		if len(m.Anchors) != anchorsPerMetric {
			return nil, fmt.Errorf("rubric metric %q must have %d anchors, got %d", m.Key, anchorsPerMetric, len(m.Anchors))
		}
		seen[m.Key] = true
	}
	for _, key := range entity.ScoredMetrics {
		if !seen[key] {
			return nil, fmt.Errorf("rubric is missing metric %q", key)
		}
	}
	if r.MinSpread <= 0 {
		return nil, errors.New("rubric min_spread must be positive")
	}

	return &r, nil
}

// DefaultRubric returns the rubric compiled into the binary.
func DefaultRubric() *Rubric {
	r, err := ParseRubric(rubricYAML)
	if err != nil {
		panic(err)
	}
	return r
}

func BuildPoseCheckPrompt(pose entity.PoseID) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are checking one frame of a guided face scan. The required pose is %q (%s).\n\n", pose, entity.DescribePose(pose))
	sb.WriteString("The frame is correct only if ALL of these hold:\n")
	fmt.Fprintf(&sb, "1. The head is roughly in the %s pose. Be lenient here, an approximate angle is fine.\n", pose)
	sb.WriteString("2. Nothing covers the face. Hands, hair, masks, phones or other objects over the face make the frame incorrect.\n")
	sb.WriteString("3. The person is NOT wearing glasses of any kind. Be strict here, glasses always make the frame incorrect no matter how good the pose is.\n\n")
	sb.WriteString("If the frame is incorrect, the message must tell the person in one short sentence what to change.\n")
	sb.WriteString("If it is correct, the message is a short confirmation.\n\n")
	sb.WriteString("Respond ONLY with a JSON object, no extra text:\n")
	sb.WriteString(`{"correctPosition": true or false, "message": "short sentence"}`)
	sb.WriteString("\n")

	return sb.String()
}

func BuildExtractionPrompt(r *Rubric, labels []entity.PoseID) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are given %d photo(s) of the same face taken during one guided scan.\n", len(labels))
	for i, pose := range labels {
		fmt.Fprintf(&sb, "Image %d: %s (%s)\n", i+1, entity.DescribePose(pose), pose)
	}
	sb.WriteString("\nScore every metric from 0 to 100 using the anchor points below. Interpolate between anchors.\n")

	for _, m := range r.Metrics {
		fmt.Fprintf(&sb, "\n%s (%s): %s\n", m.Label, m.Key, m.Summary)
		for _, a := range m.Anchors {
			fmt.Fprintf(&sb, "  - %d: %s\n", a.Score, a.Description)
		}
	}

	if len(r.Correlations) > 0 {
		sb.WriteString("\nKeep the scores consistent with each other:\n")
		for _, rule := range r.Correlations {
			fmt.Fprintf(&sb, "- %s\n", rule)
		}
	}

	fmt.Fprintf(&sb, "\nThe five scored metrics must differ: the highest minus the lowest must be at least %d points.\n", r.MinSpread)
	sb.WriteString("potential_ceiling must always be 0.\n\n")
	sb.WriteString("Respond ONLY with a JSON object with exactly these numeric keys, no extra text:\n{")
	keys := append(append([]string{}, entity.ScoredMetrics...), entity.MetricPotentialCeiling)
	for i, key := range keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q: number", key)
	}
	sb.WriteString("}\n")

	return sb.String()
}
