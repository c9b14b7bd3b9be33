package oracle

import (
	"FaceScan/pkg/openai"
	"golang.org/x/net/context"
)

type openAIModel struct {
	vision openai.IVision
}

func NewOpenAIModel(vision openai.IVision) Model {
	return &openAIModel{vision: vision}
}

func (m *openAIModel) Name() string {
	return "openai/" + m.vision.Name()
}

func (m *openAIModel) Generate(ctx context.Context, req Request) (Content, error) {
	text, err := m.vision.AnalyzeImages(ctx, req.Prompt, req.Images, req.JSON)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return TextContent(text), nil
}
