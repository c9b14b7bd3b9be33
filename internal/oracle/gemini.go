package oracle

import (
	"FaceScan/pkg/gemini"
	"golang.org/x/net/context"
)

type geminiModel struct {
	client gemini.IGemini
}

func NewGeminiModel(client gemini.IGemini) Model {
	return &geminiModel{client: client}
}

func (m *geminiModel) Name() string {
	return "gemini/" + m.client.Name()
}

func (m *geminiModel) Generate(ctx context.Context, req Request) (Content, error) {
	images := make([]gemini.Image, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, gemini.Image{Data: img})
	}

	parts, err := m.client.GenerateFromImages(ctx, req.Prompt, images, req.JSON)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, nil
	}

	blocks := make(BlocksContent, 0, len(parts))
	for _, p := range parts {
		blocks = append(blocks, Block{Type: p.Type, Payload: p.Text})
	}
	return blocks, nil
}

func (m *geminiModel) Close() error {
	return m.client.Close()
}
