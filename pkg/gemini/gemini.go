package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var ErrNoCandidates = errors.New("no response from Gemini API")

type Image struct {
	MimeType string
	Data     []byte
}

// Part is one piece of a Gemini answer. Type is "text" for text parts and the
// Go type name of the part otherwise.
type Part struct {
	Type string
	Text string
}

type IGemini interface {
	Name() string
	GenerateFromImages(ctx context.Context, prompt string, images []Image, jsonResponse bool) ([]Part, error)
	Close() error
}

type geminiClient struct {
	apiKey    string
	modelName string
	client    *genai.Client
}

func NewGeminiClient() (IGemini, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")

	modelName := os.Getenv("GEMINI_MODEL_NAME")
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &geminiClient{
		apiKey:    apiKey,
		modelName: modelName,
		client:    client,
	}, nil
}

func (g *geminiClient) Name() string {
	return g.modelName
}

func (g *geminiClient) GenerateFromImages(ctx context.Context, prompt string, images []Image, jsonResponse bool) ([]Part, error) {
	model := g.client.GenerativeModel(g.modelName)
	model.SetTemperature(0.2)
	if jsonResponse {
		model.ResponseMIMEType = "application/json"
	}

	parts := make([]genai.Part, 0, len(images)+1)
	parts = append(parts, genai.Text(prompt))
	for _, img := range images {
		parts = append(parts, genai.ImageData(imageFormat(img), img.Data))
	}

	res, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return nil, ErrNoCandidates
	}

	out := make([]Part, 0, len(res.Candidates[0].Content.Parts))
	for _, p := range res.Candidates[0].Content.Parts {
		switch v := p.(type) {
		case genai.Text:
			out = append(out, Part{Type: "text", Text: string(v)})
		default:
			out = append(out, Part{Type: fmt.Sprintf("%T", v)})
		}
	}

	return out, nil
}

func (g *geminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// imageFormat returns the short format genai.ImageData expects ("jpeg", "png").
func imageFormat(img Image) string {
	mimeType := img.MimeType
	if mimeType == "" {
		mimeType = http.DetectContentType(img.Data)
	}
	if format, ok := strings.CutPrefix(mimeType, "image/"); ok && format != "" {
		return format
	}
	return "jpeg"
}
