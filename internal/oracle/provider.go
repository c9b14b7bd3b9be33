package oracle

import (
	"os"
	"strings"

	"FaceScan/pkg/gemini"
	"FaceScan/pkg/openai"
	"github.com/sirupsen/logrus"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// ModelFromEnv picks the backend named by ORACLE_PROVIDER (gemini by default).
// Missing credentials are not fatal: the returned Model is nil and every
// oracle call takes its degraded path.
func ModelFromEnv(log *logrus.Logger) Model {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("ORACLE_PROVIDER")))
	if provider == "" {
		provider = ProviderGemini
	}

	switch provider {
	case ProviderOpenAI:
		vision, err := openai.NewVision()
		if err != nil {
			log.WithFields(logrus.Fields{
				"provider": provider,
				"error":    err.Error(),
			}).Warn("Oracle credentials unavailable, scans will use degraded results")
			return nil
		}
		return NewOpenAIModel(vision)
	case ProviderGemini:
		client, err := gemini.NewGeminiClient()
		if err != nil {
			log.WithFields(logrus.Fields{
				"provider": provider,
				"error":    err.Error(),
			}).Warn("Oracle credentials unavailable, scans will use degraded results")
			return nil
		}
		return NewGeminiModel(client)
	default:
		log.WithField("provider", provider).Warn("Unknown oracle provider, scans will use degraded results")
		return nil
	}
}
