package oracle

import (
	"golang.org/x/net/context"
)

type Request struct {
	Prompt string
	Images [][]byte
	JSON   bool
}

// Model is a vision-capable backend. Generate returns a nil Content when the
// backend answered without any content.
type Model interface {
	Name() string
	Generate(ctx context.Context, req Request) (Content, error)
}
