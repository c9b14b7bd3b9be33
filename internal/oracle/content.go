package oracle

import "strings"

// Content is what a model hands back. It is either TextContent or
// BlocksContent. A nil Content means the model answered with nothing.
type Content interface {
	content()
}

type TextContent string

func (TextContent) content() {}

// Block is one typed piece of a multi-part answer. Only "text" blocks carry
// anything the client can parse.
type Block struct {
	Type    string `json:"type"`
	Payload string `json:"text"`
}

type BlocksContent []Block

func (BlocksContent) content() {}

const blockTypeText = "text"

// Unwrap flattens Content to the text that should be parsed. The bool is
// false when there is nothing usable.
func Unwrap(c Content) (string, bool) {
	switch v := c.(type) {
	case TextContent:
		text := strings.TrimSpace(string(v))
		return text, text != ""
	case BlocksContent:
		var sb strings.Builder
		for _, block := range v {
			if block.Type != blockTypeText {
				continue
			}
			sb.WriteString(block.Payload)
		}
		text := strings.TrimSpace(sb.String())
		return text, text != ""
	default:
		return "", false
	}
}
