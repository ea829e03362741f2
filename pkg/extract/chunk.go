package extract

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/notegraph/backend/pkg/common"
)

const encodingName = "o200k_base"

// ChunkText splits a document body into chunks of at most maxTokens tokens.
// Paragraph boundaries are preserved where possible; a single paragraph
// longer than maxTokens is split on token windows.
func ChunkText(text string, maxTokens int) ([]common.Chunk, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}

	var chunks []common.Chunk
	var current strings.Builder
	currentTokens := 0

	flush := func() {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, common.Chunk{
			Index: len(chunks),
			Text:  current.String(),
		})
		current.Reset()
		currentTokens = 0
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		tokens := enc.Encode(para, nil, nil)

		if len(tokens) > maxTokens {
			flush()
			for start := 0; start < len(tokens); start += maxTokens {
				end := start + maxTokens
				if end > len(tokens) {
					end = len(tokens)
				}
				chunks = append(chunks, common.Chunk{
					Index: len(chunks),
					Text:  enc.Decode(tokens[start:end]),
				})
			}
			continue
		}

		if currentTokens+len(tokens) > maxTokens {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += len(tokens)
	}
	flush()

	return chunks, nil
}
