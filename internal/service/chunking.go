package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/clauselens/clauselens/internal/domain"
)

// charsPerToken approximates how many characters one token covers when
// converting token limits into character limits.
const charsPerToken = 4

// ChunkConfig controls chunking for document embeddings.
type ChunkConfig struct {
	MaxTokens     int
	OverlapTokens int
	MaxChunks     int
}

// DefaultChunkConfig provides the standard chunking parameters.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxTokens:     1000,
		OverlapTokens: 200,
		MaxChunks:     500,
	}
}

// ChunkText splits text into overlapping segments sized for the
// embedding service. Deterministic: the same text always produces the
// same boundaries and content hashes. Empty input yields nil.
func ChunkText(text string, cfg ChunkConfig) []domain.Chunk {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	if cfg.MaxTokens <= 0 {
		cfg = DefaultChunkConfig()
	}

	maxChars := cfg.MaxTokens * charsPerToken
	overlapChars := cfg.OverlapTokens * charsPerToken

	runes := []rune(clean)
	if len(runes) <= maxChars {
		return []domain.Chunk{newChunk(0, clean)}
	}

	chunks := make([]domain.Chunk, 0, 8)
	start := 0
	for start < len(runes) {
		if cfg.MaxChunks > 0 && len(chunks) >= cfg.MaxChunks {
			break
		}

		end := start + maxChars
		if end > len(runes) {
			end = len(runes)
		}

		// Prefer cutting on whitespace so words stay intact.
		if end < len(runes) {
			cut := end
			minCut := start + maxChars/2
			for i := end; i > minCut; i-- {
				if unicode.IsSpace(runes[i-1]) {
					cut = i
					break
				}
			}
			end = cut
		}

		if end <= start {
			break
		}

		segment := strings.TrimSpace(string(runes[start:end]))
		if segment != "" {
			chunks = append(chunks, newChunk(len(chunks), segment))
		}

		if end >= len(runes) {
			break
		}

		nextStart := end
		if overlapChars > 0 && end-start > overlapChars {
			nextStart = end - overlapChars
		}
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

func newChunk(index int, text string) domain.Chunk {
	return domain.Chunk{
		Index:       index,
		Text:        text,
		TokenCount:  estimateTokens(text),
		ContentHash: HashChunkText(text),
	}
}

// HashChunkText returns the deduplication key for a chunk: the SHA-256
// digest of the whitespace-normalized, lowercased text.
func HashChunkText(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

func estimateTokens(text string) int {
	n := len([]rune(text))
	tokens := n / charsPerToken
	if n%charsPerToken != 0 {
		tokens++
	}
	return tokens
}
