// Package prompt assembles system instructions, conversation history and
// retrieved chunks into a model request honoring a token budget.
package prompt

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

const openChatSystem = "You are a helpful AI assistant. Provide direct, concise answers " +
	"without showing your reasoning process or thinking steps. Never include internal " +
	"thought processes. Just give the final answer directly."

const groundedSystem = `You are a helpful AI assistant. You MUST answer questions STRICTLY based on the provided document context ONLY.

CRITICAL RULES:
1. Use ONLY information from the provided context below
2. DO NOT use your general knowledge or training data
3. If the answer is not in the context, say "I don't have that information in the uploaded documents"
4. Never make assumptions or infer information not explicitly stated in the context
5. Provide direct answers without showing reasoning

Context from documents:
`

// Message is one prompt message bound for the language model.
type Message struct {
	Role    domain.Role
	Content string
}

// Assembled is the budget-fitted prompt plus the chunks that made it in.
type Assembled struct {
	Messages   []Message
	UsedChunks []domain.ScoredChunk
}

// EstimateTokens approximates token count as one token per four characters.
// Monotonic: longer text never estimates fewer tokens.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Assembler builds prompts under a fixed token budget.
type Assembler struct {
	budget int
	logger *zap.Logger
}

// New creates an assembler with the given context token budget.
func New(budget int, logger *zap.Logger) *Assembler {
	return &Assembler{budget: budget, logger: logger}
}

// Assemble merges instructions, history and chunks into an ordered message
// list. The system instructions and the latest user message are never
// dropped; when the budget is tight, chunks go first (lowest score first),
// then history turns (oldest first). Returns domain.ErrBudgetExceeded when
// even the mandatory content does not fit.
//
// history must end with the user message being answered.
func (a *Assembler) Assemble(
	mode domain.Mode, history []domain.Message, chunks []domain.ScoredChunk,
) (*Assembled, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("assemble: empty history")
	}
	latest := history[len(history)-1]
	if latest.Role != domain.RoleUser {
		return nil, fmt.Errorf("assemble: history must end with a user message, got %s", latest.Role)
	}

	baseSystem := openChatSystem
	if mode == domain.ModeGrounded && len(chunks) > 0 {
		baseSystem = groundedSystem
	}

	used := EstimateTokens(baseSystem) + EstimateTokens(latest.Content)
	if used > a.budget {
		return nil, fmt.Errorf("%w: mandatory content needs %d tokens, budget is %d",
			domain.ErrBudgetExceeded, used, a.budget)
	}
	remaining := a.budget - used

	// History outranks chunks: newest turns claim the budget first.
	kept, historyTokens := fitHistory(history[:len(history)-1], remaining)
	remaining -= historyTokens

	var usedChunks []domain.ScoredChunk
	if mode == domain.ModeGrounded {
		usedChunks, remaining = fitChunks(chunks, remaining)
		if len(usedChunks) < len(chunks) {
			a.logger.Debug("Dropped low-scoring chunks to fit budget",
				zap.Int("kept", len(usedChunks)),
				zap.Int("retrieved", len(chunks)),
			)
		}
	}

	system := baseSystem
	if len(usedChunks) > 0 {
		system = groundedSystem + formatContext(usedChunks)
	} else if mode == domain.ModeGrounded {
		system = openChatSystem
	}

	messages := make([]Message, 0, len(kept)+2)
	messages = append(messages, Message{Role: domain.RoleSystem, Content: system})
	for _, m := range kept {
		messages = append(messages, Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, Message{Role: domain.RoleUser, Content: latest.Content})

	return &Assembled{Messages: messages, UsedChunks: usedChunks}, nil
}

// fitHistory keeps the newest turns that fit, preserving chronological order.
func fitHistory(history []domain.Message, budget int) ([]domain.Message, int) {
	var total int
	cut := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		t := EstimateTokens(history[i].Content)
		if total+t > budget {
			break
		}
		total += t
		cut = i
	}
	return history[cut:], total
}

// fitChunks keeps the highest-scoring prefix that fits. Input is already
// ordered by score descending.
func fitChunks(chunks []domain.ScoredChunk, budget int) ([]domain.ScoredChunk, int) {
	var used []domain.ScoredChunk
	for _, c := range chunks {
		t := EstimateTokens(chunkContext(c))
		if t > budget {
			break
		}
		budget -= t
		used = append(used, c)
	}
	return used, budget
}

func formatContext(chunks []domain.ScoredChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = chunkContext(c)
	}
	return strings.Join(parts, "\n")
}

func chunkContext(c domain.ScoredChunk) string {
	return fmt.Sprintf("[Source: %s]\n%s\n", c.Chunk.DocumentID, c.Chunk.Text)
}
