package prompt

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

func newTestAssembler(budget int) *Assembler {
	return New(budget, zap.NewNop())
}

func userMsg(content string) domain.Message {
	return domain.Message{Role: domain.RoleUser, Content: content}
}

func assistantMsg(content string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: content}
}

func scoredChunk(docID, text string, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{DocumentID: docID, Text: text},
		Score: score,
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 0},
		{"abcd", 1},
		{strings.Repeat("x", 100), 25},
	}
	for _, tt := range tests {
		if got := EstimateTokens(tt.text); got != tt.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestAssemble_OpenChat(t *testing.T) {
	a := newTestAssembler(8000)
	history := []domain.Message{
		userMsg("hello there"),
		assistantMsg("hi, how can I help"),
		userMsg("what is the weather"),
	}

	got, err := a.Assemble(domain.ModeOpenChat, history, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Messages) != 4 {
		t.Fatalf("expected 4 messages (system + 3 turns), got %d", len(got.Messages))
	}
	if got.Messages[0].Role != domain.RoleSystem {
		t.Errorf("first message must be system, got %s", got.Messages[0].Role)
	}
	if strings.Contains(got.Messages[0].Content, "document context") {
		t.Errorf("open chat must not use the grounded prompt")
	}
	last := got.Messages[len(got.Messages)-1]
	if last.Role != domain.RoleUser || last.Content != "what is the weather" {
		t.Errorf("latest user message missing or reordered: %+v", last)
	}
	if got.UsedChunks != nil {
		t.Errorf("open chat must not report chunks")
	}
}

func TestAssemble_GroundedIncludesChunks(t *testing.T) {
	a := newTestAssembler(8000)
	history := []domain.Message{userMsg("what does the report say")}
	chunks := []domain.ScoredChunk{
		scoredChunk("doc-1", "revenue grew by ten percent", 0.95),
		scoredChunk("doc-2", "costs were flat year over year", 0.80),
	}

	got, err := a.Assemble(domain.ModeGrounded, history, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	system := got.Messages[0].Content
	if !strings.Contains(system, "STRICTLY") {
		t.Errorf("grounded system prompt missing")
	}
	if !strings.Contains(system, "revenue grew") || !strings.Contains(system, "[Source: doc-1]") {
		t.Errorf("chunk context missing from system message")
	}
	if len(got.UsedChunks) != 2 {
		t.Errorf("expected 2 used chunks, got %d", len(got.UsedChunks))
	}
}

func TestAssemble_GroundedWithoutChunksFallsBackToOpenPrompt(t *testing.T) {
	a := newTestAssembler(8000)
	history := []domain.Message{userMsg("hello")}

	got, err := a.Assemble(domain.ModeGrounded, history, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(got.Messages[0].Content, "STRICTLY") {
		t.Errorf("expected open chat prompt when no chunks retrieved")
	}
	if len(got.UsedChunks) != 0 {
		t.Errorf("expected no used chunks")
	}
}

func TestAssemble_DropsLowScoreChunksFirst(t *testing.T) {
	// Budget fits mandatory content, all history, and exactly one chunk.
	big := strings.Repeat("w", 400) // 100 tokens each
	chunks := []domain.ScoredChunk{
		scoredChunk("doc-1", big, 0.9),
		scoredChunk("doc-1", big, 0.5),
	}
	history := []domain.Message{userMsg("question")}

	mandatory := EstimateTokens(groundedSystem) + EstimateTokens("question")
	oneChunk := EstimateTokens(chunkContext(chunks[0]))
	a := newTestAssembler(mandatory + oneChunk + 10)

	got, err := a.Assemble(domain.ModeGrounded, history, chunks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.UsedChunks) != 1 {
		t.Fatalf("expected 1 chunk kept, got %d", len(got.UsedChunks))
	}
	if got.UsedChunks[0].Score != 0.9 {
		t.Errorf("kept the wrong chunk: score %f", got.UsedChunks[0].Score)
	}
}

func TestAssemble_DropsOldestHistoryFirst(t *testing.T) {
	old := strings.Repeat("a", 400)   // 100 tokens
	recent := strings.Repeat("b", 80) // 20 tokens
	latest := strings.Repeat("c", 40) // 10 tokens
	history := []domain.Message{
		userMsg(old),
		assistantMsg(recent),
		userMsg(latest),
	}

	mandatory := EstimateTokens(openChatSystem) + 10
	a := newTestAssembler(mandatory + 25) // room for recent only

	got, err := a.Assemble(domain.ModeOpenChat, history, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// system + recent + latest; the oldest turn dropped.
	if len(got.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got.Messages))
	}
	if got.Messages[1].Content != recent {
		t.Errorf("expected recent turn kept, got %q", got.Messages[1].Content[:10])
	}
}

func TestAssemble_HistoryOutranksChunks(t *testing.T) {
	turn := strings.Repeat("h", 200) // 50 tokens
	history := []domain.Message{
		assistantMsg(turn),
		userMsg("q"),
	}
	chunk := scoredChunk("doc-1", strings.Repeat("k", 200), 0.9)

	mandatory := EstimateTokens(groundedSystem) + EstimateTokens("q")
	// Room for the history turn but not for the chunk afterwards.
	a := newTestAssembler(mandatory + 60)

	got, err := a.Assemble(domain.ModeGrounded, history, []domain.ScoredChunk{chunk})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Messages) != 3 {
		t.Fatalf("expected history turn kept, got %d messages", len(got.Messages))
	}
	if len(got.UsedChunks) != 0 {
		t.Errorf("expected chunk dropped before history")
	}
}

func TestAssemble_BudgetExceeded(t *testing.T) {
	a := newTestAssembler(10)
	history := []domain.Message{userMsg(strings.Repeat("q", 400))}

	_, err := a.Assemble(domain.ModeOpenChat, history, nil)
	if !errors.Is(err, domain.ErrBudgetExceeded) {
		t.Fatalf("expected ErrBudgetExceeded, got %v", err)
	}
}

func TestAssemble_LatestMustBeUser(t *testing.T) {
	a := newTestAssembler(8000)
	history := []domain.Message{userMsg("hi"), assistantMsg("hello")}

	_, err := a.Assemble(domain.ModeOpenChat, history, nil)
	if err == nil {
		t.Fatal("expected error when history ends with assistant message")
	}
}

func TestAssemble_EmptyHistory(t *testing.T) {
	a := newTestAssembler(8000)

	_, err := a.Assemble(domain.ModeOpenChat, nil, nil)
	if err == nil {
		t.Fatal("expected error for empty history")
	}
}
