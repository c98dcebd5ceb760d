package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hyperjump/portfolio-rag/internal/embedding"
	"github.com/hyperjump/portfolio-rag/internal/models"
	"github.com/hyperjump/portfolio-rag/internal/ranking"
	"github.com/hyperjump/portfolio-rag/internal/search"
	"github.com/hyperjump/portfolio-rag/internal/vector"
)

type fakeRetriever struct {
	retrieval *models.Retrieval
	err       error
	lastQuery string
	lastK     int
}

func (f *fakeRetriever) Retrieve(_ context.Context, q string, k int) (*models.Retrieval, error) {
	f.lastQuery, f.lastK = q, k
	return f.retrieval, f.err
}

type fakeCompleter struct {
	answer   string
	err      error
	messages []models.ChatMessage
}

func (f *fakeCompleter) Complete(_ context.Context, messages []models.ChatMessage) (string, error) {
	f.messages = messages
	return f.answer, f.err
}

func TestService_Answer(t *testing.T) {
	sources := []models.Source{{Title: "Backend Engineer", Source: "experience.json"}}
	r := &fakeRetriever{retrieval: &models.Retrieval{Context: "**Context:**\n1. **Backend Engineer**", Sources: sources}}
	c := &fakeCompleter{answer: "I worked on payments."}
	s := NewService(r, c, nil, 5, zap.NewNop())

	resp, err := s.Answer(context.Background(), &models.ChatRequest{
		Question: "Where have you worked?",
		History:  []models.ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "I worked on payments.", resp.Answer)
	assert.Equal(t, sources, resp.Sources)
	assert.Equal(t, "Where have you worked?", r.lastQuery)
	assert.Equal(t, 5, r.lastK)

	require.Len(t, c.messages, 3)
	assert.Contains(t, c.messages[2].Content, "**Context:**\n1. **Backend Engineer**")
}

func TestService_AnswerErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid question", func(t *testing.T) {
		r := &fakeRetriever{}
		s := NewService(r, &fakeCompleter{}, nil, 0, nil)
		_, err := s.Answer(ctx, &models.ChatRequest{Question: "hi"})
		assert.True(t, errors.Is(err, models.ErrInvalidQuestion))
		assert.Empty(t, r.lastQuery, "retrieval must not run")
	})

	t.Run("bad history role", func(t *testing.T) {
		s := NewService(&fakeRetriever{}, &fakeCompleter{}, nil, 0, nil)
		_, err := s.Answer(ctx, &models.ChatRequest{
			Question: "What do you do?",
			History:  []models.ChatMessage{{Role: "system", Content: "x"}},
		})
		assert.True(t, errors.Is(err, models.ErrInvalidQuestion))
	})

	t.Run("provider failure", func(t *testing.T) {
		r := &fakeRetriever{retrieval: &models.Retrieval{Context: "ctx"}}
		c := &fakeCompleter{err: errors.New("502 bad gateway")}
		_, err := NewService(r, c, nil, 0, nil).Answer(ctx, &models.ChatRequest{Question: "What do you do?"})
		require.Error(t, err)
		assert.False(t, errors.Is(err, models.ErrInvalidQuestion))
		assert.False(t, errors.Is(err, models.ErrIndexUnavailable))
	})
}

func TestService_AnswerDegradesOnRetrievalFailure(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name      string
		retrieval *models.Retrieval
		err       error
	}{
		{"index unavailable", search.Fallback(), models.ErrIndexUnavailable},
		{"dimension mismatch", search.Fallback(), models.ErrDimensionMismatch},
		{"no retrieval returned", nil, errors.New("embed query: timeout")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeCompleter{answer: "I can't speak to that."}
			resp, err := NewService(&fakeRetriever{retrieval: tt.retrieval, err: tt.err}, c, nil, 0, nil).
				Answer(ctx, &models.ChatRequest{Question: "What do you do?"})
			require.NoError(t, err)
			assert.Equal(t, "I can't speak to that.", resp.Answer)
			assert.Empty(t, resp.Sources)
			require.Len(t, c.messages, 2)
			assert.Contains(t, c.messages[1].Content, search.FallbackContext)
		})
	}
}

// brokenEmbedder fails every call, like a provider that stays down after retries.
type brokenEmbedder struct{ *embedding.MockEmbedder }

func (brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider 502 after retries")
}

func TestService_AnswerWithFailingEmbedder(t *testing.T) {
	mock := embedding.NewMockEmbedder(16)
	chunks := []models.Chunk{{ID: "about", Title: "About", Source: "about.md", Text: "I write Go services."}}
	vecs, err := mock.EmbedBatch(context.Background(), []string{chunks[0].Text})
	require.NoError(t, err)
	idx, err := vector.Build(vecs, chunks)
	require.NoError(t, err)

	for name, handle := range map[string]*vector.Handle{
		"embedder down":  vector.NewHandle(idx),
		"nothing loaded": vector.NewHandle(nil),
	} {
		t.Run(name, func(t *testing.T) {
			engine := search.NewEngine(handle, brokenEmbedder{mock}, search.Config{TopK: 3, Priorities: ranking.PriorityTable{}}, zap.NewNop())
			c := &fakeCompleter{answer: "No details on that, sorry."}
			resp, err := NewService(engine, c, nil, 0, zap.NewNop()).
				Answer(context.Background(), &models.ChatRequest{Question: "Where do you work?"})
			require.NoError(t, err)
			assert.Equal(t, "No details on that, sorry.", resp.Answer)
			assert.Empty(t, resp.Sources)
			assert.NotNil(t, c.messages, "the completer still runs")
		})
	}
}
