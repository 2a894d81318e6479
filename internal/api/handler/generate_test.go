package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/internal/docx"
	"github.com/draftforge/draftforge/internal/engine"
	"github.com/draftforge/draftforge/internal/llm"
	"github.com/draftforge/draftforge/internal/store"
	"github.com/draftforge/draftforge/pkg/errors"
)

// scriptedClient answers every completion with fixed content or a fixed
// error, standing in for the upstream LLM.
type scriptedClient struct {
	content string
	tokens  int
	err     error
}

func (c *scriptedClient) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &llm.CompletionResult{Content: c.content, TokensUsed: c.tokens}, nil
}

func (env *testEnv) useClient(c engine.CompletionClient) {
	env.engine.SetClientFactory(func(llm.Config) engine.CompletionClient { return c })
}

func generateRouter(env *testEnv, userID string) *gin.Engine {
	h := NewGenerateHandler(env.store, env.engine, env.sections)
	r := SetupTestRouter()
	auth := asUser(userID)
	r.POST("/generate", auth, h.Generate)
	r.POST("/review", auth, h.Review)
	return r
}

func TestGenerate(t *testing.T) {
	env, cleanup := setupEnv(t,
		docx.TestItem{Heading: 1, Text: "Intro"},
		docx.TestItem{Text: "old text"},
	)
	defer cleanup()
	env.useClient(&scriptedClient{content: "Generated **prose**", tokens: 17})
	r := generateRouter(env, env.user.ID)

	_, tree, _ := env.sections.Get(env.doc.ID)
	target := tree.Flat[0]

	w := perform(r, CreateTestRequest(http.MethodPost, "/generate", map[string]interface{}{
		"document_id": env.doc.ID,
		"section_id":  target.ID,
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	assert.Equal(t, target.ID, body["section_id"])
	assert.Equal(t, "Generated **prose**", body["content"])
	assert.Equal(t, float64(17), body["tokens"])

	commit := body["commit"].(map[string]interface{})
	assert.Equal(t, true, commit["saved"], "mode defaults to replace and saves")

	doc, newTree, _ := env.sections.Get(env.doc.ID)
	assert.Equal(t, "Generated prose", newTree.Flat[0].ContentText(doc))
}

func TestGenerate_Validation(t *testing.T) {
	env, cleanup := setupEnv(t)
	defer cleanup()
	r := generateRouter(env, env.user.ID)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing document_id", map[string]interface{}{"section_id": "s1"}},
		{"missing section_id", map[string]interface{}{"document_id": env.doc.ID}},
		{"empty body", map[string]interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := perform(r, CreateTestRequest(http.MethodPost, "/generate", tt.body))
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, string(errors.ErrCodeValidation), decodeBody(t, w)["code"])
		})
	}
}

func TestGenerate_UpstreamErrorMapped(t *testing.T) {
	env, cleanup := setupEnv(t,
		docx.TestItem{Heading: 1, Text: "Intro"},
	)
	defer cleanup()
	env.useClient(&scriptedClient{err: errors.Newf(errors.ErrCodeLLMUpstream, "upstream returned status 500")})
	r := generateRouter(env, env.user.ID)

	_, tree, _ := env.sections.Get(env.doc.ID)

	w := perform(r, CreateTestRequest(http.MethodPost, "/generate", map[string]interface{}{
		"document_id": env.doc.ID,
		"section_id":  tree.Flat[0].ID,
	}))
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, string(errors.ErrCodeLLMUpstream), decodeBody(t, w)["code"])
}

func TestReview(t *testing.T) {
	env, cleanup := setupEnv(t,
		docx.TestItem{Heading: 1, Text: "Intro"},
	)
	defer cleanup()
	r := generateRouter(env, env.user.ID)

	_, tree, _ := env.sections.Get(env.doc.ID)
	target := tree.Flat[0]

	w := perform(r, CreateTestRequest(http.MethodPost, "/review", map[string]interface{}{
		"document_id": env.doc.ID,
		"section_id":  target.ID,
		"comment":     "needs a stronger opening",
		"reviewer":    "copyeditor",
	}))
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, "accepted", decodeBody(t, w)["status"])

	t.Run("unknown document", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/review", map[string]interface{}{
			"document_id": "no-such-doc",
			"section_id":  target.ID,
		}))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("unknown section", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/review", map[string]interface{}{
			"document_id": env.doc.ID,
			"section_id":  "no-such-section",
		}))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("foreign owner", func(t *testing.T) {
		other := store.CreateTestUser(t, env.store)
		foreign := generateRouter(env, other.ID)
		w := perform(foreign, CreateTestRequest(http.MethodPost, "/review", map[string]interface{}{
			"document_id": env.doc.ID,
			"section_id":  target.ID,
		}))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		w := perform(r, CreateTestRequest(http.MethodPost, "/review", map[string]interface{}{
			"document_id": env.doc.ID,
		}))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
