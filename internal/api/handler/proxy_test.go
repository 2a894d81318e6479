package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/model"
	"github.com/draftforge/draftforge/internal/store"
)

// fakeUpstream serves the open-webui catalog endpoints and records the
// Authorization header it saw last.
func fakeUpstream(t *testing.T) (*httptest.Server, *string) {
	t.Helper()
	var lastAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/models":
			w.Write([]byte(`{"data":[{"id":"m1","name":"Model One"}]}`))
		case "/api/v1/knowledge/list":
			w.Write([]byte(`[{"id":"c1","name":"Style Guide","description":"house style"}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &lastAuth
}

func proxyRouter(s store.Store, cfg *config.Config, userID string) *gin.Engine {
	h := NewProxyHandler(s, cfg)
	r := SetupTestRouter()
	auth := asUser(userID)
	r.GET("/models", auth, h.ListModels)
	r.GET("/collections", auth, h.ListCollections)
	return r
}

func TestProxy_ListModels(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()
	user := store.CreateTestUser(t, s)

	upstream, lastAuth := fakeUpstream(t)
	cfg := &config.Config{}
	cfg.LLM.BaseURL = upstream.URL
	cfg.LLM.APIKey = "server-key"
	cfg.LLM.TimeoutSeconds = 5

	r := proxyRouter(s, cfg, user.ID)

	w := perform(r, CreateTestRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	models := decodeBody(t, w)["models"].([]interface{})
	require.Len(t, models, 1)
	assert.Equal(t, "m1", models[0].(map[string]interface{})["id"])
	assert.Equal(t, "Bearer server-key", *lastAuth)
}

func TestProxy_ListCollections(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()
	user := store.CreateTestUser(t, s)

	upstream, _ := fakeUpstream(t)
	cfg := &config.Config{}
	cfg.LLM.BaseURL = upstream.URL
	cfg.LLM.TimeoutSeconds = 5

	r := proxyRouter(s, cfg, user.ID)

	w := perform(r, CreateTestRequest(http.MethodGet, "/collections", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	collections := decodeBody(t, w)["collections"].([]interface{})
	require.Len(t, collections, 1)
	assert.Equal(t, "Style Guide", collections[0].(map[string]interface{})["name"])
}

func TestProxy_UserEndpointMovesWithKey(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()
	user := store.CreateTestUser(t, s)

	serverUpstream, serverAuth := fakeUpstream(t)
	userUpstream, userAuth := fakeUpstream(t)

	cfg := &config.Config{}
	cfg.LLM.BaseURL = serverUpstream.URL
	cfg.LLM.APIKey = "server-key"
	cfg.LLM.TimeoutSeconds = 5

	require.NoError(t, s.User().SaveLLMConfig(&model.UserLLMConfig{
		UserID:  user.ID,
		BaseURL: userUpstream.URL,
		APIKey:  "user-key",
	}))

	r := proxyRouter(s, cfg, user.ID)
	w := perform(r, CreateTestRequest(http.MethodGet, "/models", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "Bearer user-key", *userAuth, "user endpoint gets the user key")
	assert.Empty(t, *serverAuth, "server endpoint never called")

	t.Run("key without endpoint stays on server pair", func(t *testing.T) {
		require.NoError(t, s.User().SaveLLMConfig(&model.UserLLMConfig{
			UserID: user.ID,
			APIKey: "orphan-key",
		}))

		*serverAuth = ""
		*userAuth = ""
		w := perform(r, CreateTestRequest(http.MethodGet, "/models", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Bearer server-key", *serverAuth, "server endpoint keeps the server key")
	})
}

func TestProxy_UpstreamFailureMapped(t *testing.T) {
	s, cleanup := store.SetupTestDB(t)
	defer cleanup()
	user := store.CreateTestUser(t, s)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	cfg := &config.Config{}
	cfg.LLM.BaseURL = upstream.URL
	cfg.LLM.TimeoutSeconds = 5

	r := proxyRouter(s, cfg, user.ID)
	w := perform(r, CreateTestRequest(http.MethodGet, "/models", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
