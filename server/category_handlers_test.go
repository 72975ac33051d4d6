package server_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/feedloop/pkg/domain"
)

func TestServer_Categories(t *testing.T) {
	e := setupTestServer(t)
	token, _ := e.registerAndLogin(t, "cats@example.com")

	var created domain.Category
	t.Run("create", func(t *testing.T) {
		resp, body := e.request(t, http.MethodPost, "/api/v1/categories", token, map[string]string{"title": "News"})
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &created))
		assert.Equal(t, "News", created.Title)
		assert.NotZero(t, created.ID)
	})

	t.Run("create duplicate", func(t *testing.T) {
		resp, _ := e.request(t, http.MethodPost, "/api/v1/categories", token, map[string]string{"title": "News"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("create empty title", func(t *testing.T) {
		resp, _ := e.request(t, http.MethodPost, "/api/v1/categories", token, map[string]string{"title": "   "})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("list", func(t *testing.T) {
		resp, body := e.request(t, http.MethodGet, "/api/v1/categories", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var categories []domain.Category
		require.NoError(t, json.Unmarshal(body, &categories))
		require.Len(t, categories, 2) // Uncategorized created at registration comes first
		assert.Equal(t, "Uncategorized", categories[0].Title)
		assert.Equal(t, "News", categories[1].Title)
	})

	t.Run("rename", func(t *testing.T) {
		resp, body := e.request(t, http.MethodPut, fmt.Sprintf("/api/v1/categories/%d", created.ID), token, map[string]string{"title": "World News"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var updated domain.Category
		require.NoError(t, json.Unmarshal(body, &updated))
		assert.Equal(t, "World News", updated.Title)
	})

	t.Run("foreign category invisible", func(t *testing.T) {
		otherToken, _ := e.registerAndLogin(t, "other-cats@example.com")

		resp, _ := e.request(t, http.MethodPut, fmt.Sprintf("/api/v1/categories/%d", created.ID), otherToken, map[string]string{"title": "Mine Now"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, _ = e.request(t, http.MethodDelete, fmt.Sprintf("/api/v1/categories/%d", created.ID), otherToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := e.request(t, http.MethodDelete, fmt.Sprintf("/api/v1/categories/%d", created.ID), token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := e.request(t, http.MethodGet, "/api/v1/categories", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var categories []domain.Category
		require.NoError(t, json.Unmarshal(body, &categories))
		require.Len(t, categories, 1)
		assert.Equal(t, "Uncategorized", categories[0].Title)
	})

	t.Run("bad id", func(t *testing.T) {
		resp, _ := e.request(t, http.MethodDelete, "/api/v1/categories/abc", token, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
