package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/feedloop/pkg/content"
	"github.com/umputun/feedloop/pkg/domain"
)

func TestServer_Entries(t *testing.T) {
	e := setupTestServer(t)
	token, user := e.registerAndLogin(t, "entries@example.com")
	feed := createFeedFor(t, e, user, "https://example.com/feed.xml")
	first := createEntryFor(t, e, feed, "https://example.com/p1", "Post One")
	second := createEntryFor(t, e, feed, "https://example.com/p2", "Post Two")

	t.Run("list", func(t *testing.T) {
		resp, body := e.request(t, http.MethodGet, "/api/v1/entries", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var entries []domain.Entry
		require.NoError(t, json.Unmarshal(body, &entries))
		assert.Len(t, entries, 2)
	})

	t.Run("filter by feed", func(t *testing.T) {
		resp, body := e.request(t, http.MethodGet, fmt.Sprintf("/api/v1/entries?feed_id=%d", feed.ID), token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var entries []domain.Entry
		require.NoError(t, json.Unmarshal(body, &entries))
		assert.Len(t, entries, 2)
	})

	t.Run("invalid filters rejected", func(t *testing.T) {
		for _, q := range []string{"status=bogus", "starred=maybe", "feed_id=abc", "limit=0", "limit=9999", "offset=-1"} {
			resp, _ := e.request(t, http.MethodGet, "/api/v1/entries?"+q, token, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "query %q", q)
		}
	})

	t.Run("get with enclosures", func(t *testing.T) {
		require.NoError(t, e.db.AddEnclosure(context.Background(),
			&domain.Enclosure{EntryID: first.ID, URL: "https://example.com/p1.mp3", MimeType: "audio/mpeg", Size: 2048}))

		resp, body := e.request(t, http.MethodGet, fmt.Sprintf("/api/v1/entries/%d", first.ID), token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got struct {
			domain.Entry
			Enclosures []domain.Enclosure `json:"enclosures"`
		}
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "Post One", got.Title)
		require.Len(t, got.Enclosures, 1)
		assert.Equal(t, "https://example.com/p1.mp3", got.Enclosures[0].URL)
	})

	t.Run("star toggle", func(t *testing.T) {
		resp, body := e.request(t, http.MethodPost, fmt.Sprintf("/api/v1/entries/%d/star", second.ID), token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var starResp map[string]bool
		require.NoError(t, json.Unmarshal(body, &starResp))
		assert.True(t, starResp["starred"])

		// starred filter picks it up
		resp, body = e.request(t, http.MethodGet, "/api/v1/entries?starred=true", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var entries []domain.Entry
		require.NoError(t, json.Unmarshal(body, &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, second.ID, entries[0].ID)

		// toggle back
		resp, body = e.request(t, http.MethodPost, fmt.Sprintf("/api/v1/entries/%d/star", second.ID), token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.NoError(t, json.Unmarshal(body, &starResp))
		assert.False(t, starResp["starred"])
	})

	t.Run("status change", func(t *testing.T) {
		resp, _ := e.request(t, http.MethodPut, fmt.Sprintf("/api/v1/entries/%d/status", first.ID), token,
			map[string]string{"status": "read"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := e.request(t, http.MethodGet, "/api/v1/entries?status=read", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var entries []domain.Entry
		require.NoError(t, json.Unmarshal(body, &entries))
		require.Len(t, entries, 1)
		assert.Equal(t, first.ID, entries[0].ID)
	})

	t.Run("invalid status", func(t *testing.T) {
		resp, _ := e.request(t, http.MethodPut, fmt.Sprintf("/api/v1/entries/%d/status", first.ID), token,
			map[string]string{"status": "archived"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("foreign entry invisible", func(t *testing.T) {
		otherToken, _ := e.registerAndLogin(t, "other-entries@example.com")

		resp, _ := e.request(t, http.MethodGet, fmt.Sprintf("/api/v1/entries/%d", first.ID), otherToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		resp, _ = e.request(t, http.MethodPost, fmt.Sprintf("/api/v1/entries/%d/star", first.ID), otherToken, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)

		// other user's listing stays empty
		resp, body := e.request(t, http.MethodGet, "/api/v1/entries", otherToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var entries []domain.Entry
		require.NoError(t, json.Unmarshal(body, &entries))
		assert.Empty(t, entries)
	})
}

func TestServer_ExtractContent(t *testing.T) {
	e := setupTestServer(t)
	token, user := e.registerAndLogin(t, "extract@example.com")
	feed := createFeedFor(t, e, user, "https://example.com/feed.xml")
	entry := createEntryFor(t, e, feed, "https://example.com/article", "Long Read")

	t.Run("extracts and persists", func(t *testing.T) {
		e.extractor.ExtractFunc = func(ctx context.Context, urlStr string) (*content.ExtractResult, error) {
			return &content.ExtractResult{Title: "Long Read", Content: "<p>the full article text</p>"}, nil
		}

		resp, body := e.request(t, http.MethodPost, fmt.Sprintf("/api/v1/entries/%d/content", entry.ID), token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got domain.Entry
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "<p>the full article text</p>", got.Content)
		assert.Equal(t, 1, got.ReadingTime)

		calls := e.extractor.ExtractCalls()
		require.Len(t, calls, 1)
		assert.Equal(t, "https://example.com/article", calls[0].URLStr)

		// persisted, visible on subsequent reads
		stored, err := e.db.GetEntry(context.Background(), entry.ID)
		require.NoError(t, err)
		assert.Equal(t, "<p>the full article text</p>", stored.Content)
	})

	t.Run("second request uses stored content", func(t *testing.T) {
		resp, body := e.request(t, http.MethodPost, fmt.Sprintf("/api/v1/entries/%d/content", entry.ID), token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var got domain.Entry
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "<p>the full article text</p>", got.Content)
		assert.Len(t, e.extractor.ExtractCalls(), 1) // no repeat extraction
	})

	t.Run("extraction failure", func(t *testing.T) {
		other := createEntryFor(t, e, feed, "https://example.com/broken", "Broken")
		e.extractor.ExtractFunc = func(ctx context.Context, urlStr string) (*content.ExtractResult, error) {
			return nil, errors.New("page not reachable")
		}

		resp, _ := e.request(t, http.MethodPost, fmt.Sprintf("/api/v1/entries/%d/content", other.ID), token, nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

		stored, err := e.db.GetEntry(context.Background(), other.ID)
		require.NoError(t, err)
		assert.Empty(t, stored.Content)
	})
}
