package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/umputun/feedloop/pkg/domain"
)

type subscribeRequest struct {
	URL        string `json:"url"`
	CategoryID int64  `json:"category_id,omitempty"`
}

type updateFeedRequest struct {
	Title      *string `json:"title,omitempty"`
	CategoryID *int64  `json:"category_id,omitempty"`
	Disabled   *bool   `json:"disabled,omitempty"`
}

// listFeedsHandler returns all of the user's feeds
func (s *Server) listFeedsHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	feeds, err := s.store.GetFeeds(r.Context(), user.ID)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, feeds)
}

// subscribeHandler adds a new feed subscription, fetching and backfilling it synchronously
func (s *Server) subscribeHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		renderError(w, r, fmt.Errorf("feed url is required"), http.StatusBadRequest)
		return
	}

	feed, err := s.scheduler.Subscribe(r.Context(), user.ID, req.URL, req.CategoryID)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusCreated, feed)
}

// getFeedHandler returns a single feed
func (s *Server) getFeedHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	feed, err := s.ownedFeed(r, user, id)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, feed)
}

// updateFeedHandler changes feed title, category or disabled state
func (s *Server) updateFeedHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	feed, err := s.ownedFeed(r, user, id)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}

	var req updateFeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			renderError(w, r, fmt.Errorf("feed title cannot be empty"), http.StatusBadRequest)
			return
		}
		feed.Title = title
	}
	if req.CategoryID != nil {
		if _, err := s.ownedCategory(r, user, *req.CategoryID); err != nil {
			renderDomainError(w, r, err)
			return
		}
		feed.CategoryID = *req.CategoryID
	}
	if req.Disabled != nil {
		feed.Disabled = *req.Disabled
	}

	if err := s.store.UpdateFeed(r.Context(), feed); err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, feed)
}

// deleteFeedHandler unsubscribes from a feed, removing its entries
func (s *Server) deleteFeedHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	if _, err := s.ownedFeed(r, user, id); err != nil {
		renderDomainError(w, r, err)
		return
	}

	if err := s.store.DeleteFeed(r.Context(), id); err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

// refreshFeedHandler triggers an immediate refresh, bypassing the schedule.
// Works for disabled feeds too, a manual request is explicit user intent.
func (s *Server) refreshFeedHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	if _, err := s.ownedFeed(r, user, id); err != nil {
		renderDomainError(w, r, err)
		return
	}

	result, err := s.scheduler.RefreshFeedNow(r.Context(), id)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, result)
}

// ownedFeed loads a feed and hides other users' feeds as missing
func (s *Server) ownedFeed(r *http.Request, user *domain.User, id int64) (*domain.Feed, error) {
	feed, err := s.store.GetFeed(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if feed.UserID != user.ID {
		return nil, &domain.NotFoundError{Msg: "feed not found"}
	}
	return feed, nil
}
