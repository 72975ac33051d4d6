package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/umputun/feedloop/pkg/db"
	"github.com/umputun/feedloop/pkg/domain"
	"github.com/umputun/feedloop/pkg/scheduler"
)

// entryResponse is an entry with its enclosures attached
type entryResponse struct {
	*domain.Entry
	Enclosures []*domain.Enclosure `json:"enclosures,omitempty"`
}

// listEntriesHandler returns the user's entries, newest first, with optional
// status/starred/feed filters and limit/offset paging
func (s *Server) listEntriesHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	filter, err := entryFilterFromQuery(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	entries, err := s.store.GetEntries(r.Context(), user.ID, filter)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, entries)
}

// getEntryHandler returns a single entry with enclosures
func (s *Server) getEntryHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	entry, err := s.ownedEntry(r, user, id)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}

	enclosures, err := s.store.GetEnclosures(r.Context(), entry.ID)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, entryResponse{Entry: entry, Enclosures: enclosures})
}

// starEntryHandler toggles the starred flag, returns the new value
func (s *Server) starEntryHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	if _, err := s.ownedEntry(r, user, id); err != nil {
		renderDomainError(w, r, err)
		return
	}

	starred, err := s.store.ToggleEntryStar(r.Context(), id)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]bool{"starred": starred})
}

// entryStatusHandler moves an entry through its read lifecycle
func (s *Server) entryStatusHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	status := domain.EntryStatus(req.Status)
	if !status.Valid() {
		renderError(w, r, fmt.Errorf("invalid status %q", req.Status), http.StatusBadRequest)
		return
	}

	if _, err := s.ownedEntry(r, user, id); err != nil {
		renderDomainError(w, r, err)
		return
	}

	if err := s.store.UpdateEntryStatus(r.Context(), id, status); err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"status": string(status)})
}

// extractEntryHandler pulls full article content from the entry's page on demand
// and persists it with a refreshed reading time. Already extracted entries are
// returned as is, extraction runs once per entry.
func (s *Server) extractEntryHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	entry, err := s.ownedEntry(r, user, id)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}

	if entry.Content != "" {
		renderJSON(w, r, http.StatusOK, entry)
		return
	}

	result, err := s.extractor.Extract(r.Context(), entry.URL)
	if err != nil {
		log.Printf("[WARN] content extraction failed for entry %d (%s): %v", entry.ID, entry.URL, err)
		renderError(w, r, fmt.Errorf("content extraction failed"), http.StatusBadGateway)
		return
	}

	readingTime := scheduler.EstimateReadingTime(result.Content)
	if err := s.store.UpdateEntryContent(r.Context(), entry.ID, result.Content, readingTime); err != nil {
		renderDomainError(w, r, err)
		return
	}

	entry.Content = result.Content
	entry.ReadingTime = readingTime
	renderJSON(w, r, http.StatusOK, entry)
}

// ownedEntry loads an entry and hides other users' entries as missing
func (s *Server) ownedEntry(r *http.Request, user *domain.User, id int64) (*domain.Entry, error) {
	entry, err := s.store.GetEntry(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if entry.UserID != user.ID {
		return nil, &domain.NotFoundError{Msg: "entry not found"}
	}
	return entry, nil
}

// entryFilterFromQuery builds an entry filter from query parameters
func entryFilterFromQuery(r *http.Request) (db.EntryFilter, error) {
	var filter db.EntryFilter
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status := domain.EntryStatus(v)
		if !status.Valid() {
			return filter, fmt.Errorf("invalid status %q", v)
		}
		filter.Status = status
	}
	if v := q.Get("starred"); v != "" {
		starred, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("invalid starred value %q", v)
		}
		filter.Starred = &starred
	}
	if v := q.Get("feed_id"); v != "" {
		feedID, err := strconv.ParseInt(v, 10, 64)
		if err != nil || feedID <= 0 {
			return filter, fmt.Errorf("invalid feed_id %q", v)
		}
		filter.FeedID = feedID
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > 500 {
			return filter, fmt.Errorf("invalid limit %q", v)
		}
		filter.Limit = limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			return filter, fmt.Errorf("invalid offset %q", v)
		}
		filter.Offset = offset
	}

	return filter, nil
}
