package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/umputun/feedloop/pkg/domain"
)

type categoryRequest struct {
	Title string `json:"title"`
}

// listCategoriesHandler returns the user's categories in creation order
func (s *Server) listCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	categories, err := s.store.GetCategories(r.Context(), user.ID)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, categories)
}

// createCategoryHandler adds a new category for the user
func (s *Server) createCategoryHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		renderError(w, r, fmt.Errorf("category title is required"), http.StatusBadRequest)
		return
	}

	category := &domain.Category{UserID: user.ID, Title: req.Title}
	if err := s.store.CreateCategory(r.Context(), category); err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusCreated, category)
}

// updateCategoryHandler renames a category
func (s *Server) updateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	category, err := s.ownedCategory(r, user, id)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}

	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, r, fmt.Errorf("invalid request body"), http.StatusBadRequest)
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		renderError(w, r, fmt.Errorf("category title is required"), http.StatusBadRequest)
		return
	}

	category.Title = req.Title
	if err := s.store.UpdateCategory(r.Context(), category); err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, category)
}

// deleteCategoryHandler removes a category with all its feeds and entries
func (s *Server) deleteCategoryHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	id, err := pathID(r)
	if err != nil {
		renderError(w, r, err, http.StatusBadRequest)
		return
	}

	if _, err := s.ownedCategory(r, user, id); err != nil {
		renderDomainError(w, r, err)
		return
	}

	if err := s.store.DeleteCategory(r.Context(), id); err != nil {
		renderDomainError(w, r, err)
		return
	}
	renderJSON(w, r, http.StatusOK, map[string]string{"status": "deleted"})
}

// ownedCategory loads a category and hides other users' categories as missing
func (s *Server) ownedCategory(r *http.Request, user *domain.User, id int64) (*domain.Category, error) {
	category, err := s.store.GetCategory(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if category.UserID != user.ID {
		return nil, &domain.NotFoundError{Msg: "category not found"}
	}
	return category, nil
}

// pathID parses the {id} path segment
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}
