package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/volantix/siteapi/internal/store"
)

// pathID extracts the numeric {id} route variable. The route pattern already
// constrains it to digits.
func pathID(r *http.Request) int {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	return id
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts()
	if err != nil {
		s.internalError(w, "list products", err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.store.GetProduct(pathID(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		s.internalError(w, "get product", err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.store.ListServices()
	if err != nil {
		s.internalError(w, "list services", err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	service, err := s.store.GetService(pathID(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Service not found")
			return
		}
		s.internalError(w, "get service", err)
		return
	}
	writeJSON(w, http.StatusOK, service)
}

func (s *Server) handleListBlogs(w http.ResponseWriter, r *http.Request) {
	blogs, err := s.store.ListBlogs()
	if err != nil {
		s.internalError(w, "list blogs", err)
		return
	}
	writeJSON(w, http.StatusOK, blogs)
}

func (s *Server) handleGetBlog(w http.ResponseWriter, r *http.Request) {
	blog, err := s.store.GetBlog(pathID(r))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Blog not found")
			return
		}
		s.internalError(w, "get blog", err)
		return
	}
	writeJSON(w, http.StatusOK, blog)
}

func (s *Server) handleCreateQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		Phone        string `json:"phone"`
		Message      string `json:"message"`
		CaptchaToken string `json:"captchaToken"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "Email and message are required")
		return
	}
	if !s.checkCaptcha(w, r, req.CaptchaToken) {
		return
	}

	query := &store.Query{
		ID:      uuid.NewString(),
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Message: req.Message,
	}
	if err := s.store.CreateQuery(query); err != nil {
		s.internalError(w, "create query", err)
		return
	}

	if s.inbox != "" {
		subject := fmt.Sprintf("New contact query from %s", query.Name)
		body := fmt.Sprintf("Name: %s\nEmail: %s\nPhone: %s\n\n%s",
			query.Name, query.Email, query.Phone, query.Message)
		if err := s.mail.Notify(r.Context(), s.inbox, subject, body); err != nil {
			// The record is stored; a failed notification is not the
			// visitor's problem.
			s.logger.Warn("query notification failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Query submitted",
		"id":      query.ID,
	})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op+" failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
