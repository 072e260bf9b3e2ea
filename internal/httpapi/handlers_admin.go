package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/volantix/siteapi/internal/permission"
	"github.com/volantix/siteapi/internal/store"
)

func (s *Server) actor(r *http.Request) string {
	if claims := claimsFrom(r.Context()); claims != nil {
		return claims.Username
	}
	return "unknown"
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListUsers()
	if err != nil {
		s.internalError(w, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string             `json:"username"`
		Email       string             `json:"email"`
		Password    string             `json:"password"`
		Permissions *permission.Matrix `json:"permissions"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Username, email and password are required")
		return
	}
	// A colon would make the stored value indistinguishable from the
	// encrypted form.
	if strings.Contains(req.Password, ":") {
		writeError(w, http.StatusBadRequest, "Password must not contain a colon")
		return
	}

	encrypted, err := s.verifier.Encrypt(req.Password)
	if err != nil {
		s.internalError(w, "encrypt credential", err)
		return
	}

	perms := permission.Matrix{}
	if req.Permissions != nil {
		perms = *req.Permissions
	}

	created, err := s.store.CreateUser(&store.User{
		Username:    req.Username,
		Email:       req.Email,
		Password:    encrypted,
		Permissions: perms,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "Username or email already exists")
			return
		}
		s.internalError(w, "create user", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Added user %s", created.Username))
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateUserPermissions(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == store.AdminUserID {
		writeError(w, http.StatusForbidden, "Administrator permissions cannot be modified")
		return
	}

	var req struct {
		Permissions *permission.Matrix `json:"permissions"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Permissions == nil {
		writeError(w, http.StatusBadRequest, "Permissions are required")
		return
	}

	target, err := s.store.GetUserByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.internalError(w, "get user", err)
		return
	}

	if err := s.store.UpdateUserPermissions(id, *req.Permissions); err != nil {
		s.internalError(w, "update permissions", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Updated permissions for user %s", target.Username))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Permissions updated"})
}

func (s *Server) handleUpdateUserPassword(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	var req struct {
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}
	if strings.Contains(req.Password, ":") {
		writeError(w, http.StatusBadRequest, "Password must not contain a colon")
		return
	}

	target, err := s.store.GetUserByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.internalError(w, "get user", err)
		return
	}

	encrypted, err := s.verifier.Encrypt(req.Password)
	if err != nil {
		s.internalError(w, "encrypt credential", err)
		return
	}
	if err := s.store.UpdateUserPassword(id, encrypted); err != nil {
		s.internalError(w, "update password", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Changed password for user %s", target.Username))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated"})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	if id == store.AdminUserID {
		writeError(w, http.StatusForbidden, "Administrator account cannot be deleted")
		return
	}
	if claims := claimsFrom(r.Context()); claims != nil && claims.UserID == id {
		writeError(w, http.StatusBadRequest, "You cannot delete your own account")
		return
	}

	target, err := s.store.GetUserByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		s.internalError(w, "get user", err)
		return
	}

	if err := s.store.DeleteUser(id); err != nil {
		s.internalError(w, "delete user", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Deleted user %s", target.Username))
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var p store.Product
	if !decodeBody(w, r, &p) {
		return
	}
	if p.ID <= 0 || p.Name == "" {
		writeError(w, http.StatusBadRequest, "Product id and name are required")
		return
	}

	if err := s.store.CreateProduct(&p); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, fmt.Sprintf("Product with ID %d already exists", p.ID))
			return
		}
		s.internalError(w, "create product", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Added product %s", p.Name))
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p store.Product
	if !decodeBody(w, r, &p) {
		return
	}
	p.ID = pathID(r)

	if err := s.store.UpdateProduct(&p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		s.internalError(w, "update product", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Updated product %s", p.Name))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product updated"})
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	if err := s.store.DeleteProduct(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Product not found")
			return
		}
		s.internalError(w, "delete product", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Deleted product %d", id))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted"})
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var sv store.Service
	if !decodeBody(w, r, &sv) {
		return
	}
	if sv.ID <= 0 || sv.Title == "" {
		writeError(w, http.StatusBadRequest, "Service id and title are required")
		return
	}

	if err := s.store.CreateService(&sv); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, fmt.Sprintf("Service with ID %d already exists", sv.ID))
			return
		}
		s.internalError(w, "create service", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Added service %s", sv.Title))
	writeJSON(w, http.StatusCreated, sv)
}

func (s *Server) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	var sv store.Service
	if !decodeBody(w, r, &sv) {
		return
	}
	sv.ID = pathID(r)

	if err := s.store.UpdateService(&sv); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Service not found")
			return
		}
		s.internalError(w, "update service", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Updated service %s", sv.Title))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Service updated"})
}

func (s *Server) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	if err := s.store.DeleteService(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Service not found")
			return
		}
		s.internalError(w, "delete service", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Deleted service %d", id))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Service deleted"})
}

func (s *Server) handleCreateBlog(w http.ResponseWriter, r *http.Request) {
	var b store.Blog
	if !decodeBody(w, r, &b) {
		return
	}
	if b.ID <= 0 || b.Title == "" {
		writeError(w, http.StatusBadRequest, "Blog id and title are required")
		return
	}

	if err := s.store.CreateBlog(&b); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, fmt.Sprintf("Blog with ID %d already exists", b.ID))
			return
		}
		s.internalError(w, "create blog", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Added blog %s", b.Title))
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleUpdateBlog(w http.ResponseWriter, r *http.Request) {
	var b store.Blog
	if !decodeBody(w, r, &b) {
		return
	}
	b.ID = pathID(r)

	if err := s.store.UpdateBlog(&b); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Blog not found")
			return
		}
		s.internalError(w, "update blog", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Updated blog %s", b.Title))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Blog updated"})
}

func (s *Server) handleDeleteBlog(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	if err := s.store.DeleteBlog(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Blog not found")
			return
		}
		s.internalError(w, "delete blog", err)
		return
	}

	s.audit.Record(s.actor(r), fmt.Sprintf("Deleted blog %d", id))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Blog deleted"})
}

func (s *Server) handleListQueries(w http.ResponseWriter, r *http.Request) {
	queries, err := s.store.ListQueries()
	if err != nil {
		s.internalError(w, "list queries", err)
		return
	}
	writeJSON(w, http.StatusOK, queries)
}

func (s *Server) handleDeleteQuery(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.store.DeleteQuery(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Query not found")
			return
		}
		s.internalError(w, "delete query", err)
		return
	}

	s.audit.Record(s.actor(r), "Deleted a contact query")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Query deleted"})
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListAudit()
	if err != nil {
		s.internalError(w, "list logs", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearAudit(); err != nil {
		s.internalError(w, "clear logs", err)
		return
	}

	s.audit.Record(s.actor(r), "Cleared activity logs")
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logs cleared"})
}
