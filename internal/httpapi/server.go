// Package httpapi exposes the public site endpoints and the admin
// back-office over gorilla/mux. Admin routes sit behind the session and
// capability guards; public routes carry at most a CAPTCHA gate.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/volantix/siteapi/internal/audit"
	"github.com/volantix/siteapi/internal/auth"
	"github.com/volantix/siteapi/internal/captcha"
	"github.com/volantix/siteapi/internal/credential"
	"github.com/volantix/siteapi/internal/mailer"
	"github.com/volantix/siteapi/internal/permission"
	"github.com/volantix/siteapi/internal/session"
	"github.com/volantix/siteapi/internal/store"
)

// Server holds the handler dependencies and builds the route table.
type Server struct {
	logger        *zap.Logger
	store         store.RecordStore
	authority     *auth.Authority
	verifier      *credential.Verifier
	codec         *session.Codec
	audit         *audit.Recorder
	captcha       captcha.Verifier
	mail          mailer.Mailer
	inbox         string
	secureCookies bool
}

// Options configures a [Server]. All fields except Inbox are required.
type Options struct {
	Logger    *zap.Logger
	Store     store.RecordStore
	Authority *auth.Authority
	Verifier  *credential.Verifier
	Codec     *session.Codec
	Audit     *audit.Recorder
	Captcha   captcha.Verifier
	Mail      mailer.Mailer
	// Inbox receives contact-form notifications. Empty disables them.
	Inbox string
	// SecureCookies ties the cookie Secure flag to the deployment.
	SecureCookies bool
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	captchaVerifier := opts.Captcha
	if captchaVerifier == nil {
		captchaVerifier = captcha.Disabled{}
	}
	return &Server{
		logger:        logger,
		store:         opts.Store,
		authority:     opts.Authority,
		verifier:      opts.Verifier,
		codec:         opts.Codec,
		audit:         opts.Audit,
		captcha:       captchaVerifier,
		mail:          opts.Mail,
		inbox:         opts.Inbox,
		secureCookies: opts.SecureCookies,
	}
}

// Router builds the full route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests, securityHeaders)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	api.HandleFunc("/otp/request", s.handleOTPRequest).Methods(http.MethodPost)
	api.HandleFunc("/otp/verify", s.handleOTPVerify).Methods(http.MethodPost)

	api.HandleFunc("/products", s.handleListProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/{id:[0-9]+}", s.handleGetProduct).Methods(http.MethodGet)
	api.HandleFunc("/services", s.handleListServices).Methods(http.MethodGet)
	api.HandleFunc("/services/{id:[0-9]+}", s.handleGetService).Methods(http.MethodGet)
	api.HandleFunc("/blogs", s.handleListBlogs).Methods(http.MethodGet)
	api.HandleFunc("/blogs/{id:[0-9]+}", s.handleGetBlog).Methods(http.MethodGet)

	api.HandleFunc("/queries", s.handleCreateQuery).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireSession)

	admin.HandleFunc("/users", s.guard(permission.CapViewUsers, s.handleListUsers)).Methods(http.MethodGet)
	admin.HandleFunc("/users", s.guard(permission.CapAddUser, s.handleCreateUser)).Methods(http.MethodPost)
	admin.HandleFunc("/users/{id:[0-9]+}/permissions", s.guard(permission.CapEditUser, s.handleUpdateUserPermissions)).Methods(http.MethodPut)
	admin.HandleFunc("/users/{id:[0-9]+}/password", s.guard(permission.CapEditUser, s.handleUpdateUserPassword)).Methods(http.MethodPut)
	admin.HandleFunc("/users/{id:[0-9]+}", s.guard(permission.CapDeleteUser, s.handleDeleteUser)).Methods(http.MethodDelete)

	admin.HandleFunc("/products", s.guard(permission.CapAddProducts, s.handleCreateProduct)).Methods(http.MethodPost)
	admin.HandleFunc("/products/{id:[0-9]+}", s.guard(permission.CapEditProducts, s.handleUpdateProduct)).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id:[0-9]+}", s.guard(permission.CapDeleteProducts, s.handleDeleteProduct)).Methods(http.MethodDelete)

	admin.HandleFunc("/services", s.guard(permission.CapAddServices, s.handleCreateService)).Methods(http.MethodPost)
	admin.HandleFunc("/services/{id:[0-9]+}", s.guard(permission.CapEditServices, s.handleUpdateService)).Methods(http.MethodPut)
	admin.HandleFunc("/services/{id:[0-9]+}", s.guard(permission.CapDeleteServices, s.handleDeleteService)).Methods(http.MethodDelete)

	admin.HandleFunc("/blogs", s.guard(permission.CapAddBlogs, s.handleCreateBlog)).Methods(http.MethodPost)
	admin.HandleFunc("/blogs/{id:[0-9]+}", s.guard(permission.CapEditBlogs, s.handleUpdateBlog)).Methods(http.MethodPut)
	admin.HandleFunc("/blogs/{id:[0-9]+}", s.guard(permission.CapDeleteBlogs, s.handleDeleteBlog)).Methods(http.MethodDelete)

	admin.HandleFunc("/queries", s.guard(permission.CapViewQueries, s.handleListQueries)).Methods(http.MethodGet)
	admin.HandleFunc("/queries/{id}", s.guard(permission.CapDeleteQueries, s.handleDeleteQuery)).Methods(http.MethodDelete)

	admin.HandleFunc("/logs", s.guard(permission.CapViewLogs, s.handleListLogs)).Methods(http.MethodGet)
	admin.HandleFunc("/logs", s.guard(permission.CapDeleteLogs, s.handleClearLogs)).Methods(http.MethodDelete)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
