// Package api exposes the vault over HTTP. Every route except registration, login and
// the health check requires a bearer token.
package api

import (
	"net/http"

	"aethersecure/auth"
	"aethersecure/face"
	"aethersecure/vault"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// DefaultMaxUploadBytes applies when Options.MaxUploadBytes is not positive.
const DefaultMaxUploadBytes = 16 << 20

// UserDirectory lists registered usernames.
type UserDirectory interface {
	ListUsernames(exclude string) ([]string, error)
}

// SocketServer attaches an authenticated websocket to a username.
type SocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, username string)
}

// Options wires the server's collaborators. Faces and Sockets are optional.
type Options struct {
	Accounts       *auth.Authenticator
	Tokens         *auth.TokenIssuer
	Vault          *vault.Service
	Users          UserDirectory
	Sockets        SocketServer
	Faces          face.EmbeddingProvider
	MaxUploadBytes int64
	Logger         *logrus.Logger
}

// Server routes HTTP requests to the vault.
type Server struct {
	accounts  *auth.Authenticator
	tokens    *auth.TokenIssuer
	vault     *vault.Service
	users     UserDirectory
	sockets   SocketServer
	faces     face.EmbeddingProvider
	maxUpload int64
	log       *logrus.Logger

	router *mux.Router
}

// NewServer builds the router.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultMaxUploadBytes
	}

	s := &Server{
		accounts:  opts.Accounts,
		tokens:    opts.Tokens,
		vault:     opts.Vault,
		users:     opts.Users,
		sockets:   opts.Sockets,
		faces:     opts.Faces,
		maxUpload: maxUpload,
		log:       logger,
		router:    mux.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.withRequestID, s.withRecovery, s.withBodyLimit)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Detail: "not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Detail: "method not allowed"})
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/token", s.handleToken).Methods(http.MethodPost)

	protected := r.NewRoute().Subrouter()
	protected.Use(s.withAuth)

	protected.HandleFunc("/users/me", s.handleMe).Methods(http.MethodGet)
	protected.HandleFunc("/users/me", s.handleDeleteMe).Methods(http.MethodDelete)
	protected.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)

	protected.HandleFunc("/crypto/text/encrypt", s.handleTextEncrypt).Methods(http.MethodPost)
	protected.HandleFunc("/crypto/text/decrypt", s.handleTextDecrypt).Methods(http.MethodPost)
	protected.HandleFunc("/crypto/image/hide", s.handleImageHide).Methods(http.MethodPost)
	protected.HandleFunc("/crypto/image/extract", s.handleImageExtract).Methods(http.MethodPost)
	protected.HandleFunc("/crypto/image/capacity", s.handleImageCapacity).Methods(http.MethodPost)
	protected.HandleFunc("/crypto/file/encrypt", s.handleFileEncrypt).Methods(http.MethodPost)
	protected.HandleFunc("/crypto/file/decrypt", s.handleFileDecrypt).Methods(http.MethodPost)

	protected.HandleFunc("/messages/inbox", s.handleInbox).Methods(http.MethodGet)
	protected.HandleFunc("/messages/outbox", s.handleOutbox).Methods(http.MethodGet)
	protected.HandleFunc("/messages/send/text", s.handleSendText).Methods(http.MethodPost)
	protected.HandleFunc("/messages/send/stego", s.handleSendStego).Methods(http.MethodPost)
	protected.HandleFunc("/messages/send/aes", s.handleSendFile).Methods(http.MethodPost)
	protected.HandleFunc("/messages/send/raw", s.handleSendRaw).Methods(http.MethodPost)
	protected.HandleFunc("/messages/{id:[0-9]+}/data", s.handleMessageData).Methods(http.MethodGet)
	protected.HandleFunc("/messages/{id:[0-9]+}/read", s.handleMarkRead).Methods(http.MethodPost)

	if s.sockets != nil {
		protected.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.sockets.ServeWS(w, r, usernameFrom(r.Context()))
}
