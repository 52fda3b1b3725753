// Package server exposes the engine over HTTP with a websocket event feed.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"questguild/internal/app"
	"questguild/internal/apperr"
	"questguild/internal/engine"
	"questguild/internal/identity"
	"questguild/internal/notify"
)

const userHeader = "X-Questguild-User"

type Server struct {
	app    *app.App
	hub    *notify.Hub
	router *mux.Router
	secret []byte
	logger *log.Logger
}

// New wires the routes. When secret is set every API call needs a bearer
// session token; otherwise the caller names themselves in X-Questguild-User.
func New(a *app.App, hub *notify.Hub, secret string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		app:    a,
		hub:    hub,
		router: mux.NewRouter(),
		secret: []byte(secret),
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.hub != nil {
		s.router.Handle("/ws", s.hub)
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.authenticate)
	api.HandleFunc("/register", s.handleRegister).Methods("POST")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/tasks", s.handleListTasks).Methods("GET")
	api.HandleFunc("/tasks/{id}/complete", s.handleCompleteTask).Methods("POST")
	api.HandleFunc("/boss", s.handleBoss).Methods("GET")
	api.HandleFunc("/guilds/{id}/mission", s.handleGuildMission).Methods("GET")
	api.HandleFunc("/guild/chat", s.handleChat).Methods("POST")
}

// authenticate resolves the caller and stores it on the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var (
			user string
			err  error
		)
		if len(s.secret) > 0 {
			token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
			user, err = identity.JWT{Token: token, Secret: s.secret}.CurrentUserID(r.Context())
		} else {
			user, err = identity.Static(r.Header.Get(userHeader)).CurrentUserID(r.Context())
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(identity.WithUserID(r.Context(), user)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"ok": true, "time": time.Now().UTC()}
	if s.hub != nil {
		resp["clients"] = s.hub.Clients()
		resp["dropped"] = s.hub.Dropped()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type registerRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.Wrap(apperr.CodeTaskInvalidInput, "invalid register body", err))
		return
	}
	respond(s, w, r, s.app.Register(r.Context(), req.Name))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respond(s, w, r, s.app.Status(r.Context()))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var filter []engine.TaskStatus
	for _, raw := range r.URL.Query()["status"] {
		st, ok := engine.ParseStatus(raw)
		if !ok {
			s.writeError(w, apperr.Newf(apperr.CodeTaskInvalidInput, "unknown status %q", raw))
			return
		}
		filter = append(filter, st)
	}
	respond(s, w, r, s.app.ListTasks(r.Context(), filter...))
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, apperr.New(apperr.CodeTaskInvalidInput, "task id must be an integer"))
		return
	}
	respond(s, w, r, s.app.CompleteTask(r.Context(), id))
}

func (s *Server) handleBoss(w http.ResponseWriter, r *http.Request) {
	respond(s, w, r, s.app.CurrentBoss(r.Context()))
}

func (s *Server) handleGuildMission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, apperr.New(apperr.CodeGuildInvalidInput, "guild id must be an integer"))
		return
	}
	respond(s, w, r, s.app.GuildMission(r.Context(), id))
}

type chatRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, apperr.Wrap(apperr.CodeGuildInvalidInput, "invalid chat body", err))
		return
	}
	respond(s, w, r, s.app.RecordChatMessage(r.Context(), req.Text))
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
