// Package gateway exposes conversations over HTTP: a one-shot chat endpoint
// and a websocket for interactive sessions.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/toolbridge/toolbridge/internal/session"
)

// ChatRequest is the body of POST /v1/chat.
type ChatRequest struct {
	Session string `json:"session"`
	Message string `json:"message"`
}

// ChatResponse is the reply body.
type ChatResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server serves the chat gateway.
type Server struct {
	sessions *session.Manager
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a Server listening on addr.
func New(addr string, sessions *session.Manager) *Server {
	s := &Server{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat", s.handleChat)
	mux.HandleFunc("/v1/chat/ws", s.handleChatWS)
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpSrv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the gateway's HTTP handler.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Gateway listening", "addr", s.httpSrv.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}
	if req.Session == "" {
		req.Session = "http:default"
	}

	conv := s.sessions.GetOrCreate(req.Session)
	reply, err := conv.Ask(r.Context(), req.Message)
	if err != nil {
		slog.Error("Chat turn failed", "session", req.Session, "err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

// handleChatWS runs a conversation over a websocket: each text frame is one
// user message, each reply frame is the final assistant answer.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	sessionKey := r.URL.Query().Get("session")
	if sessionKey == "" {
		sessionKey = "ws:default"
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conv := s.sessions.GetOrCreate(sessionKey)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		reply, err := conv.Ask(r.Context(), string(data))
		if err != nil {
			slog.Error("Chat turn failed", "session", sessionKey, "err", err)
			if werr := conn.WriteJSON(errorResponse{Error: err.Error()}); werr != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(ChatResponse{Reply: reply}); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
