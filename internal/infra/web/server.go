package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"counseling-platform/internal/infra/logging"
	"counseling-platform/internal/usecase"
)

// Server exposes the REST surface: the websocket-independent views over the
// same lifecycle controller the realtime gateway drives.
type Server struct {
	chatUC   usecase.ChatUseCase
	walletUC usecase.WalletUseCase
	billing  usecase.BillingUseCase
	auth     *AuthManager
	log      *zerolog.Logger
}

func NewServer(
	chatUC usecase.ChatUseCase,
	walletUC usecase.WalletUseCase,
	billing usecase.BillingUseCase,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		chatUC:   chatUC,
		walletUC: walletUC,
		billing:  billing,
		auth:     auth,
		log:      logger,
	}
}

// Router builds the route tree. The websocket handler is mounted by the
// caller so this package stays transport-agnostic about the gateway.
func (s *Server) Router(wsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.traceMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Route("/chats", func(r chi.Router) {
			r.Post("/", s.createChat)
			r.Get("/", s.listChats)
			r.Get("/queued", s.listQueued)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getChat)
				r.Patch("/accept", s.acceptChat)
				r.Get("/messages", s.listMessages)
				r.Post("/messages", s.sendMessage)
				r.Post("/complete", s.completeChat)
				r.Post("/cancel", s.cancelChat)
			})
		})
		r.Route("/wallet", func(r chi.Router) {
			r.Get("/", s.getWallet)
			r.Post("/topup", s.topUpWallet)
		})
	})

	if wsHandler != nil {
		r.Handle("/ws/chats/{id}", wsHandler)
	}
	return r
}

type ctxKey string

const ctxClaims ctxKey = "claims"

// traceMiddleware assigns each request a trace id for log correlation.
func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionMiddleware authenticates the bearer credential and stashes the
// claims in the request context.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), ctxClaims, claims)
		ctx = logging.WithUserID(ctx, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFrom(ctx context.Context) *SessionClaims {
	c, _ := ctx.Value(ctxClaims).(*SessionClaims)
	return c
}
