package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecbot/internal/domain"
	"github.com/kailas-cloud/vecbot/internal/domain/search/mode"
	logpkg "github.com/kailas-cloud/vecbot/internal/logger"
	"github.com/kailas-cloud/vecbot/internal/metrics"
	chiTransport "github.com/kailas-cloud/vecbot/internal/transport/chi"
	healthuc "github.com/kailas-cloud/vecbot/internal/usecase/health"
	"github.com/kailas-cloud/vecbot/internal/version"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the bot messaging endpoint",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (default from config)"},
		},
		Action: withApp(runServe),
	}
}

func runServe(ctx context.Context, c *cli.Context, a *app) error {
	cfg := a.cfg
	logger := a.logger
	if c.IsSet("port") {
		cfg.HTTP.Port = c.Int("port")
	}

	logger.Info("Starting vecbot API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("search_driver", cfg.Search.Driver),
		zap.String("index", cfg.Search.IndexName),
	)

	healthSvc := healthuc.New(a.backend, newEmbeddingHealthChecker(a.healthClient), logger)
	server := chiTransport.NewServer(
		a.searchService(),
		a.provisionService(),
		healthSvc,
		cfg.Search.IndexName,
		chiTransport.BotConfig{
			Mode:            mode.Mode(cfg.Query.BotMode),
			TitleField:      cfg.Bot.TitleField,
			DetailField:     cfg.Bot.DetailField,
			PreviewImageURL: cfg.Bot.PreviewImageURL,
		},
		logger,
	)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware("/metrics"))
	chiTransport.HandlerWithOptions(server, chiTransport.ChiServerOptions{
		BaseRouter: r,
		ErrorHandlerFunc: func(w http.ResponseWriter, _ *http.Request, err error) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
				Code:    chiTransport.ErrorResponseCodeBadRequest,
				Message: err.Error(),
			})
		},
	})

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// embeddingHealthChecker adapts a domain.HealthChecker to health.EmbeddingChecker.
type embeddingHealthChecker struct {
	checker domain.HealthChecker
}

func newEmbeddingHealthChecker(checker domain.HealthChecker) *embeddingHealthChecker {
	return &embeddingHealthChecker{checker: checker}
}

func (h *embeddingHealthChecker) HealthCheck(ctx context.Context) error {
	if err := h.checker.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding health check: %w", err)
	}
	return nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.String("path", r.URL.Path),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    chiTransport.ErrorResponseCodeInternalError,
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int64("content_length", r.ContentLength),
				zap.String("user_agent", r.UserAgent()),
				zap.Int("response_bytes", ww.BytesWritten()),
			}
			// Token usage is reported by handlers through the X-Embedding-Tokens header.
			if tokens := ww.Header().Get("X-Embedding-Tokens"); tokens != "" {
				fields = append(fields, zap.String("embedding_tokens", tokens))
			}
			reqLogger.Info("http_request", fields...)
		})
	}
}
