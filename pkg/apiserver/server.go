// Package apiserver implements the HTTP surface from spec.md §6: a subset
// of the Kubernetes core/v1 REST API over the Resource Store, SSE watch
// streams over pkg/events, and three TLS modes.
package apiserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/CloudNebulaProject/reddwarf/pkg/events"
	"github.com/CloudNebulaProject/reddwarf/pkg/store"
)

// Server serves the Reddwarf REST API over a Resource Store.
type Server struct {
	store      *store.Store
	pods       *store.PodStore
	bus        *events.Bus
	log        *slog.Logger
	httpServer *http.Server
}

// New builds a Server and wires its router. Call ListenAndServe to run it.
func New(st *store.Store, pods *store.PodStore, bus *events.Bus, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{store: st, pods: pods, bus: bus, log: log}
	s.httpServer = &http.Server{Handler: s.routes()}
	return s
}

// Handler exposes the underlying http.Handler, mostly for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthHandler)
	r.Get("/livez", healthHandler)
	r.Get("/readyz", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/pods", s.listAllPods)

		r.Route("/nodes", func(r chi.Router) {
			r.Get("/", s.listNodes)
			r.Post("/", s.createNode)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.getNode)
				r.Put("/", s.updateNode)
				r.Delete("/", s.deleteNode)
				r.Put("/status", s.updateNodeStatus)
			})
		})

		r.Route("/namespaces", func(r chi.Router) {
			r.Get("/", s.listNamespaces)
			r.Post("/", s.createNamespace)
			r.Route("/{name}", func(r chi.Router) {
				r.Get("/", s.getNamespace)
				r.Put("/", s.updateNamespace)
				r.Delete("/", s.deleteNamespace)
			})

			r.Route("/{ns}/pods", func(r chi.Router) {
				r.Get("/", s.listPods)
				r.Post("/", s.createPod)
				r.Route("/{name}", func(r chi.Router) {
					r.Get("/", s.getPod)
					r.Put("/", s.updatePod)
					r.Patch("/", s.patchPod)
					r.Delete("/", s.deletePod)
					r.Put("/status", s.updatePodStatus)
					r.Post("/finalize", s.finalizePod)
				})
			})

			r.Route("/{ns}/services", func(r chi.Router) {
				r.Get("/", s.listServices)
				r.Post("/", s.createService)
				r.Route("/{name}", func(r chi.Router) {
					r.Get("/", s.getService)
					r.Put("/", s.updateService)
					r.Delete("/", s.deleteService)
				})
			})
		})
	})

	return r
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "dur", time.Since(start))
		})
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// ListenAndServe runs the server on addr under the given TLS mode until
// ctx is cancelled, then shuts it down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, tls *TLSConfig) error {
	s.httpServer.Addr = addr

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls == nil || tls.Mode == TLSDisabled {
			err = s.httpServer.ListenAndServe()
		} else {
			serverCert, serverKey, caErr := tls.Materialize()
			if caErr != nil {
				errCh <- caErr
				return
			}
			err = s.httpServer.ListenAndServeTLS(serverCert, serverKey)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
