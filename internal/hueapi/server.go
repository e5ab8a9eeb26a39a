package hueapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridge/internal/description"
	"github.com/dokzlo13/huebridge/internal/device"
)

// maxBodySize caps request bodies read by the API handler.
const maxBodySize = 64 << 10

// Server is the bridge HTTP server.
type Server struct {
	addr        string
	gateway     *Gateway
	registry    *device.Registry
	description []byte
	started     time.Time

	listener   net.Listener
	httpServer *http.Server
}

// NewServer creates a server for addr serving the gateway and the given
// description document.
func NewServer(addr string, gateway *Gateway, registry *device.Registry, descriptionXML []byte) *Server {
	return &Server{
		addr:        addr,
		gateway:     gateway,
		registry:    registry,
		description: descriptionXML,
		started:     time.Now(),
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(recoverer)

	r.Get("/description.xml", s.handleDescription)
	r.Get("/status", s.handleStatus)
	r.HandleFunc("/api", s.handleAPI)
	r.HandleFunc("/api/*", s.handleAPI)

	r.NotFound(handleEmpty)
	r.MethodNotAllowed(handleEmpty)
	return r
}

// Listen binds the listening socket. A bind failure is returned so startup
// can abort.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Close releases the listener of a server that was never served.
func (s *Server) Close() error {
	if s.listener == nil || s.httpServer != nil {
		return nil
	}
	return s.listener.Close()
}

// Serve runs the server until ctx is cancelled, then shuts it down within
// shutdownTimeout. Listen must have succeeded.
func (s *Server) Serve(ctx context.Context, shutdownTimeout time.Duration) error {
	if s.listener == nil {
		return errors.New("hueapi: Serve called before Listen")
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", s.Addr()).Msg("Starting bridge HTTP server")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Bridge HTTP server shutdown error")
		}
	}()

	if err := s.httpServer.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("Discarding unreadable request body")
		body = nil
	}
	write(w, s.gateway.Handle(r.Method, r.URL.Path, body))
}

func (s *Server) handleDescription(w http.ResponseWriter, _ *http.Request) {
	write(w, Response{Status: http.StatusOK, ContentType: description.ContentType, Body: s.description})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	page := StatusPage(s.registry.Snapshots(), time.Since(s.started))
	write(w, Response{Status: http.StatusOK, ContentType: "text/plain; charset=utf-8", Body: []byte(page)})
}

func handleEmpty(w http.ResponseWriter, _ *http.Request) {
	write(w, jsonResponse(emptyObject))
}

func write(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

// requestLogger logs each request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote", r.RemoteAddr).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// recoverer turns a handler panic into an empty document.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("Panic recovered in HTTP handler")
				handleEmpty(w, r)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
