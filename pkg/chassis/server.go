// Package chassis runs the docudata HTTP handler.
//
// Plain mode serves HTTP/1.1 on TCP, for local use behind a proxy. TLS mode
// binds the same port twice:
//   - TCP: HTTP/1.1 + HTTP/2
//   - UDP: HTTP/3 over QUIC, advertised through Alt-Svc
//
// Without cert/key files TLS mode generates a self-signed ECDSA P-256
// certificate for development.
package chassis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
)

const (
	idleTimeout       = 5 * time.Minute
	keepAlive         = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Config holds configuration for the chassis server.
type Config struct {
	Addr     string // e.g. ":8420"; TLS mode uses it for TCP and UDP
	TLS      bool
	CertFile string
	KeyFile  string
	Handler  http.Handler
	Logger   *slog.Logger
}

// Server serves one handler over TCP and, in TLS mode, over QUIC.
type Server struct {
	addr    string
	logger  *slog.Logger
	tlsCfg  *tls.Config // nil in plain mode
	handler http.Handler

	mu     sync.Mutex
	tcp    *http.Server
	h3     *http3.Server
	quicLn *quic.Listener
}

// New validates cfg and prepares TLS material. Nothing listens until Start.
func New(cfg Config) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("chassis: nil handler")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{addr: cfg.Addr, logger: cfg.Logger}

	if cfg.TLS {
		var err error
		if cfg.CertFile != "" || cfg.KeyFile != "" {
			s.tlsCfg, err = ProductionTLSConfig(cfg.CertFile, cfg.KeyFile)
			if err != nil {
				return nil, fmt.Errorf("load TLS cert: %w", err)
			}
			cfg.Logger.Info("TLS: certificate loaded", "cert", cfg.CertFile)
		} else {
			s.tlsCfg, err = DevelopmentTLSConfig()
			if err != nil {
				return nil, fmt.Errorf("generate dev TLS: %w", err)
			}
			cfg.Logger.Warn("TLS: self-signed development certificate in use")
		}
	}
	s.handler = s.wrap(cfg.Handler)
	return s, nil
}

// Handler returns the wrapped handler the listeners serve.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) wrap(next http.Handler) http.Handler {
	next = securityHeaders(next)
	if s.tlsCfg != nil {
		next = altSvcMiddleware(s.addr, next)
	}
	return next
}

// securityHeaders adds the headers a JSON API should always send.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// altSvcMiddleware advertises HTTP/3 on the same port.
func altSvcMiddleware(addr string, next http.Handler) http.Handler {
	_, port, _ := net.SplitHostPort(addr)
	if port == "" {
		port = "443"
	}
	altSvc := fmt.Sprintf(`h3=":%s"; ma=86400`, port)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Alt-Svc", altSvc)
		next.ServeHTTP(w, r)
	})
}

// Start listens and serves until ctx is cancelled or a listener fails.
// It does not shut the listeners down; call Stop for that.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.tcp = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
	}
	errCh := make(chan error, 2)

	if s.tlsCfg == nil {
		s.mu.Unlock()
		s.logger.Info("chassis started", "addr", s.addr, "tcp", "HTTP/1.1")
		go func() {
			if err := s.tcp.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("TCP: %w", err)
			}
		}()
		return wait(ctx, errCh)
	}

	tcpTLS := s.tlsCfg.Clone()
	tcpTLS.NextProtos = []string{"h2", "http/1.1"}
	s.tcp.TLSConfig = tcpTLS

	quicTLS := s.tlsCfg.Clone()
	quicTLS.NextProtos = []string{http3.NextProtoH3}
	ln, err := quic.ListenAddr(s.addr, quicTLS, &quic.Config{
		MaxIdleTimeout:  idleTimeout,
		KeepAlivePeriod: keepAlive,
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("QUIC listen: %w", err)
	}
	s.quicLn = ln
	s.h3 = &http3.Server{Handler: s.handler}
	s.mu.Unlock()

	s.logger.Info("chassis started",
		"addr", s.addr,
		"tcp", "HTTP/1.1+HTTP/2 (TLS)",
		"udp", "HTTP/3",
	)

	go func() {
		tcpLn, err := tls.Listen("tcp", s.addr, tcpTLS)
		if err != nil {
			errCh <- fmt.Errorf("TCP listen: %w", err)
			return
		}
		if err := s.tcp.Serve(tcpLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("TCP: %w", err)
		}
	}()

	go func() {
		for {
			conn, err := ln.Accept(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errCh <- fmt.Errorf("QUIC accept: %w", err)
				return
			}
			if alpn := conn.ConnectionState().TLS.NegotiatedProtocol; alpn != http3.NextProtoH3 {
				s.logger.Warn("unknown ALPN, closing", "alpn", alpn, "remote", conn.RemoteAddr())
				conn.CloseWithError(quic.ApplicationErrorCode(0x11), "unsupported ALPN: "+alpn)
				continue
			}
			go func() {
				if err := s.h3.ServeQUICConn(conn); err != nil {
					s.logger.Debug("HTTP/3 conn done", "remote", conn.RemoteAddr(), "error", err)
				}
			}()
		}
	}()

	return wait(ctx, errCh)
}

func wait(ctx context.Context, errCh <-chan error) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop gracefully shuts down every listener Start opened.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if s.tcp != nil {
		if err := s.tcp.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.quicLn != nil {
		if err := s.quicLn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.h3 != nil {
		if err := s.h3.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.logger.Info("chassis stopped")
	return firstErr
}
