package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// Listener serves a handler on a TCP address.
type Listener struct {
	addr         string
	httpServer   *http.Server
	readTimeout  time.Duration
	writeTimeout time.Duration
	errs         chan error
}

// NewListener returns a stopped listener. writeTimeout should exceed the
// request timeout so handlers can write their own timeout responses.
func NewListener(addr string, requestTimeout time.Duration) *Listener {
	return &Listener{
		addr:         addr,
		readTimeout:  15 * time.Second,
		writeTimeout: requestTimeout + 5*time.Second,
		errs:         make(chan error, 1),
	}
}

// Start begins serving in a goroutine. It returns when the socket is bound.
func (l *Listener) Start(handler http.Handler) error {
	l.httpServer = &http.Server{
		Addr:              l.addr,
		Handler:           handler,
		ReadTimeout:       l.readTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      l.writeTimeout,
	}

	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.addr = ln.Addr().String()
	go func() {
		if err := l.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.errs <- err
		}
		close(l.errs)
	}()
	return nil
}

// Addr returns the bound address once started.
func (l *Listener) Addr() string { return l.addr }

// Errors reports a serve failure. It is closed when serving stops.
func (l *Listener) Errors() <-chan error { return l.errs }

// Shutdown gracefully stops the HTTP server.
func (l *Listener) Shutdown(ctx context.Context) error {
	if l.httpServer == nil {
		return nil
	}
	return l.httpServer.Shutdown(ctx)
}
