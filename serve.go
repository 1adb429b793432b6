// Copyright 2025 The NextRush Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nextrush

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// serverTimeouts holds HTTP server timeout configuration.
type serverTimeouts struct {
	readHeader time.Duration
	read       time.Duration
	write      time.Duration
	idle       time.Duration
}

// defaultServerTimeouts returns production-safe defaults. ReadHeaderTimeout
// guards against slowloris attacks; the others bound resource usage.
func defaultServerTimeouts() *serverTimeouts {
	return &serverTimeouts{
		readHeader: 10 * time.Second,
		read:       30 * time.Second,
		write:      60 * time.Second,
		idle:       120 * time.Second,
	}
}

// Serve starts an HTTP server on addr and blocks until the server exits.
// H2C is enabled when configured via WithH2C.
//
// For graceful shutdown, call Shutdown from another goroutine:
//
//	go func() {
//	    if err := r.Serve(":8080"); err != nil && err != http.ErrServerClosed {
//	        log.Fatal(err)
//	    }
//	}()
//
//	quit := make(chan os.Signal, 1)
//	signal.Notify(quit, os.Interrupt)
//	<-quit
//
//	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
//	defer cancel()
//	r.Shutdown(ctx)
func (r *Router) Serve(addr string) error {
	h := http.Handler(r)

	if r.enableH2C {
		h = h2c.NewHandler(h, &http2.Server{})
		r.logger.Warn("h2c enabled; use only in dev or behind a trusted LB")
	}

	srv := r.newServer(addr, h)

	r.srvMu.Lock()
	r.srv = srv
	r.srvMu.Unlock()

	return srv.ListenAndServe()
}

// ServeTLS starts an HTTPS server. HTTP/2 is negotiated via ALPN.
func (r *Router) ServeTLS(addr, certFile, keyFile string) error {
	srv := r.newServer(addr, r)

	r.srvMu.Lock()
	r.srv = srv
	r.srvMu.Unlock()

	return srv.ListenAndServeTLS(certFile, keyFile)
}

func (r *Router) newServer(addr string, h http.Handler) *http.Server {
	timeouts := r.serverTimeouts
	if timeouts == nil {
		timeouts = defaultServerTimeouts()
	}

	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: timeouts.readHeader,
		ReadTimeout:       timeouts.read,
		WriteTimeout:      timeouts.write,
		IdleTimeout:       timeouts.idle,
	}
}

// OnShutdown registers a hook to run during Shutdown, after the listener
// stops accepting connections. Subsystems register cleanup here: rate-limit
// store sweepers, websocket hubs, caches.
func (r *Router) OnShutdown(hook func()) {
	r.hooksMu.Lock()
	r.shutdownHooks = append(r.shutdownHooks, hook)
	r.hooksMu.Unlock()
}

// Shutdown gracefully stops the server without interrupting active
// connections, then runs registered shutdown hooks. Returns
// ErrServerNotStarted when Serve was never called; hooks still run so
// handler-only deployments (tests, lambda-style embedding) can clean up.
func (r *Router) Shutdown(ctx context.Context) error {
	r.srvMu.Lock()
	srv := r.srv
	r.srv = nil
	r.srvMu.Unlock()

	var err error
	if srv == nil {
		err = ErrServerNotStarted
	} else {
		err = srv.Shutdown(ctx)
	}

	r.hooksMu.Lock()
	hooks := r.shutdownHooks
	r.shutdownHooks = nil
	r.hooksMu.Unlock()
	for _, hook := range hooks {
		hook()
	}

	return err
}
