// Package app implements the HTTP and websocket surface the operator UI talks to.
package app

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"IotCarRC/internal/core"
	"IotCarRC/internal/netgate"
	"IotCarRC/internal/transmitter"
	"IotCarRC/internal/util"
)

//go:embed web/templates/*.html
var templatesFS embed.FS

// Link is the part of the transmitter the API exposes.
type Link interface {
	SetDestination(host string) error
	Destination() string
	Stats() transmitter.Stats
}

// App serves the joystick page, the joystick websocket and the JSON API.
type App struct {
	Controller *core.Controller
	Link       Link
	GateState  func() netgate.State
	Tmpl       *template.Template
	Mux        *http.ServeMux
	Server     *http.Server

	mu       sync.Mutex
	sessions map[string]*session
}

// NewApp initializes the web app for sys with templates and routes.
func NewApp(sys *core.System) (*App, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"year": func() int { return time.Now().Year() },
	}).ParseFS(templatesFS, "web/templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("[app] failed to load templates: %w", err)
	}

	a := &App{
		Controller: sys.Controller,
		Link:       sys.Transmitter,
		GateState:  sys.GateState,
		Tmpl:       tmpl,
		Mux:        http.NewServeMux(),
		sessions:   make(map[string]*session),
	}
	a.registerRoutes()
	return a, nil
}

// Handler returns the root handler with request logging applied.
func (a *App) Handler() http.Handler {
	return logRequests(a.Mux)
}

// Start launches the web server and blocks until stopped.
func (a *App) Start(addr string) error {
	if addr == "" {
		util.Info("[app] app server not started (empty address)")
		return nil
	}

	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	a.Server = &http.Server{
		Addr:              addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	util.Info("[app] web server listening at http://%s", addr)
	if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("[app] HTTP server error: %w", err)
	}
	return nil
}

// Stop gracefully stops the web server and closes open websocket sessions.
func (a *App) Stop() {
	if a.Server != nil {
		util.Info("[app] shutting down web server...")
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := a.Server.Shutdown(ctx); err != nil {
			util.Error("[app] HTTP server shutdown error: %v", err)
		}
	}
	// hijacked websocket connections are not covered by Shutdown
	a.mu.Lock()
	for _, s := range a.sessions {
		_ = s.conn.Close()
	}
	a.mu.Unlock()
}
