package app

// registerRoutes sets up all HTTP handlers for the application.
func (a *App) registerRoutes() {
	a.Mux.HandleFunc("GET /{$}", a.handleJoystickPage)

	a.Mux.HandleFunc("GET /ws/joystick", a.handleJoystickWS)

	a.Mux.HandleFunc("GET /api/status", a.handleStatus)
	a.Mux.HandleFunc("POST /api/destination", a.handleDestination)
	a.Mux.HandleFunc("POST /api/stop", a.handleStop)
}
