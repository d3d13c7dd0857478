package app

import (
	"net/http"
)

// handleJoystickPage renders the operator page.
func (a *App) handleJoystickPage(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title":    "IotCarRC",
		"Revision": a.Controller.Status().Revision,
	}
	if err := a.Tmpl.ExecuteTemplate(w, "joystick.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
