package app

import (
	"encoding/json"
	"errors"
	"net/http"

	"IotCarRC/internal/core"
	"IotCarRC/internal/transmitter"
	"IotCarRC/internal/util"
)

type destinationRequest struct {
	Host string `json:"host"`
}

type statusResponse struct {
	Gate        string                `json:"gate"`
	Destination string                `json:"destination"`
	Transmitter transmitter.Stats     `json:"transmitter"`
	Controller  core.ControllerStatus `json:"controller"`
	Sessions    int                   `json:"sessions"`
}

// handleStatus reports gate state, transmitter counters and controller state.
func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Gate:        a.GateState().String(),
		Destination: a.Link.Destination(),
		Transmitter: a.Link.Stats(),
		Controller:  a.Controller.Status(),
		Sessions:    a.Sessions(),
	})
}

// handleDestination points the transmitter at a new vehicle address.
func (a *App) handleDestination(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if cerr := r.Body.Close(); cerr != nil {
			util.Error("[app] warning: failed to close destination body: %v", cerr)
		}
	}()

	var req destinationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.Link.SetDestination(req.Host); err != nil {
		var cfgErr *transmitter.ConfigurationError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"destination": a.Link.Destination()})
}

// handleStop halts the car.
func (a *App) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := a.Controller.Stop(); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, transmitter.ErrNotConfigured) {
			status = http.StatusConflict
		}
		writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Error("[app] warning: failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorReply{Type: "error", Error: err.Error()})
}
