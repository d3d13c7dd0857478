package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"IotCarRC/internal/joystick"
	"IotCarRC/internal/model"
	"IotCarRC/internal/util"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// clientMessage is any message the UI sends; Type selects which fields apply.
type clientMessage struct {
	Type      string  `json:"type"`
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Release   bool    `json:"release"`
	Command   string  `json:"command"`
	Mode      string  `json:"mode"`
	Algorithm string  `json:"algorithm"`
}

type helloReply struct {
	Type     string `json:"type"`
	Session  string `json:"session"`
	Mode     string `json:"mode"`
	Revision string `json:"revision"`
}

type knobReply struct {
	Type    string  `json:"type"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	DX      int     `json:"dx"`
	DY      int     `json:"dy"`
	Left    int     `json:"left"`
	Right   int     `json:"right"`
	Handled bool    `json:"handled"`
}

type modeReply struct {
	Type      string `json:"type"`
	Mode      string `json:"mode"`
	Algorithm string `json:"algorithm"`
}

type errorReply struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// session is one connected UI.
type session struct {
	id   string
	conn *websocket.Conn
	wmu  sync.Mutex

	// driving is set while this session holds the stick or a direction
	// button. Only the session's read loop touches it.
	driving bool
}

func (s *session) send(v any) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(v)
}

// handleJoystickWS upgrades HTTP to websocket and feeds the session's input
// into the Controller. All sessions drive the same Controller.
func (a *App) handleJoystickWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.Error("[ws] upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}
	s := &session{id: uuid.NewString(), conn: conn}

	a.mu.Lock()
	a.sessions[s.id] = s
	a.mu.Unlock()
	util.Info("[ws %s] connected from %s", s.id, r.RemoteAddr)

	defer func() {
		a.mu.Lock()
		delete(a.sessions, s.id)
		a.mu.Unlock()
		if err := conn.Close(); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			util.Debug("[ws %s] close: %v", s.id, err)
		}
		// a vanished operator must not leave the car driving; an idle
		// session leaving must not cut off whoever is
		if s.driving {
			if err := a.Controller.Release(); err != nil {
				util.Error("[ws %s] stop on disconnect: %v", s.id, err)
			}
		}
		util.Info("[ws %s] disconnected", s.id)
	}()

	st := a.Controller.Status()
	if err := s.send(helloReply{Type: "hello", Session: s.id, Mode: st.Mode, Revision: st.Revision}); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				util.Error("[ws %s] read: %v", s.id, err)
			}
			return
		}

		var reply any
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			err = fmt.Errorf("malformed message: %w", err)
			reply = errorReply{Type: "error", Error: err.Error()}
		} else if reply, err = a.dispatch(s, msg); err != nil {
			reply = errorReply{Type: "error", Error: err.Error()}
		}
		if reply == nil {
			continue
		}
		if err := s.send(reply); err != nil {
			util.Error("[ws %s] write: %v", s.id, err)
			return
		}
	}
}

// dispatch applies one client message from s. A nil reply means nothing to answer.
func (a *App) dispatch(s *session, msg clientMessage) (any, error) {
	switch msg.Type {
	case "resize":
		return nil, a.Controller.Resize(msg.Width, msg.Height)

	case "touch":
		res, err := a.Controller.Touch(joystick.TouchSample{X: msg.X, Y: msg.Y, Release: msg.Release})
		if err != nil {
			return nil, err
		}
		s.driving = res.Handled && !msg.Release
		return knobReply{
			Type:    "knob",
			X:       res.Knob.X,
			Y:       res.Knob.Y,
			DX:      res.Displacement.X,
			DY:      res.Displacement.Y,
			Left:    res.Command.LeftSpeed,
			Right:   res.Command.RightSpeed,
			Handled: res.Handled,
		}, nil

	case "button":
		if msg.Release {
			s.driving = false
			return nil, a.Controller.Release()
		}
		op, err := model.ParseOpcode(msg.Command)
		if err != nil {
			return nil, err
		}
		if err := a.Controller.Press(op); err != nil {
			return nil, err
		}
		s.driving = op.IsDirectional()
		return nil, nil

	case "mode":
		mode, err := model.ParseDrivingMode(msg.Mode)
		if err != nil {
			return nil, err
		}
		if err := a.Controller.SetMode(mode); err != nil {
			return nil, err
		}
		a.broadcastMode()
		return nil, nil

	case "algorithm":
		alg, err := model.ParseDrivingAlgorithm(msg.Algorithm)
		if err != nil {
			return nil, err
		}
		if err := a.Controller.SetAlgorithm(alg); err != nil {
			return nil, err
		}
		a.broadcastMode()
		return nil, nil
	}
	return nil, fmt.Errorf("unknown message type %q", msg.Type)
}

// broadcastMode tells every session the current mode so each UI can enable or
// disable its steering controls.
func (a *App) broadcastMode() {
	st := a.Controller.Status()
	msg := modeReply{Type: "mode", Mode: st.Mode, Algorithm: st.Algorithm}

	a.mu.Lock()
	sessions := make([]*session, 0, len(a.sessions))
	for _, s := range a.sessions {
		sessions = append(sessions, s)
	}
	a.mu.Unlock()

	for _, s := range sessions {
		if err := s.send(msg); err != nil {
			util.Debug("[ws %s] broadcast: %v", s.id, err)
		}
	}
}

// Sessions returns the number of connected UIs.
func (a *App) Sessions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sessions)
}
