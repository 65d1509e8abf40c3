package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"moving-head/internal/color"
	"moving-head/internal/dispatch"
	"moving-head/internal/servo"
)

// ResetMessage is the body returned by the operator reset
const ResetMessage = "Packet index counter reset."

// StatusResponse is served by GET /api/v1/status
type StatusResponse struct {
	LastSequence uint32       `json:"last_sequence"`
	Color        color.Triple `json:"color"`
	Hex          string       `json:"hex"`
	Pan          *int         `json:"pan"`
	Tilt         *int         `json:"tilt"`
	Clients      int          `json:"clients"`
}

// DispatchesResponse is served by GET /api/v1/dispatches
type DispatchesResponse struct {
	Dispatches []dispatch.Entry `json:"dispatches"`
}

func (s *Server) handleResetIndexCounter(w http.ResponseWriter, r *http.Request) {
	s.d.ResetSequence()
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ResetMessage))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	last := s.mixer.Last()
	resp := StatusResponse{
		LastSequence: s.d.LastSequence(),
		Color:        last,
		Hex:          last.Hex(),
		Pan:          lastAngle(s.port, servo.Pan),
		Tilt:         lastAngle(s.port, servo.Tilt),
		Clients:      s.ClientCount(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDispatches(w http.ResponseWriter, r *http.Request) {
	resp := DispatchesResponse{Dispatches: []dispatch.Entry{}}
	if j := s.d.Journal(); j != nil {
		resp.Dispatches = j.Recent()
	}
	writeJSON(w, http.StatusOK, resp)
}

func lastAngle(p *servo.Port, axis servo.Axis) *int {
	angle, ok := p.Last(axis)
	if !ok {
		return nil
	}
	return &angle
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}
