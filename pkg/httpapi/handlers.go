package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mash-protocol/base-station/pkg/issue"
	"github.com/mash-protocol/base-station/pkg/wire"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// deviceView is the roster's JSON shape for one device.
type deviceView struct {
	ID       string        `json:"id"`
	Kind     wire.DeviceKind `json:"kind"`
	Position wire.Position `json:"position"`
	Battery  float64       `json:"battery"`
	Assigned bool          `json:"assigned"`
	TaskID   string        `json:"task_id,omitempty"`
}

// handleRoster serves every registered device and its live state (§4.8).
func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	devices := s.registry.Snapshot()
	out := make([]deviceView, len(devices))
	for i, d := range devices {
		out[i] = deviceView{
			ID:       d.ID,
			Kind:     d.Kind,
			Position: d.Position,
			Battery:  d.Battery,
			Assigned: !d.Available(),
			TaskID:   d.TaskID,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// overviewResponse splits the roster by kind for a dashboard summary view.
type overviewResponse struct {
	Drones         []deviceView `json:"drones"`
	Agents         []deviceView `json:"agents"`
	AvailableAgents int         `json:"available_agents"`
	BusyAgents      int         `json:"busy_agents"`
}

// handleOverview serves devices split by kind, assignment, and battery (§4.8).
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	devices := s.registry.Snapshot()

	resp := overviewResponse{Drones: []deviceView{}, Agents: []deviceView{}}
	for _, d := range devices {
		view := deviceView{
			ID:       d.ID,
			Kind:     d.Kind,
			Position: d.Position,
			Battery:  d.Battery,
			Assigned: !d.Available(),
			TaskID:   d.TaskID,
		}
		switch d.Kind {
		case wire.DeviceKindDrone:
			resp.Drones = append(resp.Drones, view)
		case wire.DeviceKindRobot:
			resp.Agents = append(resp.Agents, view)
			if d.Available() {
				resp.AvailableAgents++
			} else {
				resp.BusyAgents++
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// issueView is the open-issues endpoint's JSON shape for one issue.
type issueView struct {
	Fingerprint   string        `json:"fingerprint"`
	Kind          issue.Kind    `json:"kind"`
	Coordinate    wire.Position `json:"coordinate"`
	RequiredCount int           `json:"required_count"`
	ReporterID    string        `json:"reporter_id"`
	Queued        bool          `json:"queued"`
}

// handleIssues serves every admitted issue still open, noting whether it's
// sitting in the pending queue (§4.8).
func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	queued := make(map[string]bool)
	for _, e := range s.queue.Snapshot() {
		queued[e.Issue.Fingerprint] = true
	}

	issues := s.issues.List()
	out := make([]issueView, len(issues))
	for i, iss := range issues {
		out[i] = issueView{
			Fingerprint:   iss.Fingerprint,
			Kind:          iss.Kind,
			Coordinate:    iss.Coordinate,
			RequiredCount: iss.RequiredCount,
			ReporterID:    iss.ReporterID,
			Queued:        queued[iss.Fingerprint],
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleFrames serves the bounded recent-frame ring buffer (§3, §4.8).
func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.networkLog.Snapshot())
}

// handleClearFrames empties the recent-frame ring buffer (§4.8, §12).
func (s *Server) handleClearFrames(w http.ResponseWriter, r *http.Request) {
	s.networkLog.Clear()
	w.WriteHeader(http.StatusNoContent)
}

// handleCommands serves the bounded recent-command ring buffer (§3, §4.8).
func (s *Server) handleCommands(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.commandLog.Snapshot())
}

// handleTestIssue synthesizes an issue of the path kind at its preconfigured
// test coordinate and runs it through the normal dispatch path (§6, §12).
func (s *Server) handleTestIssue(w http.ResponseWriter, r *http.Request) {
	kind := issue.Kind(chi.URLParam(r, "kind"))
	coord, known := testCoordinates[kind]
	if !known {
		http.Error(w, "unknown test issue kind", http.StatusNotFound)
		return
	}

	iss, admitted := s.issues.Admit(kind, wire.Position{X: coord.X, Y: coord.Y, Z: coord.Z}, testIssueReporterID)
	if !admitted {
		writeJSON(w, http.StatusConflict, map[string]string{"status": "duplicate", "fingerprint": issueFingerprintOrEmpty(iss)})
		return
	}

	s.dispatcher.OnIssue(context.Background(), iss)
	writeJSON(w, http.StatusCreated, issueView{
		Fingerprint:   iss.Fingerprint,
		Kind:          iss.Kind,
		Coordinate:    iss.Coordinate,
		RequiredCount: iss.RequiredCount,
		ReporterID:    iss.ReporterID,
	})
}

func issueFingerprintOrEmpty(iss *issue.Issue) string {
	if iss == nil {
		return ""
	}
	return iss.Fingerprint
}
