package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mash-protocol/base-station/pkg/activity"
	"github.com/mash-protocol/base-station/pkg/dispatch"
	"github.com/mash-protocol/base-station/pkg/issue"
	"github.com/mash-protocol/base-station/pkg/policy"
	"github.com/mash-protocol/base-station/pkg/queue"
	"github.com/mash-protocol/base-station/pkg/registry"
	"github.com/mash-protocol/base-station/pkg/wire"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeSender struct{ sent int }

func (f *fakeSender) SendMovementCommand(ctx context.Context, addr string, port int, taskID, issueKind string, coord wire.Position) error {
	f.sent++
	return nil
}

func newTestServer() (*Server, *registry.Registry, *issue.Store) {
	reg := registry.NewRegistry()
	issues := issue.NewStore()
	q := queue.New()
	active := dispatch.NewActiveTable()
	pol := policy.NewEngine(policy.NewTable(), nil)
	commandLog := activity.NewCommandLog()
	networkLog := activity.NewNetworkLog()
	disp := dispatch.New(reg, q, pol, active, &fakeSender{}, commandLog, zerolog.Nop())

	s := NewServer(reg, issues, q, active, disp, commandLog, networkLog, zerolog.Nop())
	return s, reg, issues
}

func TestServer_HandleRoster(t *testing.T) {
	s, reg, _ := newTestServer()
	reg.Upsert("R1", wire.DeviceKindRobot, "a1", "a1", 9000, wire.Position{X: 1, Y: 2}, 0.8)

	req := httptest.NewRequest(http.MethodGet, "/roster", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"id":"R1"`)
}

func TestServer_HandleOverview_SplitsByKind(t *testing.T) {
	s, reg, _ := newTestServer()
	reg.Upsert("D1", wire.DeviceKindDrone, "d1", "d1", 9000, wire.Position{}, 1)
	reg.Upsert("R1", wire.DeviceKindRobot, "r1", "r1", 9000, wire.Position{}, 1)
	reg.Assign("R1", "task-1")

	req := httptest.NewRequest(http.MethodGet, "/overview", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"busy_agents":1`)
}

func TestServer_HandleTestIssue_UnknownKindIs404(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/test/issue/unknown_kind", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_HandleTestIssue_KnownKindAdmitsAndQueues(t *testing.T) {
	s, _, issues := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/test/issue/rust", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, issues.List(), 1, "a synthesized issue with no available agents must still be admitted and enqueued")
}

func TestServer_HandleTestIssue_DuplicateIsConflict(t *testing.T) {
	s, _, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/test/issue/rust", nil)
	s.Handler().ServeHTTP(httptest.NewRecorder(), req)

	req2 := httptest.NewRequest(http.MethodPost, "/test/issue/rust", nil)
	w2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(w2, req2)

	require.Equal(t, http.StatusConflict, w2.Code)
}

func TestServer_HandleFrames_ClearFrames(t *testing.T) {
	s, _, _ := newTestServer()
	s.networkLog.Record(activity.FrameRecord{Transport: "udp", Direction: "in"})

	req := httptest.NewRequest(http.MethodGet, "/frames", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"udp"`)

	del := httptest.NewRequest(http.MethodDelete, "/frames", nil)
	wDel := httptest.NewRecorder()
	s.Handler().ServeHTTP(wDel, del)
	require.Equal(t, http.StatusNoContent, wDel.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/frames", nil)
	w2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(w2, req2)
	require.Equal(t, "[]\n", w2.Body.String())
}

func TestServer_HandleCommands(t *testing.T) {
	s, _, _ := newTestServer()
	s.commandLog.Record(activity.CommandRecord{TaskID: 1, AgentID: "R1", Success: true})

	req := httptest.NewRequest(http.MethodGet, "/commands", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"AgentID":"R1"`)
}
