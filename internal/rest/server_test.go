package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/pbinitiative/zenexec/internal/config"
	"github.com/pbinitiative/zenexec/internal/rest/public"
	"github.com/pbinitiative/zenexec/pkg/bpmn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const approvalProcess = `
id: approval
flowNodes:
  - id: start
    kind: EVENT
    eventType: START
  - id: approve
    kind: HUMAN_TASK
  - id: end
    kind: EVENT
    eventType: END
transitions:
  - id: t1
    sourceRef: start
    targetRef: approve
  - id: t2
    sourceRef: approve
    targetRef: end
`

type testServer struct {
	t      *testing.T
	engine *bpmn.Engine
	http   *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	engine, err := bpmn.NewEngine(bpmn.EngineWithLogger(hclog.NewNullLogger()))
	require.NoError(t, err)
	server, err := NewServer(engine, config.Config{})
	require.NoError(t, err)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &testServer{t: t, engine: engine, http: srv}
}

func (s *testServer) do(method string, path string, body string, out any) int {
	s.t.Helper()
	return s.send(method, path, "application/json", body, out)
}

func (s *testServer) deploy(definition string, out any) int {
	s.t.Helper()
	return s.send(http.MethodPost, "/v1/process-definitions", "application/yaml", definition, out)
}

func (s *testServer) send(method string, path string, contentType string, body string, out any) int {
	s.t.Helper()
	req, err := http.NewRequestWithContext(s.t.Context(), method, s.http.URL+path, strings.NewReader(body))
	require.NoError(s.t, err)
	if body != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.http.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func flowNode(t *testing.T, pi public.ProcessInstance, elementId string) public.FlowNodeInstance {
	t.Helper()
	require.NotNil(t, pi.FlowNodes)
	for _, n := range *pi.FlowNodes {
		if n.ElementId == elementId {
			return n
		}
	}
	require.Failf(t, "flow node not found", "no flow node %s in process instance %d", elementId, pi.Key)
	return public.FlowNodeInstance{}
}

func (s *testServer) drain() {
	s.t.Helper()
	_, err := s.engine.Drain(s.t.Context())
	require.NoError(s.t, err)
}

func TestDeployStartAndCompleteThroughApi(t *testing.T) {
	s := newTestServer(t)

	var def public.ProcessDefinition
	assert.Equal(t, http.StatusCreated, s.deploy(approvalProcess, &def))
	assert.Equal(t, "approval", def.Id)
	assert.Equal(t, int32(1), def.Version)

	var started public.ProcessInstance
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/process-definitions/approval/instances", `{"variables":{"amount":5}}`, &started))
	assert.Equal(t, "ACTIVE", started.State)
	s.drain()

	var pi public.ProcessInstance
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, fmt.Sprintf("/v1/process-instances/%d", started.Key), "", &pi))
	approve := flowNode(t, pi, "approve")
	assert.Equal(t, "EXECUTING", approve.State)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodPost, fmt.Sprintf("/v1/human-tasks/%d/claim", approve.Key), `{"userKey":3}`, nil))
	assert.Equal(t, http.StatusConflict, s.do(http.MethodPost, fmt.Sprintf("/v1/human-tasks/%d/claim", approve.Key), `{"userKey":4}`, nil))

	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, fmt.Sprintf("/v1/flow-node-instances/%d/complete", approve.Key), `{"userKey":3,"variables":{"approved":true}}`, nil))
	s.drain()

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, fmt.Sprintf("/v1/process-instances/%d", started.Key), "", &pi))
	assert.Equal(t, "COMPLETED", pi.State)
	require.NotNil(t, pi.Variables)
	assert.Equal(t, true, (*pi.Variables)["approved"])
	assert.NotNil(t, pi.EndDate)
}

func TestAbortThroughApi(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.deploy(approvalProcess, nil))
	var started public.ProcessInstance
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/process-definitions/approval/instances", "", &started))
	s.drain()

	var exit public.ExitResult
	assert.Equal(t, http.StatusAccepted, s.do(http.MethodPost, fmt.Sprintf("/v1/process-instances/%d/abort", started.Key), "", &exit))
	assert.Equal(t, 1, exit.Propagated)
	s.drain()

	var pi public.ProcessInstance
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, fmt.Sprintf("/v1/process-instances/%d", started.Key), "", &pi))
	assert.Equal(t, "ABORTED", pi.State)

	assert.Equal(t, http.StatusUnprocessableEntity, s.do(http.MethodPost, fmt.Sprintf("/v1/process-instances/%d/abort", started.Key), "", nil))
}

func TestApiErrors(t *testing.T) {
	s := newTestServer(t)

	var apiErr ApiError
	assert.Equal(t, http.StatusBadRequest, s.deploy("flowNodes: []", &apiErr))
	assert.Equal(t, "INVALID_DEFINITION", apiErr.Type)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/process-instances/42", "", &apiErr))
	assert.Equal(t, "NOT_FOUND", apiErr.Type)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/process-instances/abc", "", nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/incidents/1/resolve", `{"resolution":"IGNORE"}`, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodPost, "/v1/process-definitions/unknown/instances", "", nil))
}

func TestClaimWithoutUserIsRejected(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.deploy(approvalProcess, nil))
	var started public.ProcessInstance
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/process-definitions/approval/instances", "", &started))
	s.drain()
	var pi public.ProcessInstance
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, fmt.Sprintf("/v1/process-instances/%d", started.Key), "", &pi))
	approve := flowNode(t, pi, "approve")

	for _, body := range []string{`{}`, `{"userKey":0}`, `{"userKey":"three"}`} {
		var apiErr ApiError
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, fmt.Sprintf("/v1/human-tasks/%d/claim", approve.Key), body, &apiErr), body)
		assert.Equal(t, "BAD_REQUEST", apiErr.Type)
	}

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, fmt.Sprintf("/v1/process-instances/%d", started.Key), "", &pi))
	approve = flowNode(t, pi, "approve")
	assert.Nil(t, approve.AssigneeKey)
}

func TestRequestsAreValidatedAgainstTheApiDocument(t *testing.T) {
	s := newTestServer(t)

	var apiErr ApiError
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/incidents/1/resolve", `{}`, &apiErr))
	assert.Equal(t, "BAD_REQUEST", apiErr.Type)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/v1/process-instances/1/variables", "", nil))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/process-instances/1/incidents?state=closed", "", nil))
	assert.Equal(t, http.StatusBadRequest, s.send(http.MethodPost, "/v1/process-definitions", "text/csv", approvalProcess, nil))
}

func TestSystemEndpoints(t *testing.T) {
	s := newTestServer(t)

	var status public.Status
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/system/status", "", &status))
	assert.Equal(t, "zenexec", status.Name)

	resp, err := s.http.Client().Get(s.http.URL + "/system/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "go_goroutines")
}
