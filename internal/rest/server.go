package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime/strictmiddleware/nethttp"
	"github.com/pbinitiative/zenexec/internal/config"
	"github.com/pbinitiative/zenexec/internal/log"
	"github.com/pbinitiative/zenexec/internal/rest/middleware"
	"github.com/pbinitiative/zenexec/internal/rest/public"
	"github.com/pbinitiative/zenexec/pkg/bpmn"
	"github.com/pbinitiative/zenexec/pkg/bpmn/definition"
	"github.com/pbinitiative/zenexec/pkg/bpmn/runtime"
	"github.com/pbinitiative/zenexec/pkg/ptr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	basePath = "/v1"
	// maxDefinitionSize bounds the YAML body of a deployment
	maxDefinitionSize = 4 << 20
)

// Server exposes the operator API of one engine node over HTTP.
type Server struct {
	engine *bpmn.Engine
	addr   string
	server *http.Server
}

var _ public.StrictServerInterface = (*Server)(nil)

func NewServer(engine *bpmn.Engine, conf config.Config) (*Server, error) {
	swagger, err := public.GetSwagger()
	if err != nil {
		return nil, err
	}
	validator, err := middleware.RequestValidator(swagger, basePath, badRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to create request validator: %w", err)
	}
	r := chi.NewRouter()
	s := Server{
		engine: engine,
		addr:   conf.HttpServer.Addr,
		server: &http.Server{
			ReadHeaderTimeout: 3 * time.Second,
			Handler:           r,
			Addr:              conf.HttpServer.Addr,
		},
	}
	r.Use(middleware.Cors(conf.HttpServer.AllowedOrigins))
	r.Use(middleware.Opentelemetry(conf))
	r.Route(basePath, func(r chi.Router) {
		r.Use(validator)
		// mount generated handler from open-api
		h := public.HandlerWithOptions(public.NewStrictHandlerWithOptions(&s, []nethttp.StrictHTTPMiddlewareFunc{}, public.StrictHTTPServerOptions{
			RequestErrorHandlerFunc:  badRequest,
			ResponseErrorHandlerFunc: writeEngineError,
		}), public.ChiServerOptions{
			ErrorHandlerFunc: badRequest,
		})
		r.Mount("/", h)
	})
	// register system endpoints
	r.Route("/system", func(r chi.Router) {
		r.Get("/metrics", promhttp.Handler().ServeHTTP)
		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJson(w, http.StatusOK, public.Status{
				Name:        s.engine.Name(),
				QueueLength: s.engine.Queue().Len(),
			})
		})
	})
	return &s, nil
}

// Handler returns the router, tests serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() (net.Listener, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return nil, err
	}
	log.Info("zenexec operator API listening on %s", listener.Addr())
	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Error serving operator API: %s", err)
		}
	}()
	return listener, nil
}

func (s *Server) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		log.Error("Error stopping server: %s", err)
	}
}

func (s *Server) DeployProcessDefinition(ctx context.Context, request public.DeployProcessDefinitionRequestObject) (public.DeployProcessDefinitionResponseObject, error) {
	data, err := io.ReadAll(io.LimitReader(request.Body, maxDefinitionSize))
	if err != nil {
		return public.DeployProcessDefinitiondefaultJSONResponse{
			Body:       public.Error{Message: err.Error(), Type: "BAD_REQUEST"},
			StatusCode: http.StatusBadRequest,
		}, nil
	}
	def, err := definition.ParseYAML(data)
	if err != nil {
		return nil, err
	}
	deployed, err := s.engine.DeployDefinition(ctx, def)
	if err != nil {
		return nil, err
	}
	return public.DeployProcessDefinition201JSONResponse{
		Key:     deployed.Key,
		Id:      deployed.Id,
		Version: deployed.Version,
	}, nil
}

func (s *Server) StartProcess(ctx context.Context, request public.StartProcessRequestObject) (public.StartProcessResponseObject, error) {
	var variables map[string]any
	if request.Body != nil {
		variables = ptr.Deref(request.Body.Variables, nil)
	}
	pi, err := s.engine.StartProcessById(ctx, request.ProcessId, variables)
	if err != nil {
		return nil, err
	}
	return public.StartProcess201JSONResponse(newProcessInstance(*pi, nil)), nil
}

func (s *Server) GetProcessInstance(ctx context.Context, request public.GetProcessInstanceRequestObject) (public.GetProcessInstanceResponseObject, error) {
	pi, err := s.engine.FindProcessInstance(ctx, request.Key)
	if err != nil {
		return nil, err
	}
	nodes, err := s.engine.FindFlowNodeInstances(ctx, request.Key)
	if err != nil {
		return nil, err
	}
	return public.GetProcessInstance200JSONResponse(newProcessInstance(pi, nodes)), nil
}

func (s *Server) AbortProcessInstance(ctx context.Context, request public.AbortProcessInstanceRequestObject) (public.AbortProcessInstanceResponseObject, error) {
	propagated, err := s.engine.AbortProcess(ctx, request.Key)
	if err != nil {
		return nil, err
	}
	return public.AbortProcessInstance202JSONResponse{Propagated: propagated}, nil
}

func (s *Server) CancelProcessInstance(ctx context.Context, request public.CancelProcessInstanceRequestObject) (public.CancelProcessInstanceResponseObject, error) {
	propagated, err := s.engine.CancelProcess(ctx, request.Key)
	if err != nil {
		return nil, err
	}
	return public.CancelProcessInstance202JSONResponse{Propagated: propagated}, nil
}

func (s *Server) SetProcessVariables(ctx context.Context, request public.SetProcessVariablesRequestObject) (public.SetProcessVariablesResponseObject, error) {
	if err := s.engine.SetVariables(ctx, request.Key, ptr.Deref(request.Body.Variables, nil)); err != nil {
		return nil, err
	}
	return public.SetProcessVariables204Response{}, nil
}

func (s *Server) GetIncidents(ctx context.Context, request public.GetIncidentsRequestObject) (public.GetIncidentsResponseObject, error) {
	incidents, err := s.engine.FindIncidents(ctx, request.Key)
	if err != nil {
		return nil, err
	}
	onlyOpen := ptr.Deref(request.Params.State, public.All) == public.Open
	res := make([]public.Incident, 0, len(incidents))
	for _, incident := range incidents {
		if onlyOpen && incident.IsResolved() {
			continue
		}
		res = append(res, newIncident(incident))
	}
	return public.GetIncidents200JSONResponse(res), nil
}

// CompleteFlowNode completes a waiting flow node. With a userKey the node is completed as a human task.
func (s *Server) CompleteFlowNode(ctx context.Context, request public.CompleteFlowNodeRequestObject) (public.CompleteFlowNodeResponseObject, error) {
	var body public.CompleteRequest
	if request.Body != nil {
		body = *request.Body
	}
	variables := ptr.Deref(body.Variables, nil)
	var err error
	if body.UserKey != nil {
		err = s.engine.CompleteHumanTask(ctx, request.Key, *body.UserKey, variables)
	} else {
		err = s.engine.CompleteFlowNode(ctx, request.Key, variables)
	}
	if err != nil {
		return nil, err
	}
	return public.CompleteFlowNode202Response{}, nil
}

func (s *Server) InterruptByBoundary(ctx context.Context, request public.InterruptByBoundaryRequestObject) (public.InterruptByBoundaryResponseObject, error) {
	if err := s.engine.InterruptByBoundary(ctx, request.Key, request.BoundaryId); err != nil {
		return nil, err
	}
	return public.InterruptByBoundary202Response{}, nil
}

func (s *Server) ClaimHumanTask(ctx context.Context, request public.ClaimHumanTaskRequestObject) (public.ClaimHumanTaskResponseObject, error) {
	if err := s.engine.ClaimHumanTask(ctx, request.Key, request.Body.UserKey); err != nil {
		return nil, err
	}
	return public.ClaimHumanTask204Response{}, nil
}

func (s *Server) AssignHumanTask(ctx context.Context, request public.AssignHumanTaskRequestObject) (public.AssignHumanTaskResponseObject, error) {
	if err := s.engine.AssignHumanTask(ctx, request.Key, request.Body.UserKey); err != nil {
		return nil, err
	}
	return public.AssignHumanTask204Response{}, nil
}

func (s *Server) ReleaseHumanTask(ctx context.Context, request public.ReleaseHumanTaskRequestObject) (public.ReleaseHumanTaskResponseObject, error) {
	if err := s.engine.ReleaseHumanTask(ctx, request.Key); err != nil {
		return nil, err
	}
	return public.ReleaseHumanTask204Response{}, nil
}

func (s *Server) HideHumanTask(ctx context.Context, request public.HideHumanTaskRequestObject) (public.HideHumanTaskResponseObject, error) {
	if err := s.engine.HideTask(ctx, request.Key, request.Body.UserKey); err != nil {
		return nil, err
	}
	return public.HideHumanTask204Response{}, nil
}

func (s *Server) UnhideHumanTask(ctx context.Context, request public.UnhideHumanTaskRequestObject) (public.UnhideHumanTaskResponseObject, error) {
	if err := s.engine.UnhideTask(ctx, request.Key, request.Body.UserKey); err != nil {
		return nil, err
	}
	return public.UnhideHumanTask204Response{}, nil
}

func (s *Server) ResolveIncident(ctx context.Context, request public.ResolveIncidentRequestObject) (public.ResolveIncidentResponseObject, error) {
	if err := s.engine.ResolveIncident(ctx, request.Key, runtime.IncidentResolution(request.Body.Resolution)); err != nil {
		return nil, err
	}
	return public.ResolveIncident204Response{}, nil
}

func newProcessInstance(pi runtime.ProcessInstance, nodes []runtime.FlowNodeInstance) public.ProcessInstance {
	res := public.ProcessInstance{
		Key:                  pi.Key,
		ProcessDefinitionKey: pi.ProcessDefinitionKey,
		State:                string(pi.State),
		StateCategory:        string(pi.StateCategory),
		StartDate:            pi.StartDate,
		EndDate:              ptr.NonZero(pi.EndDate),
	}
	if len(pi.Variables) > 0 {
		res.Variables = &pi.Variables
	}
	if len(nodes) == 0 {
		return res
	}
	flowNodes := make([]public.FlowNodeInstance, 0, len(nodes))
	for _, n := range nodes {
		node := public.FlowNodeInstance{
			Key:                n.Key,
			ElementId:          n.FlowNodeDefinitionId,
			Kind:               string(n.Kind),
			State:              n.State.String(),
			StateCategory:      string(n.StateCategory),
			ParentContainerKey: n.ParentContainerKey,
			ReachedStateDate:   n.ReachedStateDate,
		}
		if n.LoopCounter != 0 {
			node.LoopCounter = ptr.To(n.LoopCounter)
		}
		if n.HumanTask != nil && n.HumanTask.AssigneeKey != 0 {
			node.AssigneeKey = ptr.To(n.HumanTask.AssigneeKey)
		}
		flowNodes = append(flowNodes, node)
	}
	res.FlowNodes = &flowNodes
	return res
}

func newIncident(incident runtime.Incident) public.Incident {
	res := public.Incident{
		Key:        incident.Key,
		Kind:       string(incident.Kind),
		Message:    incident.Message,
		CreatedAt:  incident.CreatedAt,
		ResolvedAt: ptr.NonZero(incident.ResolvedAt),
	}
	if incident.FlowNodeInstanceKey != 0 {
		res.FlowNodeInstanceKey = ptr.To(incident.FlowNodeInstanceKey)
	}
	return res
}

func writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Server error: %s", err)
	}
}
