package api

import (
	"net/http"
	"time"

	"github.com/xraph/forge"

	"github.com/xraph/intake"
	"github.com/xraph/intake/endpoint"
	"github.com/xraph/intake/execution"
	"github.com/xraph/intake/id"
	"github.com/xraph/intake/schema"
)

// ForgeAPI wires the admin routes as Forge handlers with OpenAPI metadata.
//
// The public receiver route needs the raw request body for signature checks,
// so it is served by Handler rather than a Forge-bound route.
type ForgeAPI struct {
	engine      *intake.Engine
	models      *schema.Catalog
	endpointSvc *endpoint.Service
	executions  *execution.Service
	log         forge.Logger
}

// NewForgeAPI creates a ForgeAPI around an engine.
func NewForgeAPI(engine *intake.Engine, log forge.Logger) *ForgeAPI {
	return &ForgeAPI{
		engine:      engine,
		models:      engine.Models(),
		endpointSvc: engine.Endpoints(),
		executions:  engine.Executions(),
		log:         log,
	}
}

// RegisterRoutes registers all intake admin API routes into the given Forge
// router with full OpenAPI metadata.
func (a *ForgeAPI) RegisterRoutes(router forge.Router) {
	a.registerModelRoutes(router)
	a.registerEndpointRoutes(router)
	a.registerExecutionRoutes(router)
}

// ---------------------------------------------------------------------------
// Model routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerModelRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("models"))

	if err := g.POST("/models", a.registerModel,
		forge.WithSummary("Register model"),
		forge.WithDescription("Registers a target model that endpoints can map payloads onto."),
		forge.WithOperationID("registerModel"),
		forge.WithRequestSchema(RegisterModelForgeRequest{}),
		forge.WithCreatedResponse(schema.Model{}),
		forge.WithErrorResponses(),
	); err != nil {
		// Log the error and continue registering other routes instead of failing completely.
		// This ensures that if one route has an issue, the rest of the API remains available.
		// The error will be caught during testing or can be monitored via logs.
		a.log.Error("Failed to register registerModel route", forge.Error(err))
	}

	if err := g.GET("/models", a.listModels,
		forge.WithSummary("List models"),
		forge.WithDescription("Returns a paginated list of registered target models."),
		forge.WithOperationID("listModels"),
		forge.WithRequestSchema(ListModelsForgeRequest{}),
		forge.WithListResponse(schema.Model{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listModels route", forge.Error(err))
	}

	if err := g.GET("/models/:name", a.getModel,
		forge.WithSummary("Get model"),
		forge.WithDescription("Returns details of a specific target model."),
		forge.WithOperationID("getModel"),
		forge.WithResponseSchema(http.StatusOK, "Model details", schema.Model{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getModel route", forge.Error(err))
	}

	if err := g.DELETE("/models/:name", a.deleteModel,
		forge.WithSummary("Delete model"),
		forge.WithDescription("Removes a target model from the catalog."),
		forge.WithOperationID("deleteModel"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deleteModel route", forge.Error(err))
	}
}

func (a *ForgeAPI) registerModel(ctx forge.Context, req *RegisterModelForgeRequest) (*schema.Model, error) {
	if req.Name == "" {
		return nil, forge.BadRequest("name is required")
	}

	def := schema.Definition{
		Name:        req.Name,
		Description: req.Description,
		Fields:      req.Fields,
	}

	var opts []schema.RegisterOption
	if req.ScopeAppID != "" {
		opts = append(opts, schema.WithScopeAppID(req.ScopeAppID))
	}
	if req.Metadata != nil {
		opts = append(opts, schema.WithMetadata(req.Metadata))
	}

	m, err := a.models.Register(ctx.Context(), def, opts...)
	if err != nil {
		return nil, mapError(err)
	}

	err = ctx.JSON(http.StatusCreated, m)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listModels(ctx forge.Context, req *ListModelsForgeRequest) ([]*schema.Model, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := schema.ListOpts{
		Offset: req.Offset,
		Limit:  limit,
	}

	models, err := a.models.List(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return models, nil
}

func (a *ForgeAPI) getModel(ctx forge.Context, req *GetModelForgeRequest) (*schema.Model, error) {
	m, err := a.models.Get(ctx.Context(), req.Name)
	if err != nil {
		return nil, mapError(err)
	}

	return m, nil
}

func (a *ForgeAPI) deleteModel(ctx forge.Context, req *DeleteModelForgeRequest) (*schema.Model, error) {
	if err := a.models.Delete(ctx.Context(), req.Name); err != nil {
		return nil, mapError(err)
	}

	err := ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

// ---------------------------------------------------------------------------
// Endpoint routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerEndpointRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("endpoints"))

	if err := g.POST("/endpoints", a.createEndpoint,
		forge.WithSummary("Create endpoint"),
		forge.WithDescription("Creates an inbound webhook endpoint with its mapping configuration."),
		forge.WithOperationID("createEndpoint"),
		forge.WithRequestSchema(CreateEndpointForgeRequest{}),
		forge.WithCreatedResponse(endpoint.Endpoint{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register createEndpoint route", forge.Error(err))
	}

	if err := g.GET("/endpoints", a.listEndpoints,
		forge.WithSummary("List endpoints"),
		forge.WithDescription("Returns a paginated list of endpoints."),
		forge.WithOperationID("listEndpoints"),
		forge.WithRequestSchema(ListEndpointsForgeRequest{}),
		forge.WithListResponse(endpoint.Endpoint{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listEndpoints route", forge.Error(err))
	}

	if err := g.GET("/endpoints/:endpointId", a.getEndpoint,
		forge.WithSummary("Get endpoint"),
		forge.WithDescription("Returns details of a specific endpoint."),
		forge.WithOperationID("getEndpoint"),
		forge.WithResponseSchema(http.StatusOK, "Endpoint details", endpoint.Endpoint{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getEndpoint route", forge.Error(err))
	}

	if err := g.PUT("/endpoints/:endpointId", a.updateEndpoint,
		forge.WithSummary("Update endpoint"),
		forge.WithDescription("Updates mutable fields of an endpoint. Configuration is re-validated."),
		forge.WithOperationID("updateEndpoint"),
		forge.WithRequestSchema(UpdateEndpointForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Updated endpoint", endpoint.Endpoint{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register updateEndpoint route", forge.Error(err))
	}

	if err := g.DELETE("/endpoints/:endpointId", a.deleteEndpoint,
		forge.WithSummary("Delete endpoint"),
		forge.WithDescription("Permanently deletes an endpoint. Its slug becomes reusable immediately."),
		forge.WithOperationID("deleteEndpoint"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deleteEndpoint route", forge.Error(err))
	}

	if err := g.PATCH("/endpoints/:endpointId/activate", a.activateEndpoint,
		forge.WithSummary("Activate endpoint"),
		forge.WithDescription("Re-activates a deactivated endpoint."),
		forge.WithOperationID("activateEndpoint"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register activateEndpoint route", forge.Error(err))
	}

	if err := g.PATCH("/endpoints/:endpointId/deactivate", a.deactivateEndpoint,
		forge.WithSummary("Deactivate endpoint"),
		forge.WithDescription("Deactivates an endpoint. Inbound requests are rejected before auth."),
		forge.WithOperationID("deactivateEndpoint"),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register deactivateEndpoint route", forge.Error(err))
	}

	if err := g.POST("/endpoints/:endpointId/rotate-credential", a.rotateCredential,
		forge.WithSummary("Rotate credential"),
		forge.WithDescription("Issues a fresh credential for the endpoint. The plaintext is returned exactly once."),
		forge.WithOperationID("rotateEndpointCredential"),
		forge.WithResponseSchema(http.StatusOK, "New credential", CredentialForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register rotateCredential route", forge.Error(err))
	}

	if err := g.POST("/endpoints/:endpointId/test", a.testEndpoint,
		forge.WithSummary("Test endpoint"),
		forge.WithDescription("Runs a payload through the mapping and write pipeline, optionally as a dry run."),
		forge.WithOperationID("testEndpoint"),
		forge.WithRequestSchema(TestEndpointForgeRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Pipeline result", intake.Result{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register testEndpoint route", forge.Error(err))
	}
}

func (a *ForgeAPI) createEndpoint(ctx forge.Context, req *CreateEndpointForgeRequest) (*endpoint.Endpoint, error) {
	input := endpoint.Input{
		Slug:               req.Slug,
		Name:               req.Name,
		Description:        req.Description,
		AuthType:           endpoint.AuthType(req.AuthType),
		TargetModel:        req.TargetModel,
		TargetAction:       endpoint.Action(req.TargetAction),
		Mapping:            req.Mapping,
		Defaults:           req.Defaults,
		DedupeField:        req.DedupeField,
		Active:             req.Active,
		RateLimitPerMinute: req.RateLimitPerMinute,
		Metadata:           req.Metadata,
	}

	ep, err := a.endpointSvc.Create(ctx.Context(), input)
	if err != nil {
		return nil, mapError(err)
	}

	err = ctx.JSON(http.StatusCreated, ep)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.JSON.
	return nil, nil
}

func (a *ForgeAPI) listEndpoints(ctx forge.Context, req *ListEndpointsForgeRequest) ([]*endpoint.Endpoint, error) {
	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := endpoint.ListOpts{
		Offset: req.Offset,
		Limit:  limit,
	}

	switch req.Active {
	case "true":
		active := true
		opts.Active = &active
	case "false":
		active := false
		opts.Active = &active
	}

	eps, err := a.endpointSvc.List(ctx.Context(), opts)
	if err != nil {
		return nil, mapError(err)
	}

	return eps, nil
}

func (a *ForgeAPI) getEndpoint(ctx forge.Context, req *GetEndpointForgeRequest) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	ep, getErr := a.endpointSvc.Get(ctx.Context(), epID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return ep, nil
}

func (a *ForgeAPI) updateEndpoint(ctx forge.Context, req *UpdateEndpointForgeRequest) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	input := endpoint.Input{
		Slug:               req.Slug,
		Name:               req.Name,
		Description:        req.Description,
		AuthType:           endpoint.AuthType(req.AuthType),
		TargetModel:        req.TargetModel,
		TargetAction:       endpoint.Action(req.TargetAction),
		Mapping:            req.Mapping,
		Defaults:           req.Defaults,
		DedupeField:        req.DedupeField,
		Active:             req.Active,
		RateLimitPerMinute: req.RateLimitPerMinute,
		Metadata:           req.Metadata,
	}

	ep, updateErr := a.endpointSvc.Update(ctx.Context(), epID, input)
	if updateErr != nil {
		return nil, mapError(updateErr)
	}

	return ep, nil
}

func (a *ForgeAPI) deleteEndpoint(ctx forge.Context, req *DeleteEndpointForgeRequest) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	if deleteErr := a.endpointSvc.Delete(ctx.Context(), epID); deleteErr != nil {
		return nil, mapError(deleteErr)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) activateEndpoint(ctx forge.Context, req *EndpointActionForgeRequest) (*endpoint.Endpoint, error) {
	return a.setActive(ctx, req, true)
}

func (a *ForgeAPI) deactivateEndpoint(ctx forge.Context, req *EndpointActionForgeRequest) (*endpoint.Endpoint, error) {
	return a.setActive(ctx, req, false)
}

func (a *ForgeAPI) setActive(ctx forge.Context, req *EndpointActionForgeRequest, active bool) (*endpoint.Endpoint, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	if setErr := a.endpointSvc.SetActive(ctx.Context(), epID, active); setErr != nil {
		return nil, mapError(setErr)
	}

	err = ctx.NoContent(http.StatusNoContent)
	if err != nil {
		return nil, mapError(err)
	}

	//nolint:nilnil // response already written via ctx.NoContent.
	return nil, nil
}

func (a *ForgeAPI) rotateCredential(ctx forge.Context, req *EndpointActionForgeRequest) (*CredentialForgeResponse, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	credential, rotateErr := a.endpointSvc.RotateCredential(ctx.Context(), epID)
	if rotateErr != nil {
		return nil, mapError(rotateErr)
	}

	return &CredentialForgeResponse{Credential: credential}, nil
}

func (a *ForgeAPI) testEndpoint(ctx forge.Context, req *TestEndpointForgeRequest) (*intake.Result, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	res, testErr := a.engine.Test(ctx.Context(), epID, req.Payload, req.DryRun)
	if testErr != nil {
		return nil, mapError(testErr)
	}

	return res, nil
}

// ---------------------------------------------------------------------------
// Execution routes
// ---------------------------------------------------------------------------

func (a *ForgeAPI) registerExecutionRoutes(router forge.Router) {
	g := router.Group("", forge.WithGroupTags("executions"))

	if err := g.GET("/endpoints/:endpointId/executions", a.listExecutions,
		forge.WithSummary("List executions"),
		forge.WithDescription("Returns pipeline executions for an endpoint, newest first."),
		forge.WithOperationID("listExecutions"),
		forge.WithRequestSchema(ListExecutionsForgeRequest{}),
		forge.WithListResponse(execution.Execution{}, http.StatusOK),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register listExecutions route", forge.Error(err))
	}

	if err := g.GET("/executions/:executionId", a.getExecution,
		forge.WithSummary("Get execution"),
		forge.WithDescription("Returns one pipeline execution with its full mapping detail."),
		forge.WithOperationID("getExecution"),
		forge.WithResponseSchema(http.StatusOK, "Execution details", execution.Execution{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getExecution route", forge.Error(err))
	}

	if err := g.GET("/endpoints/:endpointId/stats", a.getStats,
		forge.WithSummary("Endpoint statistics"),
		forge.WithDescription("Returns execution counts per terminal status for an endpoint."),
		forge.WithOperationID("getEndpointStats"),
		forge.WithResponseSchema(http.StatusOK, "Execution statistics", StatsForgeResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		a.log.Error("Failed to register getStats route", forge.Error(err))
	}
}

func (a *ForgeAPI) listExecutions(ctx forge.Context, req *ListExecutionsForgeRequest) ([]*execution.Execution, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	limit := req.Limit
	if limit == 0 {
		limit = 50
	}

	opts := execution.ListOpts{
		Offset: req.Offset,
		Limit:  limit,
		Status: req.Status,
	}

	if req.From != "" {
		from, parseErr := time.Parse(time.RFC3339, req.From)
		if parseErr != nil {
			return nil, forge.BadRequest("invalid 'from' time format (use RFC3339)")
		}
		opts.From = &from
	}

	if req.To != "" {
		to, parseErr := time.Parse(time.RFC3339, req.To)
		if parseErr != nil {
			return nil, forge.BadRequest("invalid 'to' time format (use RFC3339)")
		}
		opts.To = &to
	}

	exes, listErr := a.executions.List(ctx.Context(), epID, opts)
	if listErr != nil {
		return nil, mapError(listErr)
	}

	return exes, nil
}

func (a *ForgeAPI) getExecution(ctx forge.Context, req *GetExecutionForgeRequest) (*execution.Execution, error) {
	exeID, err := id.ParseExecutionID(req.ExecutionID)
	if err != nil {
		return nil, forge.BadRequest("invalid execution ID")
	}

	exe, getErr := a.executions.Get(ctx.Context(), exeID)
	if getErr != nil {
		return nil, mapError(getErr)
	}

	return exe, nil
}

func (a *ForgeAPI) getStats(ctx forge.Context, req *StatsForgeRequest) (*StatsForgeResponse, error) {
	epID, err := id.ParseEndpointID(req.EndpointID)
	if err != nil {
		return nil, forge.BadRequest("invalid endpoint ID")
	}

	total, countErr := a.executions.Count(ctx.Context(), epID, "")
	if countErr != nil {
		return nil, mapError(countErr)
	}

	byStatus := make(map[string]int64, len(terminalStatuses))
	for _, status := range terminalStatuses {
		n, statusErr := a.executions.Count(ctx.Context(), epID, string(status))
		if statusErr != nil {
			return nil, mapError(statusErr)
		}
		if n > 0 {
			byStatus[string(status)] = n
		}
	}

	return &StatsForgeResponse{
		Total:    total,
		ByStatus: byStatus,
	}, nil
}
