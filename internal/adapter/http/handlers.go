package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Strob0t/ActionForge/internal/adapter/litellm"
	"github.com/Strob0t/ActionForge/internal/domain/action"
	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/domain/policy"
	"github.com/Strob0t/ActionForge/internal/domain/proposal"
	"github.com/Strob0t/ActionForge/internal/port/database"
	"github.com/Strob0t/ActionForge/internal/service"
)

const (
	maxRequestBodySize = 1 << 20 // 1 MB
	maxBatchSize       = 50
	defaultListLimit   = 50
	maxListLimit       = 500
)

// ModelLister lists the models served by the generation backend.
type ModelLister interface {
	ListModels(ctx context.Context) ([]litellm.Model, error)
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Proposals *service.ProposalService
	Policies  *service.PolicyService
	Ingestor  *service.Ingestor
	Batch     *service.BatchRunner
	Directory database.EntityStore // nil disables the directory endpoints
	Models    ModelLister          // nil disables GET /models
}

// orchestrateResponse is the flattened view of a proposal returned to callers.
type orchestrateResponse struct {
	ProposalID  string            `json:"proposal_id,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	Duplicate   bool              `json:"duplicate"`
	Actions     []action.Action   `json:"actions"`
	Evaluation  policy.Evaluation `json:"evaluation"`
	State       service.State     `json:"state"`
	Dropped     int               `json:"dropped"`
	Model       string            `json:"model,omitempty"`
}

func newOrchestrateResponse(res *service.ProposeResult) orchestrateResponse {
	return orchestrateResponse{
		ProposalID:  res.ProposalID,
		Fingerprint: res.Fingerprint,
		Duplicate:   res.Duplicate,
		Actions:     res.Output.Actions,
		Evaluation:  res.Evaluation,
		State:       res.State,
		Dropped:     res.Dropped,
		Model:       res.Model,
	}
}

// Orchestrate handles POST /api/v1/orchestrate
// Degraded orchestrations still answer 200 with the fallback action and
// state "errored"; only an unknown policy name is a client error.
func (h *Handlers) Orchestrate(w http.ResponseWriter, r *http.Request) {
	req, ok := readStrictJSON[service.ProposeRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	res, err := h.Proposals.Propose(r.Context(), &req)
	if err != nil {
		writeDomainError(w, err, "orchestration failed")
		return
	}
	writeJSON(w, http.StatusOK, newOrchestrateResponse(res))
}

type batchRequest struct {
	Requests []service.ProposeRequest `json:"requests"`
}

type batchResponse struct {
	Results []orchestrateResponse `json:"results"`
}

// OrchestrateBatch handles POST /api/v1/orchestrate/batch
// Results are returned in request order and are not recorded.
func (h *Handlers) OrchestrateBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := readStrictJSON[batchRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	if len(req.Requests) == 0 {
		writeError(w, http.StatusBadRequest, "requests is required")
		return
	}
	if len(req.Requests) > maxBatchSize {
		writeError(w, http.StatusBadRequest, "too many requests in batch")
		return
	}

	reqs := make([]service.Request, len(req.Requests))
	for i := range req.Requests {
		pr := &req.Requests[i]
		pol, err := h.Policies.Resolve(pr.PolicyName, pr.Policy)
		if err != nil {
			writeDomainError(w, err, "invalid policy")
			return
		}
		reqs[i] = service.Request{Interaction: pr.Interaction, Related: pr.Related, Policy: pol}
	}

	results := h.Batch.Run(r.Context(), reqs)
	out := batchResponse{Results: make([]orchestrateResponse, len(results))}
	for i := range results {
		out.Results[i] = newOrchestrateResponse(&service.ProposeResult{Result: results[i]})
	}
	writeJSON(w, http.StatusOK, out)
}

type ingestRequest struct {
	Text       string                  `json:"text"`
	Companies  []interaction.EntityRef `json:"companies,omitempty"`
	Contacts   []interaction.EntityRef `json:"contacts,omitempty"`
	Deals      []interaction.EntityRef `json:"deals,omitempty"`
	Policy     *policy.Policy          `json:"policy,omitempty"`
	PolicyName string                  `json:"policy_name,omitempty"`
}

// Ingest handles POST /api/v1/ingest
// Without inline entity lists the directory is loaded from storage.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[ingestRequest](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	pol, err := h.Policies.Resolve(req.PolicyName, req.Policy)
	if err != nil {
		writeDomainError(w, err, "invalid policy")
		return
	}

	dir := &interaction.Directory{Companies: req.Companies, Contacts: req.Contacts, Deals: req.Deals}
	var res service.Result
	if dir.Empty() {
		res, err = h.Ingestor.IngestFromStore(r.Context(), req.Text, pol)
		if err != nil {
			writeInternalError(w, err)
			return
		}
	} else {
		res = h.Ingestor.Ingest(r.Context(), req.Text, dir, pol)
	}
	writeJSON(w, http.StatusOK, newOrchestrateResponse(&service.ProposeResult{Result: res}))
}

// ValidateActions handles POST /api/v1/actions/validate
// Any JSON is accepted; what cannot be read as actions is dropped.
func (h *Handlers) ValidateActions(w http.ResponseWriter, r *http.Request) {
	raw, ok := readJSON[json.RawMessage](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, action.Validate(raw))
}

type policiesResponse struct {
	Default  string          `json:"default"`
	Profiles []policy.Policy `json:"profiles"`
}

// ListPolicyProfiles handles GET /api/v1/policies
func (h *Handlers) ListPolicyProfiles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, policiesResponse{
		Default:  h.Policies.DefaultProfile(),
		Profiles: h.Policies.Profiles(),
	})
}

// GetPolicyProfile handles GET /api/v1/policies/{name}
func (h *Handlers) GetPolicyProfile(w http.ResponseWriter, r *http.Request) {
	p, ok := h.Policies.GetProfile(urlParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "policy profile not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListProposals handles GET /api/v1/proposals?limit=N
func (h *Handlers) ListProposals(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", defaultListLimit, maxListLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	handleList(func(ctx context.Context) ([]proposal.Proposal, error) {
		return h.Proposals.List(ctx, limit)
	})(w, r)
}

// GetProposal handles GET /api/v1/proposals/{id}
func (h *Handlers) GetProposal(w http.ResponseWriter, r *http.Request) {
	handleGet(h.Proposals.Get, "proposal not found")(w, r)
}

// GetDirectory handles GET /api/v1/directory
func (h *Handlers) GetDirectory(w http.ResponseWriter, r *http.Request) {
	if h.Directory == nil {
		writeError(w, http.StatusNotFound, "directory not configured")
		return
	}
	dir, err := h.Directory.LoadDirectory(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dir)
}

// directoryKind validates the {kind} URL parameter.
func (h *Handlers) directoryKind(w http.ResponseWriter, r *http.Request) (database.EntityKind, bool) {
	if h.Directory == nil {
		writeError(w, http.StatusNotFound, "directory not configured")
		return "", false
	}
	kind := database.EntityKind(urlParam(r, "kind"))
	if !kind.Valid() {
		writeError(w, http.StatusNotFound, "unknown directory kind")
		return "", false
	}
	return kind, true
}

// PutDirectoryEntity handles PUT /api/v1/directory/{kind}/{id}
// The id in the path wins over any id in the body.
func (h *Handlers) PutDirectoryEntity(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.directoryKind(w, r)
	if !ok {
		return
	}
	e, ok := readJSON[interaction.EntityRef](w, r, maxRequestBodySize)
	if !ok {
		return
	}
	e.ID = urlParam(r, "id")
	if !requireField(w, e.Name, "name") {
		return
	}
	if err := h.Directory.UpsertEntity(r.Context(), kind, &e); err != nil {
		writeDomainError(w, err, "entity not found")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteDirectoryEntity handles DELETE /api/v1/directory/{kind}/{id}
func (h *Handlers) DeleteDirectoryEntity(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.directoryKind(w, r)
	if !ok {
		return
	}
	if err := h.Directory.DeleteEntity(r.Context(), kind, urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "entity not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListModels handles GET /api/v1/models
func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	if h.Models == nil {
		writeError(w, http.StatusNotFound, "model listing not configured")
		return
	}
	models, err := h.Models.ListModels(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "model backend unavailable")
		return
	}
	if models == nil {
		models = []litellm.Model{}
	}
	writeJSON(w, http.StatusOK, models)
}
