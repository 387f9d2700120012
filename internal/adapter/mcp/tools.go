package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/ActionForge/internal/domain/action"
	"github.com/Strob0t/ActionForge/internal/domain/interaction"
	"github.com/Strob0t/ActionForge/internal/service"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.proposeActionsTool(),
		s.validateActionsTool(),
		s.ingestTextTool(),
		s.getProposalTool(),
	)
}

func (s *Server) proposeActionsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("propose_actions",
		mcplib.WithDescription("Propose CRM actions for an email, voice call, meeting or note"),
		mcplib.WithObject("interaction",
			mcplib.Required(),
			mcplib.Description("The interaction: source, subject, body, participants, timestamp"),
		),
		mcplib.WithObject("related_entities",
			mcplib.Description("Known company, contact and deal records"),
		),
		mcplib.WithString("policy_name",
			mcplib.Description("Policy profile; the server default when omitted"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleProposeActions}
}

func (s *Server) validateActionsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("validate_actions",
		mcplib.WithDescription("Normalize a candidate action list and drop invalid entries"),
		mcplib.WithArray("actions",
			mcplib.Required(),
			mcplib.Description("Candidate actions"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleValidateActions}
}

func (s *Server) ingestTextTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("ingest_text",
		mcplib.WithDescription("Propose CRM actions for free text, resolving mentioned records from the directory"),
		mcplib.WithString("text",
			mcplib.Required(),
			mcplib.Description("Free text to ingest"),
		),
		mcplib.WithString("policy_name",
			mcplib.Description("Policy profile; the server default when omitted"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleIngestText}
}

func (s *Server) getProposalTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_proposal",
		mcplib.WithDescription("Get a recorded proposal by ID"),
		mcplib.WithString("proposal_id",
			mcplib.Required(),
			mcplib.Description("The proposal ID"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleGetProposal}
}

func (s *Server) handleProposeActions(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Proposer == nil {
		return mcplib.NewToolResultError("orchestrator not configured"), nil
	}
	args := req.GetArguments()

	var pr service.ProposeRequest
	ok, err := decodeArg(args, "interaction", &pr.Interaction)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("invalid interaction", err), nil
	}
	if !ok {
		return mcplib.NewToolResultError("interaction is required"), nil
	}
	var related interaction.RelatedEntities
	ok, err = decodeArg(args, "related_entities", &related)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("invalid related_entities", err), nil
	}
	if ok {
		pr.Related = &related
	}
	pr.PolicyName, _ = args["policy_name"].(string)

	res, err := s.deps.Proposer.Propose(ctx, &pr)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("orchestration failed", err), nil
	}
	return marshalResult(res)
}

func (s *Server) handleValidateActions(_ context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	actions, ok := req.GetArguments()["actions"]
	if !ok {
		return mcplib.NewToolResultError("actions is required"), nil
	}
	raw, err := json.Marshal(map[string]any{"actions": actions})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to read actions", err), nil
	}
	return marshalResult(action.Validate(raw))
}

func (s *Server) handleIngestText(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Ingester == nil || s.deps.Policies == nil {
		return mcplib.NewToolResultError("ingestion not configured"), nil
	}
	args := req.GetArguments()
	text, ok := args["text"].(string)
	if !ok {
		return mcplib.NewToolResultError("text is required"), nil
	}
	name, _ := args["policy_name"].(string)
	pol, err := s.deps.Policies.Resolve(name, nil)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("invalid policy", err), nil
	}
	res, err := s.deps.Ingester.IngestFromStore(ctx, text, pol)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("ingestion failed", err), nil
	}
	return marshalResult(res)
}

func (s *Server) handleGetProposal(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Proposals == nil {
		return mcplib.NewToolResultError("proposal store not configured"), nil
	}
	id, ok := req.GetArguments()["proposal_id"].(string)
	if !ok || id == "" {
		return mcplib.NewToolResultError("proposal_id is required"), nil
	}
	p, err := s.deps.Proposals.Get(ctx, id)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("failed to get proposal %s", id), err), nil
	}
	return marshalResult(p)
}

// decodeArg re-decodes the JSON object argument key into dst. It reports
// whether the argument was present.
func decodeArg(args map[string]any, key string, dst any) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return false, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return true, err
	}
	return true, json.Unmarshal(data, dst)
}

func marshalResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
	}
	return toolResultJSON(string(data)), nil
}

func toolResultJSON(text string) *mcplib.CallToolResult {
	return mcplib.NewToolResultText(text)
}
