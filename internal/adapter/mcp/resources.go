package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const recentProposalsLimit = 20

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"actionforge://policies",
			"Policy Profiles",
			mcplib.WithResourceDescription("Policy presets and custom profiles, with the default"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handlePoliciesResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"actionforge://proposals/recent",
			"Recent Proposals",
			mcplib.WithResourceDescription("The most recently recorded proposals"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleRecentProposalsResource,
	)
}

func (s *Server) handlePoliciesResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Policies == nil {
		return jsonContents(req.Params.URI, `{"error":"policies not configured"}`), nil
	}
	data, err := json.Marshal(map[string]any{
		"default":  s.deps.Policies.DefaultProfile(),
		"profiles": s.deps.Policies.Profiles(),
	})
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, string(data)), nil
}

func (s *Server) handleRecentProposalsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Proposals == nil {
		return jsonContents(req.Params.URI, `{"error":"proposal store not configured"}`), nil
	}
	list, err := s.deps.Proposals.List(ctx, recentProposalsLimit)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil, err
	}
	return jsonContents(req.Params.URI, string(data)), nil
}

func jsonContents(uri, text string) []mcplib.ResourceContents {
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     text,
		},
	}
}
