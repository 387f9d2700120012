// Package mcp exposes the orchestrator to AI agents over the Model Context
// Protocol (streamable HTTP transport).
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/ActionForge/internal/domain/policy"
	"github.com/Strob0t/ActionForge/internal/domain/proposal"
	"github.com/Strob0t/ActionForge/internal/middleware"
	"github.com/Strob0t/ActionForge/internal/service"
)

const endpointPath = "/mcp"

// Proposer runs and records one orchestration.
type Proposer interface {
	Propose(ctx context.Context, req *service.ProposeRequest) (*service.ProposeResult, error)
}

// ProposalReader reads recorded proposals.
type ProposalReader interface {
	Get(ctx context.Context, id string) (*proposal.Proposal, error)
	List(ctx context.Context, limit int) ([]proposal.Proposal, error)
}

// PolicyCatalog resolves and lists policy profiles.
type PolicyCatalog interface {
	Resolve(name string, inline *policy.Policy) (*policy.Policy, error)
	Profiles() []policy.Policy
	DefaultProfile() string
}

// TextIngester orchestrates free text against the stored directory.
type TextIngester interface {
	IngestFromStore(ctx context.Context, text string, pol *policy.Policy) (service.Result, error)
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string
}

// ServerDeps are the services backing tools and resources. Any of them may
// be nil; the dependent tools then answer with an error result.
type ServerDeps struct {
	Proposer  Proposer
	Proposals ProposalReader
	Policies  PolicyCatalog
	Ingester  TextIngester
}

// Server is the MCP server.
type Server struct {
	cfg       ServerConfig
	deps      ServerDeps
	mcpServer *mcpserver.MCPServer
	httpSrv   *http.Server
}

// NewServer creates a Server with all tools and resources registered.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
			mcpserver.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Handler returns the streamable HTTP transport behind the bearer key check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(endpointPath, mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(endpointPath),
		mcpserver.WithStateLess(true),
	))
	return middleware.BearerKey(s.cfg.APIKey)(mux)
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("mcp listen %s: %w", s.cfg.Addr, err)
	}
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server error", "error", err)
		}
	}()
	slog.Info("mcp server started", "addr", ln.Addr().String(), "path", endpointPath)
	return nil
}

// Stop shuts the listener down, waiting for open requests until ctx ends.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	if err := s.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("mcp shutdown: %w", err)
	}
	slog.Info("mcp server stopped")
	return nil
}
