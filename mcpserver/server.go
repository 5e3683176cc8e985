package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/sandboxd/config"
	"github.com/isdmx/sandboxd/sandbox"
)

// Runner is the narrow engine contract the MCP surface consumes.
type Runner interface {
	sandbox.Executor
	Supports(language string) bool
	SupportedLanguages() []string
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	runner    Runner
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, runner Runner) (*MCPServer, error) {
	s := &MCPServer{
		config: cfg,
		logger: logger,
		runner: runner,
	}

	// Log configuration parameters on startup
	logger.Info("configuration loaded",
		zap.String("server.transport", s.config.Server.Transport),
		zap.Int("server.http_port", s.config.Server.HTTPPort),
		zap.Int("sandbox.default_timeout_sec", s.config.Sandbox.DefaultTimeoutSec),
		zap.Int("sandbox.max_timeout_sec", s.config.Sandbox.MaxTimeoutSec),
		zap.Int("sandbox.max_output_bytes", s.config.Sandbox.MaxOutputBytes),
		zap.Int64("sandbox.max_file_bytes", s.config.Sandbox.MaxFileBytes),
		zap.Strings("languages", runner.SupportedLanguages()),
	)

	// Create the MCP server
	s.mcpServer = server.NewMCPServer("sandboxd", "A disposable subprocess code execution server")

	// Register the run_code tool
	s.registerRunCodeTool()

	return s, nil
}

// registerRunCodeTool registers the run_code tool
func (s *MCPServer) registerRunCodeTool() {
	tool := mcp.Tool{
		Name:        "run_code",
		Description: "Execute an untrusted code snippet in a disposable subprocess",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "User-provided source code",
				},
				"language": map[string]any{
					"type":        "string",
					"description": "Runtime language",
					"enum":        s.runner.SupportedLanguages(),
				},
				"timeout": map[string]any{
					"type":        "integer",
					"description": "Wall-clock timeout in seconds (optional)",
				},
			},
			Required: []string{"code", "language"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleRunCode)
}

// handleRunCode handles the run_code tool
func (s *MCPServer) handleRunCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := request.RequireString("code")
	if err != nil {
		return nil, fmt.Errorf("code parameter is required: %w", err)
	}

	language, err := request.RequireString("language")
	if err != nil {
		return nil, fmt.Errorf("language parameter is required: %w", err)
	}

	if !s.runner.Supports(language) {
		return nil, fmt.Errorf("unsupported language: %s, must be one of: %s",
			language, strings.Join(s.runner.SupportedLanguages(), ", "))
	}
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("empty code")
	}

	timeout := request.GetInt("timeout", 0)

	s.logger.Info("executing code",
		zap.String("language", language),
		zap.Int("timeout_sec", timeout))

	result, err := s.runner.Execute(ctx, sandbox.ExecuteRequest{
		Language:   language,
		Code:       code,
		TimeoutSec: timeout,
	})
	if err != nil {
		s.logger.Error("execution rejected",
			zap.Error(err),
			zap.String("language", language))
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf("Execution failed: %v", err),
				},
			},
			IsError: true,
		}, nil
	}

	s.logger.Info("code execution completed",
		zap.String("language", language),
		zap.Int("exit_code", result.ExitCode),
		zap.Int("stdout_len", len(result.Stdout)),
		zap.Int("stderr_len", len(result.Stderr)),
		zap.Int("file_count", len(result.Files)))

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(resultJSON),
			},
		},
	}, nil
}

// ServeStdio starts the server on stdio
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
