// Package mcpserver provides the Model Context Protocol (MCP) server implementation.
//
// The mcpserver package exposes the execution engine as an MCP tool over
// stdio, as an alternative to the HTTP gateway. It uses the
// mark3labs/mcp-go library to handle the protocol details and provides the
// run_code tool as the execution interface.
//
// Usage:
//
//	srv, err := mcpserver.New(config, logger, engine)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = srv.ServeStdio()
package mcpserver
