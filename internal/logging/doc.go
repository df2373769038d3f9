// Package logging sets up structured JSON logging for nextor.
//
// Logs go to a size-rotated file under ~/.nextor/logs/. Interactive commands
// may tee to stderr; the MCP server never does, since stdout and stderr
// belong to the JSON-RPC stream and the host.
package logging
