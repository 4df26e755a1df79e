// Package api holds the request and response types of the flowcanvas HTTP
// API.
//
// # API Overview
//
// flowcanvas serves the graph-editing engine of the workflow editor:
//   - Stateless validation of a posted workflow document
//   - Editing sessions that apply editor commands over HTTP or WebSocket
//   - Geometry (ports and routed edges) for rendering
//   - Document export as JSON or YAML
//   - Saving and executing workflows through the external workflow API
//   - Health monitoring and metrics
//
// # Authentication
//
// Depending on configuration, endpoints require either an API key:
//
//	X-API-Key: your-api-key
//
// or a bearer token signed with HS256:
//
//	Authorization: Bearer <jwt>
//
// The token subject becomes the owner of the sessions it creates.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
