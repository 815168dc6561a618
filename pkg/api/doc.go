// Package api defines the public types of the holdpoint engine: workflow
// definitions, instances, the streaming frame protocol, approval requests
// and the Engine interface.
//
// Most applications import the root holdpoint package, which re-exports
// everything here; api exists so internal packages and custom transports
// can share the vocabulary without import cycles.
package api
