//go:build tools
// +build tools

// Package tools declares tool dependencies for this module.
//
// mockgen is only invoked through `go generate ./contract`; importing it here
// keeps its version pinned in go.mod and go.sum.
package chat_relay

import (
	_ "go.uber.org/mock/mockgen"
)
