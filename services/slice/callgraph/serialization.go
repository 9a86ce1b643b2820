// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package callgraph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// GraphSchemaVersion is the serialization schema version. Increment on
// breaking format changes.
const GraphSchemaVersion = "1.0"

// SerializableGraph is the JSON form of a frozen Graph.
//
// Description:
//
//	Functions are emitted in sorted ID order and call sites in the
//	frozen (caller, line) order, so the output is deterministic and
//	the graph hash is stable across runs.
//
// Thread Safety: Value type with no internal state.
type SerializableGraph struct {
	// SchemaVersion identifies the serialization format.
	SchemaVersion string `json:"schema_version"`

	// GraphHash is the deterministic hash of the structure, computed
	// over the serialized functions and call sites.
	GraphHash string `json:"graph_hash"`

	// Functions contains all functions, sorted by ID.
	Functions []*Function `json:"functions"`

	// CallSites contains all internal call sites.
	CallSites []*CallSite `json:"call_sites"`

	// ExternalCalls contains calls to unparsed targets.
	ExternalCalls []ExternalCall `json:"external_calls,omitempty"`
}

// ToSerializable converts a frozen Graph to its JSON form.
//
// Outputs:
//   - *SerializableGraph: Never nil.
//   - error: Non-nil if the graph is not frozen.
func (g *Graph) ToSerializable() (*SerializableGraph, error) {
	if !g.IsFrozen() {
		return nil, fmt.Errorf("ToSerializable: graph must be frozen first")
	}

	sg := &SerializableGraph{SchemaVersion: GraphSchemaVersion}

	for _, id := range g.FunctionIDs() {
		f, err := g.Lookup(id)
		if err != nil {
			return nil, err
		}
		sg.Functions = append(sg.Functions, f)

		sites, err := g.CallSitesIn(id)
		if err != nil {
			return nil, err
		}
		sg.CallSites = append(sg.CallSites, sites...)
	}
	sg.ExternalCalls = g.ExternalCalls()

	hash, err := structureHash(sg)
	if err != nil {
		return nil, err
	}
	sg.GraphHash = hash
	return sg, nil
}

// FromSerializable reconstructs a frozen Graph from its JSON form.
func FromSerializable(sg *SerializableGraph) (*Graph, error) {
	if sg == nil {
		return nil, fmt.Errorf("FromSerializable: nil input")
	}

	g := New()
	for _, f := range sg.Functions {
		if err := g.AddFunction(f); err != nil {
			return nil, err
		}
	}
	for _, cs := range sg.CallSites {
		if err := g.AddCallSite(cs); err != nil {
			return nil, err
		}
	}
	for _, ec := range sg.ExternalCalls {
		g.AddExternalCall(ec)
	}
	if err := g.Freeze(); err != nil {
		return nil, err
	}
	return g, nil
}

// structureHash hashes the functions and call sites, ignoring the hash
// field itself.
func structureHash(sg *SerializableGraph) (string, error) {
	payload := struct {
		Functions []*Function `json:"functions"`
		CallSites []*CallSite `json:"call_sites"`
	}{sg.Functions, sg.CallSites}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("hashing graph structure: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
