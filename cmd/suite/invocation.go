// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/google/uuid"
)

// Operation is a lifecycle operation on the suite.
type Operation string

const (
	OpInstall     Operation = "install"
	OpUpdate      Operation = "update"
	OpStart       Operation = "start"
	OpStop        Operation = "stop"
	OpStopOllama  Operation = "stop-ollama"
	OpStopLlama   Operation = "stop-llama-cpp"
	OpPause       Operation = "pause"
	OpUnpause     Operation = "unpause"
	OpBackupData  Operation = "backup-data"
	OpRestoreData Operation = "restore-data"
	OpStatus      Operation = "status"
	OpLogs        Operation = "logs"
)

// allOperations lists every operation, for parsing and help text.
var allOperations = []Operation{
	OpInstall, OpUpdate, OpStart,
	OpStop, OpStopOllama, OpStopLlama,
	OpPause, OpUnpause,
	OpBackupData, OpRestoreData,
	OpStatus, OpLogs,
}

// ParseOperation validates an operation name.
func ParseOperation(s string) (Operation, error) {
	for _, op := range allOperations {
		if s == string(op) {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation %q (valid: %v)", s, allOperations)
}

// IsStopVariant reports whether the operation is any form of stop.
//
// Stop variants are interchangeable for state purposes: a suite
// stopped via stop-ollama is just as stopped for a plain stop.
func (o Operation) IsStopVariant() bool {
	return o == OpStop || o == OpStopOllama || o == OpStopLlama
}

// MutatesState reports whether the operation records a state marker.
//
// Read-only operations leave the recorded state untouched.
func (o Operation) MutatesState() bool {
	switch o {
	case OpStatus, OpLogs, OpBackupData, OpRestoreData:
		return false
	default:
		return true
	}
}

// RequiresConfirmation reports whether the operation must be confirmed
// before running, even outside interactive sessions.
func (o Operation) RequiresConfirmation() bool {
	return o == OpUpdate || o == OpRestoreData
}

// Environment selects which compose override file is layered onto the
// base compose file.
type Environment string

const (
	// EnvPrivate is the default: services bound to localhost only.
	EnvPrivate Environment = "private"

	// EnvPublic exposes services on all interfaces, for LAN use.
	EnvPublic Environment = "public"
)

// ParseEnvironment validates an environment name.
func ParseEnvironment(s string) (Environment, error) {
	switch Environment(s) {
	case EnvPrivate, EnvPublic:
		return Environment(s), nil
	default:
		return "", fmt.Errorf("unknown environment %q (valid: private, public)", s)
	}
}

// OverrideFile returns the compose override file for this environment.
func (e Environment) OverrideFile() string {
	return fmt.Sprintf("docker-compose.override.%s.yml", e)
}

// InvocationContext captures one CLI invocation, fully resolved.
//
// # Description
//
//	Built once from flags after parsing and normalization, then passed
//	read-only through the sequencer. All fields are unexported: the
//	context cannot drift mid-operation, so every stage sees the same
//	decision the user made.
type InvocationContext struct {
	id                string
	operation         Operation
	explicitOperation bool
	environment       Environment
	profiles          NormalizeResult
	assumeYes         bool
}

// NewInvocationContext builds an immutable invocation record.
//
// # Inputs
//
//   - op: The resolved lifecycle operation
//   - explicit: True when the user named the operation on the CLI
//   - env: The deployment environment
//   - profiles: The normalized profile set
//   - assumeYes: True when --yes suppresses confirmation prompts
func NewInvocationContext(op Operation, explicit bool, env Environment, profiles NormalizeResult, assumeYes bool) InvocationContext {
	return InvocationContext{
		id:                uuid.NewString(),
		operation:         op,
		explicitOperation: explicit,
		environment:       env,
		profiles:          profiles,
		assumeYes:         assumeYes,
	}
}

// ID returns the unique invocation identifier, used to correlate logs.
func (ic InvocationContext) ID() string { return ic.id }

// Operation returns the lifecycle operation.
func (ic InvocationContext) Operation() Operation { return ic.operation }

// ExplicitOperation reports whether the operation was named by the user.
func (ic InvocationContext) ExplicitOperation() bool { return ic.explicitOperation }

// Environment returns the deployment environment.
func (ic InvocationContext) Environment() Environment { return ic.environment }

// Profiles returns the normalized profile set.
func (ic InvocationContext) Profiles() NormalizeResult { return ic.profiles }

// AssumeYes reports whether confirmation prompts are suppressed.
func (ic InvocationContext) AssumeYes() bool { return ic.assumeYes }
