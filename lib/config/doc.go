// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the YAML configuration of eventflow.
//
// Configuration comes from a single file named by the EVENTFLOW_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no discovery and no search path.
//
// The file may carry development and production sections that override
// base values when [Config].Environment matches. Production defaults
// are stricter: decompressors are constructed eagerly at startup
// instead of on first use.
//
// After loading, ${VAR} and ${VAR:-default} references in source paths
// and the receiver address are expanded from the process environment.
//
// Key exports:
//
//   - [Config] -- reader, receiver, writer and collateral sections
//   - [Default] -- a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points
//   - [Config.Validate] -- rejects unusable values before anything runs
package config
