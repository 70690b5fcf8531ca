// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds small TCP helpers shared by the receiver and
// the CLI: a listener with address reuse and classification of the
// errors a peer's disconnect produces.
package netutil
