// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault defines the error taxonomy shared by the event
// processing packages.
//
// Every failure that a caller may need to act on is wrapped in an
// [Error] carrying one of four categories: [CategoryWireFormat],
// [CategoryNotFound], [CategoryTransient], or [CategoryState]. Use the
// constructors ([WireFormat], [NotFound], [Transient], [State]) and
// test with [Is]:
//
//	if fault.Is(err, fault.CategoryWireFormat) {
//	    // abandon this source
//	}
//
// Wrapping with fmt.Errorf("...: %w", err) preserves the category.
//
// This package has no internal dependencies.
package fault
