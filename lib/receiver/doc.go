// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package receiver accepts bucket streams over TCP.
//
// A [Receiver] serves one peer at a time: [Receiver.Receive] accepts a
// single inbound connection, drains it into a growable in-memory buffer
// until the peer closes its side, and hands the buffer to the caller.
// The bucket reader consumes it through the [bucket.NetworkSource]
// interface when a source list contains the network token, so framing
// validation of the received bytes happens downstream exactly as it does
// for files.
//
// [Send] is the client side: it dials a receiver, streams a reader's
// bytes, and half-closes the connection so the receiver sees a clean
// end of stream.
package receiver
