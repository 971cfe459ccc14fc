// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides the readiness multiplexer strategies behind
// api.Multiplexer: epoll (level- and edge-triggered), poll(2) and select(2)
// (level only), plus an eventfd-based Waker used to interrupt a blocked wait.
//
// Always call Deregister before closing a descriptor. The kernel reuses
// descriptor numbers, and a stale watch entry would otherwise be inherited by
// the next descriptor that receives the same value.
package reactor
