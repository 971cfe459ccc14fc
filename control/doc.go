// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics and debug introspection for the echo loop.
//
// The loop goroutine is the only writer; readers on other goroutines take
// snapshots. Counters are lock-free, probe registration is mutex guarded.
package control
