// File: internal/conntable/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Connection table for the echo loop. Maps a live descriptor to its
// per-connection state and owns the queue of echo bytes still waiting for
// write readiness. Only the loop goroutine touches a Table, so it carries no
// locks.
package conntable
