// Package pool
// Author: momentics <momentics@gmail.com>
//
// Buffer recycling for the echo loop: the per-handler read scratch buffer and
// the copies of echo bytes that could not be written immediately.
package pool
