// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/control"
	"github.com/momentics/hioload-echo/internal/conntable"
	"github.com/momentics/hioload-echo/pool"
	"github.com/momentics/hioload-echo/reactor"
)

// Config holds all server-side configuration parameters.
type Config struct {
	Port           int             `validate:"gte=0,lte=65535"`                  // TCP port, 0 picks an ephemeral one
	Mode           api.TriggerMode `validate:"lte=1"`                            // level or edge for listener and connections
	Backend        reactor.Backend `validate:"required,oneof=epoll poll select"` // multiplexer strategy
	ReadBufferSize int             `validate:"gte=1"`                            // scratch buffer per read call
	MaxBatch       int             `validate:"gte=1,lte=65536"`                  // ready events per wait
	SendBufferSize int             `validate:"gte=0"`                            // SO_SNDBUF for accepted sockets, 0 keeps the kernel default
	CPU            int             `validate:"gte=-1"`                           // pin the loop thread to this CPU, -1 disables
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:           0,
		Mode:           api.TriggerEdge,
		Backend:        reactor.BackendEpoll,
		ReadBufferSize: pool.DefaultBufferSize,
		MaxBatch:       1024,
		CPU:            -1,
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validate checks field ranges.
func (c *Config) Validate() error {
	validateOnce.Do(func() { validate = validator.New() })
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("server: invalid config: %w", err)
	}
	return nil
}

// State is the event loop state.
type State int32

const (
	StateRunning State = iota
	StateStopped
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Server owns the listening endpoint, the multiplexer and the connection
// table. Everything except Shutdown, State and the read-only accessors must
// be called from the goroutine running Run.
type Server struct {
	cfg Config
	log *slog.Logger

	lfd    int
	port   int
	accept func(lfd int, nonblock bool) (int, string, error)
	mux    api.Multiplexer
	waker  *reactor.Waker
	conns  *conntable.Table

	scratch []byte
	bufs    *pool.BytePool

	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes
	observer func(api.ReadyEvent)

	acceptLog  *rate.Limiter
	suppressed int

	state    atomic.Int32
	running  atomic.Bool
	stopReq  atomic.Bool
	live     atomic.Int64
	teardown sync.Once
}
