package jit

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"tier1/pkg/errors"
	"tier1/pkg/method"
)

// Runtime compiles methods and installs their entry points. It is safe for
// concurrent use; each compilation has its own emitter and buffer.
type Runtime struct {
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	routines map[*method.Method]*Routine
	retired  []*Routine // replaced, possibly still running

	compiled  atomic.Int64
	bailouts  atomic.Int64
	codeBytes atomic.Int64
}

// NewRuntime creates a runtime compiling with opts.
func NewRuntime(opts Options) *Runtime {
	return &Runtime{
		opts:     opts,
		log:      opts.Logger,
		routines: make(map[*method.Method]*Routine),
	}
}

// Compile compiles m and, on success, installs the result as its entry
// point. A failure leaves m untouched; the caller keeps interpreting it.
func (r *Runtime) Compile(m *method.Method) (*Routine, error) {
	c := NewCompiler(m, r.opts)
	if !c.Compile() {
		r.bailouts.Add(1)
		reason, ip := errors.Reason(c.Err())
		r.log.Debug().
			Str("method", m.Name).
			Int("ip", ip).
			Bool("unsupported", errors.Is(c.Err(), errors.ErrUnsupported)).
			Msgf("tier-1 bailout: %s", reason)
		return nil, c.Err()
	}

	fn := c.Function()
	r.mu.Lock()
	if old := r.routines[m]; old != nil {
		r.retired = append(r.retired, old)
	}
	r.routines[m] = fn
	r.mu.Unlock()

	m.Install(&method.Entry{Address: fn.Entry(), Size: fn.Size()})
	r.compiled.Add(1)
	r.codeBytes.Add(int64(fn.Size()))
	r.log.Debug().Str("method", m.Name).Int("bytes", fn.Size()).Msg("tier-1 compiled")
	return fn, nil
}

// Routine returns the routine installed for m, or nil.
func (r *Runtime) Routine(m *method.Method) *Routine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.routines[m]
}

// Free uninstalls and releases every routine. No compiled code may be
// running.
func (r *Runtime) Free() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var first error
	for m, fn := range r.routines {
		m.Uninstall()
		if err := fn.Release(); err != nil && first == nil {
			first = err
		}
		delete(r.routines, m)
	}
	for _, fn := range r.retired {
		if err := fn.Release(); err != nil && first == nil {
			first = err
		}
	}
	r.retired = nil
	return first
}

// Stats returns JIT compilation statistics
type Stats struct {
	MethodsCompiled int64
	Bailouts        int64
	CodeBytes       int64
}

func (r *Runtime) Stats() Stats {
	if r == nil {
		return Stats{}
	}
	return Stats{
		MethodsCompiled: r.compiled.Load(),
		Bailouts:        r.bailouts.Load(),
		CodeBytes:       r.codeBytes.Load(),
	}
}
