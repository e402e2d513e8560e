package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/seamlik/riko"
	"github.com/seamlik/riko/errors"
)

// Guest ABI export names. Every boundary module must export the allocator
// and the drop primitive; riko_next only when it ships iterators.
const (
	exportAlloc = "riko_alloc"
	exportDrop  = "riko_drop"
	exportNext  = "riko_next"
)

// Wazero is a boundary whose native side is a WebAssembly module hosted in
// process. Encoded payloads cross as (ptr, len) pairs in guest memory,
// scalars as their flat wasm representation, and payload-returning exports
// answer with one u64 packing ptr<<32|len; a zero-length packing means no
// payload.
//
// This transport is synchronous end to end: Start and the completion
// callback are unsupported, because the guest has no thread of its own to
// complete from.
type Wazero struct {
	rt  wazero.Runtime
	mod api.Module
	mu  sync.Mutex
	log *zap.Logger
}

var _ riko.Boundary = (*Wazero)(nil)

// WazeroOption configures a Wazero boundary.
type WazeroOption func(*Wazero)

// WithWazeroLogger sets the logger. Defaults to a no-op logger.
func WithWazeroLogger(log *zap.Logger) WazeroOption {
	return func(w *Wazero) { w.log = log }
}

// NewWazero compiles and instantiates a boundary module. WASI preview1 is
// provided for guests built against it.
func NewWazero(ctx context.Context, wasm []byte, opts ...WazeroOption) (*Wazero, error) {
	w := &Wazero{
		rt:  wazero.NewRuntime(ctx),
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}

	wasi_snapshot_preview1.MustInstantiate(ctx, w.rt)

	mod, err := w.rt.Instantiate(ctx, wasm)
	if err != nil {
		_ = w.rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindInvalidInput, err, "instantiate boundary module")
	}
	if mod.ExportedFunction(exportAlloc) == nil {
		_ = w.rt.Close(ctx)
		return nil, errors.NotFound(errors.PhaseRuntime, "export", exportAlloc)
	}
	if mod.ExportedFunction(exportDrop) == nil {
		_ = w.rt.Close(ctx)
		return nil, errors.NotFound(errors.PhaseRuntime, "export", exportDrop)
	}

	w.mod = mod
	return w, nil
}

// Call implements riko.Boundary.
func (w *Wazero) Call(ctx context.Context, name string, args ...any) ([]byte, error) {
	results, err := w.invoke(ctx, name, args)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		// Fire-and-forget export.
		return nil, nil
	}
	return w.readPacked(results[0])
}

// NewObject implements riko.Boundary.
func (w *Wazero) NewObject(ctx context.Context, name string, args ...any) (riko.Handle, error) {
	results, err := w.invoke(ctx, name, args)
	if err != nil {
		return riko.NilHandle, err
	}
	if len(results) == 0 {
		return riko.NilHandle, errors.InvalidInput(errors.PhaseCall, "object export returned nothing")
	}
	return riko.Handle(int64(results[0])), nil
}

// Start implements riko.Boundary. Unsupported: a guest module has no
// execution context of its own to deliver a completion from.
func (w *Wazero) Start(context.Context, string, ...any) (riko.Handle, error) {
	return riko.NilHandle, errors.Unsupported(errors.PhaseFuture, "asynchronous calls over a wasm boundary")
}

// Cancel implements riko.Boundary.
func (w *Wazero) Cancel(riko.Handle) {}

// OnComplete implements riko.Boundary.
func (w *Wazero) OnComplete(riko.CompleteFunc) {
	w.log.Warn("completion callback installed on a synchronous boundary")
}

// Next implements riko.Boundary.
func (w *Wazero) Next(handle riko.Handle) ([]byte, error) {
	results, err := w.invoke(context.Background(), exportNext, []any{handle})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.InvalidInput(errors.PhaseStream, "next export returned nothing")
	}
	return w.readPacked(results[0])
}

// Drop implements riko.Boundary.
func (w *Wazero) Drop(handle riko.Handle) {
	if _, err := w.invoke(context.Background(), exportDrop, []any{handle}); err != nil {
		w.log.Error("drop failed", zap.Int64("handle", int64(handle)), zap.Error(err))
	}
}

// Close tears down the guest runtime.
func (w *Wazero) Close(ctx context.Context) error {
	return w.rt.Close(ctx)
}

// Export describes one function the guest module exposes.
type Export struct {
	Name    string
	Params  []string
	Results []string
}

// Exports lists the guest's exported functions, sorted by name. The ABI
// exports are included; callers wanting only domain functions filter them.
func (w *Wazero) Exports() []Export {
	var out []Export
	for name, def := range w.mod.ExportedFunctionDefinitions() {
		e := Export{Name: name}
		for _, t := range def.ParamTypes() {
			e.Params = append(e.Params, api.ValueTypeName(t))
		}
		for _, t := range def.ResultTypes() {
			e.Results = append(e.Results, api.ValueTypeName(t))
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// invoke lowers args, runs the export, and returns its raw results. The
// module instance is single-threaded; calls are serialized.
func (w *Wazero) invoke(ctx context.Context, name string, args []any) ([]uint64, error) {
	fn := w.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseCall, "export", name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	params := make([]uint64, 0, len(args)*2)
	for _, arg := range args {
		lowered, err := w.lowerArg(ctx, arg)
		if err != nil {
			return nil, err
		}
		params = append(params, lowered...)
	}

	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.CallFailed(name, err)
	}
	return results, nil
}

// lowerArg converts one boundary argument to its flat wasm form. Payloads
// are copied into guest memory and become a (ptr, len) pair.
func (w *Wazero) lowerArg(ctx context.Context, arg any) ([]uint64, error) {
	switch v := arg.(type) {
	case []byte:
		ptr, err := w.write(ctx, v)
		if err != nil {
			return nil, err
		}
		return []uint64{uint64(ptr), uint64(uint32(len(v)))}, nil
	case riko.Handle:
		return []uint64{api.EncodeI64(int64(v))}, nil
	case bool:
		if v {
			return []uint64{1}, nil
		}
		return []uint64{0}, nil
	case int64:
		return []uint64{api.EncodeI64(v)}, nil
	case uint64:
		return []uint64{v}, nil
	case float64:
		return []uint64{api.EncodeF64(v)}, nil
	default:
		return nil, errors.InvalidInput(errors.PhaseCall, fmt.Sprintf("argument type %T cannot cross the boundary", arg))
	}
}

// write copies data into guest memory via the guest allocator.
func (w *Wazero) write(ctx context.Context, data []byte) (uint32, error) {
	if len(data) == 0 {
		return 0, nil
	}

	results, err := w.mod.ExportedFunction(exportAlloc).Call(ctx, uint64(uint32(len(data))))
	if err != nil {
		return 0, errors.CallFailed(exportAlloc, err)
	}
	ptr := uint32(results[0])

	if !w.mod.Memory().Write(ptr, data) {
		return 0, errors.InvalidInput(errors.PhaseCall, "guest allocation out of memory bounds")
	}
	return ptr, nil
}

// readPacked copies a packed ptr<<32|len payload out of guest memory.
func (w *Wazero) readPacked(packed uint64) ([]byte, error) {
	ptr, length := unpackPtrLen(packed)
	if length == 0 {
		return []byte{}, nil
	}

	view, ok := w.mod.Memory().Read(ptr, length)
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseCall, "guest payload out of memory bounds")
	}
	// The view aliases guest memory; copy before the next call clobbers it.
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

func packPtrLen(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

func unpackPtrLen(packed uint64) (ptr, length uint32) {
	return uint32(packed >> 32), uint32(packed)
}
