// Package runtime is the high-level assembly generated wrappers call into.
//
// A Runtime owns one boundary and the registries bridging it: the
// completion bridge for asynchronous calls and the logger shared by every
// component. Construct one per boundary:
//
//	rt := runtime.New(engine.NewLocal(), runtime.WithLogger(log))
//	defer rt.Close()
//
//	v, err := runtime.Call[int64](ctx, rt, "add", int64(2), int64(3))
//	obj, err := rt.Object(ctx, "db.open", []byte(cfg))
//	call, err := runtime.Async[string](ctx, rt, "fetch", url)
//	s, err := rt.Stream(ctx, "rows.scan", obj)
//
// Call is synchronous: it blocks until the native side answers with an
// envelope. Async suspends through a future instead of blocking, and
// Stream pulls lazily under the consumer's pace. Nothing here retries and
// nothing imposes a timeout; both belong to the caller, who knows whether
// the native function is idempotent.
package runtime
