// Package log implements an on-device logging engine for
// resource-constrained hosts: leveled, printf-formatted events from any
// goroutine are filtered by configurable severity thresholds, queued into a
// bounded FIFO and drained by a single consumer task that writes the console,
// appends to a size-bounded flash log with keep-latest rotation, and
// optionally forwards every event to a user callback.
//
// The engine is an explicit instance with a Begin/End lifecycle:
//
//	eng := log.New(log.Cfg{LogPath: "logs/app.log", Store: store})
//	if err := eng.Begin(); err != nil {
//		// lifecycle error, not a logging error
//	}
//	defer eng.End()
//
//	eng.Info("boot complete after %d ms", elapsed)
//
// Logging never blocks the caller beyond a bounded backpressure stall and
// never returns an error; durability loss is observable only through the
// dropped counter.
package log
