// Package app wires the ingestor together: store, ingestion pipeline and
// loop, WebSocket hub, read API and telemetry.
//
// # Lifecycle
//
//	st, _ := store.New(ctx, cfg.Store, logger)
//	a, err := app.New(cfg, st, logger)
//	if err != nil {
//	    return err
//	}
//	err = a.Run(ctx) // until ctx is cancelled or a component fails
//	st.Close(ctx)
//
// Run pings the store first and fails fast if it is unreachable. It then
// runs the hub, the ingestion loop and the HTTP server under one errgroup;
// the first error cancels the rest. With the server disabled Run returns as
// soon as the loop does, which makes a scan-only run a one-shot import.
//
// The app never calls os.Exit and does not install signal handlers; the
// binaries under cmd/ own both.
package app
