// Package files finds and watches rig metrics files.
//
// Discovery lists the qualifying files already in a directory, oldest
// first. Watcher reports new ones as fsnotify events arrive, coalescing the
// bursts of create and write events a single copy produces. WaitStable holds
// off reading until a file has stopped growing.
//
// Example usage:
//
//	discovery := files.NewDiscovery(workDir, "metrics", []string{".csv", ".xlsx"})
//	existing, err := discovery.FindMetricsFiles("data/incoming")
//
//	watcher, err := files.NewWatcher(dir, discovery, 500*time.Millisecond, logger)
//	if err := watcher.Start(ctx); err != nil {
//	    return err
//	}
//	defer watcher.Stop()
//	for path := range watcher.Files() {
//	    if _, err := files.WaitStable(ctx, path, 5, 200*time.Millisecond); err != nil {
//	        continue
//	    }
//	    // ingest path
//	}
package files
