// Package watcher watches an inbox directory and hands new or changed
// documents to an ingestion handler.
//
// fsnotify is used where available, with a polling fallback for
// filesystems that do not deliver events (network mounts, some container
// volumes). Events are debounced so that a file being copied in is handled
// once, after its last write.
//
// Usage:
//
//	w, err := watcher.New(watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	inbox := watcher.NewInbox(w, handle, logger)
//	return inbox.Run(ctx, "/path/to/inbox")
package watcher
