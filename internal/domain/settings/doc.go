// Package settings provides the streaming configuration object consumed by
// the session manager.
//
// Components:
//   - Settings: stream parameters plus host, input, video and audio options
//   - Store: thread-safe holder of the current global settings
//   - Load/Save: TOML or YAML settings file, chosen by extension
//   - Watcher: reloads the settings file into a Store on change
//
// Snapshot Semantics:
//
// Settings.Clone returns an independent copy. The session manager clones the
// store's value when a session begins, so edits made while a session is
// running only affect the next session.
//
// Example Usage:
//
//	store := settings.NewStore(settings.Default())
//	if s, err := settings.Load("moonlit.toml"); err == nil {
//	    store.Set(s)
//	}
//	snapshot := store.Get()
package settings
