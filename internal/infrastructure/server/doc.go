// Package server assembles the Moonlit service: settings store and
// watcher, GameStream client, transport driver, session manager, event bus
// and the gin router that exposes them.
package server
