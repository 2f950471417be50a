/*
Package streaming manages the lifecycle of a single game-streaming session.

# Overview

A Manager owns at most one session. Begin snapshots the current settings,
spawns a worker goroutine and returns. The worker walks the session
through its phases:

	none -> connecting -> streaming -> disconnecting -> none

Connecting launches the app on the host and starts the transport. A
session interrupted while connecting never reports streaming.
Streaming blocks until Interrupt is called or the transport reports that
the connection ended. Disconnecting stops the transport and quits the app
on the host; failures there are logged and posted but never stop the
session from reaching none.

The phase machine is a pure table (see transition); the worker executes
the effects each step returns.

# Failures

Launch and transport failures are classified into a Kind and posted to the
Notifier as a single "session.failed" event. HostUnreachable is reported
synchronously by Begin and BeginAddress, and the phase never leaves none.

# Usage

	mgr := streaming.NewManager(resolver, transport, store, logger).
		WithNotifier(bus).
		WithInput(pads).
		WithMetrics(metrics)

	if _, err := mgr.BeginAddress(ctx, "192.168.1.20", 881448767); err != nil {
		return err
	}

	// later
	mgr.Interrupt()
	mgr.WaitForStop()
*/
package streaming
