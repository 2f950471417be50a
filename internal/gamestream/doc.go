/*
Package gamestream talks to GameStream-compatible hosts (GeForce Experience
or Sunshine) over their HTTP control API.

# Overview

Host implements streaming.Host and streaming.AppCatalog on top of a shared
Client. The client adds rate limiting, a per-host circuit breaker, retries
for idempotent queries and request metrics. Responses are small XML
documents:

	<root status_code="200">
	  <hostname>DESKTOP</hostname>
	  <currentgame>0</currentgame>
	  ...
	</root>

A status_code other than 200 becomes a *streaming.HostError carrying the
host's status_message.

# Launch

StartApp validates the requested mode against the host's advertised
display modes, then calls /launch when the host is idle or /resume when it
is already running the requested app. Launching while another app runs is
refused with CodeWrongState.

# Usage

	client := gamestream.NewClient(gamestream.DefaultOptions(), logger)
	resolver := gamestream.NewResolver(client, logger)

	host, err := resolver.Resolve(ctx, "192.168.1.20")
*/
package gamestream
