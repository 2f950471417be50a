/*
Package resilience provides a circuit breaker for calls to streaming hosts.

# Overview

A host that is powered off or asleep makes every control request wait for
its full timeout. The breaker remembers recent transport failures and
fails fast while the host looks unreachable, so a UI polling for
applications does not stall.

# Usage

	breaker := resilience.New("host:192.168.1.20", resilience.Settings{
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			var herr *streaming.HostError
			return err == nil || errors.As(err, &herr)
		},
	})

	err := breaker.Do(func() error {
		return client.get(ctx, "serverinfo", &info)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
