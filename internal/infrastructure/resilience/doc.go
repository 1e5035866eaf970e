/*
Package resilience provides the circuit breakers that guard outbound fetches.

A Breaker trips after ReadyToTrip approves a failure streak, rejects calls
while open, and lets MaxRequests probes through once Timeout has passed:

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open

Group keys breakers by host:

	hosts := resilience.NewGroup(resilience.Settings{Timeout: 30 * time.Second})
	err := hosts.Get(u.Host).Execute(func() error {
		return fetch(u)
	})
*/
package resilience
