// Package health provides the gateway's liveness and readiness probes.
//
// Liveness answers as long as the process serves HTTP. Readiness runs
// the registered dependency checks (upstream reachability, token store,
// limiter backend) and fails when any of them does, so load balancers
// stop routing to an instance whose dependencies are gone.
package health
