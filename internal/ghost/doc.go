// Package ghost owns the cooperative actor runtime.
//
// Ownership boundary:
// - request/response correlation across actor boundaries
//
// - single-consumption message envelopes
//
// - detach/reattach of owned children during process()
//
// Lifecycle order:
// - NewChannel -> Publish/Request -> Process -> Drain -> Respond
//
// - every Process call is synchronous and returns WorkWasDone; the driver
// decides polling cadence.
//
// Children never reference their parent. Upward traffic only travels
// through the child's Endpoint.
//
// Logic faults (double take, double detach, reentrant process, double
// respond) panic. Correlation and domain failures are returned as errors.
package ghost
