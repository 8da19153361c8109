// Package cache keeps rendered health responses for a short TTL.
//
// It provides a Cache interface with an in-memory implementation, a
// request keyer that derives stable keys from a route and its query, TTL
// policies, and a Loader that coalesces concurrent misses so one render
// serves every waiting caller.
package cache
