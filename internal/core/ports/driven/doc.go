// Package driven defines the interfaces the harvest core depends on:
// history sources and their wire-protocol clients, checkpoint
// persistence, and the destination bulk write capability. Adapters
// under internal/adapters/driven implement them.
package driven
