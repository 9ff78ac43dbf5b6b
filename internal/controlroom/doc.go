// Package controlroom implements the server-side counterpart to the
// subscription engine: the TopicManager (per-topic subscriber sets) and the
// ControlRoom worker that fans out tailed records to those subscribers and
// applies Metadata (subscribe/unsubscribe) requests from the tower.
package controlroom
