// Package mongo provides MongoDB-backed implementations of the task store
// and the session history store. Build the low-level client via
// features/task/mongo/clients/mongo and pass it to NewStore or NewHistory so
// durable deployments persist task state outside the execution engine.
package mongo
