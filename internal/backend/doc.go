// Package backend connects the router to the engine that executes models.
//
// Two variants exist:
//
//   - sharded: the engine is already running and listens on a unix socket.
//     Capacity (input/total/batch limits, chunking) is discovered at connect
//     time by warming the engine up with the requested limits.
//   - executor: the router starts an executor worker process. Limits are
//     static and the worker needs a fast tokenizer.
//
// Files:
//   - backend.go: Variant, Handle, Capacity and variant lookup
//   - sharded.go: unix socket client for the sharded engine
//   - executor.go: executor worker process management
package backend
