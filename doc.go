// Package syncpipe propagates domain records to an external reporting sink without losing them
// when the sink is unavailable.
//
// Typical flow:
//  1. After the domain record commits, call Pipeline.Sync with its denormalized Payload.
//  2. The Executor appends the payload to the Sink, retrying with bounded exponential backoff.
//  3. If every attempt fails, the Recorder persists a SyncFailure and requests a drain.
//  4. A Worker (or a Kafka listener) runs the Drainer, which re-sends every outstanding failure once,
//     deleting it on success and bumping its attempt counter on failure.
//
// Storage backends live in the memory, mysql and postgres packages. The sheets package provides a
// Google Sheets sink.
package syncpipe
