// Package kafka carries drain requests between processes over a Kafka topic.
//
// Publisher is a syncpipe.Trigger for the process that records failures; Listener runs
// a drain pass for every request it reads and commits the message afterwards.
package kafka
