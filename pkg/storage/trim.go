package storage

import "github.com/dirigent-dev/dirigent/pkg/api"

// TrimTranscript drops the oldest messages until the transcript fits
// within maxMessages. Messages are dropped two at a time so a user
// message and the assistant reply that answered it leave the transcript
// together. Zero or negative maxMessages means no limit.
func TrimTranscript(messages []api.Message, maxMessages int) []api.Message {
	if maxMessages <= 0 || len(messages) <= maxMessages {
		return messages
	}
	drop := len(messages) - maxMessages
	if drop%2 != 0 {
		drop++
	}
	if drop > len(messages) {
		drop = len(messages)
	}
	return messages[drop:]
}
