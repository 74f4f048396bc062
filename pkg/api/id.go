package api

import (
	"crypto/rand"
	"math/big"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	conversationIDPrefix = "conv_"
	callIDPrefix         = "call_"
)

// NewConversationID generates a conversation ID with the "conv_" prefix
// followed by 24 cryptographically random alphanumeric characters. Used
// when a caller starts an exchange without supplying a conversation ID.
// Caller-supplied conversation IDs are free-form and need not match.
func NewConversationID() string {
	return conversationIDPrefix + randomAlphanumeric(idLength)
}

// NewCallID generates a tool-call ID with the "call_" prefix followed by
// 24 cryptographically random alphanumeric characters. Used when an
// upstream omits the call ID on a tool invocation.
func NewCallID() string {
	return callIDPrefix + randomAlphanumeric(idLength)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
