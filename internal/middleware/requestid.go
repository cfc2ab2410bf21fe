package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
)

// RequestID returns a middleware that stamps every response with a random
// X-Request-Id header so individual lookups can be correlated in logs.
func RequestID() Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			id := make([]byte, 8)
			if _, err := rand.Read(id); err != nil {
				log.Printf("middleware: request id generation failed: %v", err)
			}
			w.Header().Set("X-Request-Id", hex.EncodeToString(id))
			next(w, r)
		}
	}
}
