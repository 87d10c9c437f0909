package utils

import (
	"crypto/rand"
	"log"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// codeAlphabet leaves out 0/O and 1/I so codes read back cleanly over WhatsApp
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateID generates a new UUID v4 string
func GenerateID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		log.Printf("Failed to generate UUID: %v", err)
		return ""
	}
	return id.String()
}

// GenerateToken returns an opaque URL-safe token for confirm/unsubscribe links
func GenerateToken() string {
	return strings.ReplaceAll(GenerateID(), "-", "")
}

// IsValidUUID checks if the string is a valid UUID
func IsValidUUID(u string) bool {
	_, err := uuid.Parse(u)
	return err == nil
}

// RandomCode returns n characters from codeAlphabet
func RandomCode(n int) string {
	var sb strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			log.Printf("Failed to read random code: %v", err)
			idx = big.NewInt(int64(i % len(codeAlphabet)))
		}
		sb.WriteByte(codeAlphabet[idx.Int64()])
	}
	return sb.String()
}
