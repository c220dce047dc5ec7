package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// GenerateSecret generates a cryptographically secure random hex secret
func GenerateSecret(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateServiceSecrets generates the JWT signing secret and the gateway
// callback signing secret
func GenerateServiceSecrets() (jwtSecret, gatewaySecret string, err error) {
	jwtSecret, err = GenerateSecret(32) // 256-bit
	if err != nil {
		return "", "", fmt.Errorf("failed to generate jwt secret: %w", err)
	}

	gatewaySecret, err = GenerateSecret(32)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate gateway secret: %w", err)
	}

	return jwtSecret, gatewaySecret, nil
}
