package auth

import (
	"fmt"
	"os"
)

var inviteSecret []byte

// InitInviteSecret loads the HMAC secret used to sign invitation tokens.
// Kept separate from the session JWT secret so either can rotate alone.
func InitInviteSecret() error {
	secret := os.Getenv("INVITE_SECRET")
	if secret == "" {
		return fmt.Errorf("INVITE_SECRET environment variable is not set")
	}
	inviteSecret = []byte(secret)
	return nil
}

func InviteSecret() []byte {
	return inviteSecret
}
