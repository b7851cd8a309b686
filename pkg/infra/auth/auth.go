// Package auth produces the credential artifacts of a deployment: the
// bcrypt admin password hash consumed by the reverse proxy's basic-auth
// middleware and by the identity provider.
package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"
)

// hashCost matches the work factor htpasswd uses for bcrypt entries.
const hashCost = 10

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// WriteSecretFile writes content to path with owner-only permissions,
// creating parent directories as needed. An existing file is replaced
// and re-chmodded so a previously loose mode does not survive.
func WriteSecretFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create secret directory: %w", err)
	}
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return fmt.Errorf("write secret file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("chmod secret file: %w", err)
	}
	return nil
}

// WriteIdPEnv writes the identity provider's env file carrying the admin
// password hash into outDir/dex.
func WriteIdPEnv(outDir, passwordHash string) error {
	path := filepath.Join(outDir, "dex", "dex.env")
	content := "ADMIN_PASSHASH=" + passwordHash + "\n"
	if err := WriteSecretFile(path, []byte(content)); err != nil {
		return fmt.Errorf("write identity provider env: %w", err)
	}
	return nil
}
