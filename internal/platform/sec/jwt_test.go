// Copyright (c) 2026 AetherCore contributors.

package sec

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// newTestTokenService generates a throwaway RSA keypair, writes it to PEM
// files in a temp directory, and constructs a TokenService around it.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}

	dir := t.TempDir()
	privPath := filepath.Join(dir, "private.pem")
	pubPath := filepath.Join(dir, "public.pem")

	privBytes := x509.MarshalPKCS1PrivateKey(key)
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes})
	if err := os.WriteFile(privPath, privPEM, 0o600); err != nil {
		t.Fatalf("write private key: %v", err)
	}

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("x509.MarshalPKIXPublicKey() error = %v", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})
	if err := os.WriteFile(pubPath, pubPEM, 0o600); err != nil {
		t.Fatalf("write public key: %v", err)
	}

	svc, err := NewTokenService(privPath, pubPath, "aethercore.test")
	if err != nil {
		t.Fatalf("NewTokenService() error = %v", err)
	}
	return svc
}

func TestTokenService_GenerateAndVerifyRoundTrips(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.GenerateAccessToken("player-1", "ash", string(RoleAdmin), time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	claims, err := svc.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if claims.UserID != "player-1" || claims.Username != "ash" || claims.Role != string(RoleAdmin) {
		t.Errorf("claims = %+v, want player-1/ash/admin", claims)
	}
	if !claims.IsAdmin() {
		t.Error("claims.IsAdmin() = false, want true")
	}
}

func TestTokenService_VerifyToken_RejectsExpiredToken(t *testing.T) {
	svc := newTestTokenService(t)

	token, err := svc.GenerateAccessToken("player-1", "ash", string(RoleOperator), -time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	if _, err := svc.VerifyToken(token); err == nil {
		t.Error("VerifyToken() should reject an already-expired token")
	}
}

func TestTokenService_VerifyToken_RejectsGarbage(t *testing.T) {
	svc := newTestTokenService(t)

	if _, err := svc.VerifyToken("not-a-real-jwt"); err == nil {
		t.Error("VerifyToken() should reject a malformed token string")
	}
}

func TestTokenService_VerifyToken_RejectsTokenFromAnotherKeypair(t *testing.T) {
	svc1 := newTestTokenService(t)
	svc2 := newTestTokenService(t)

	token, err := svc1.GenerateAccessToken("player-1", "ash", string(RoleOperator), time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	if _, err := svc2.VerifyToken(token); err == nil {
		t.Error("VerifyToken() should reject a token signed by a different key")
	}
}
