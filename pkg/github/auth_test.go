package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestValidateAppID_Valid(t *testing.T) {
	tests := []struct {
		name  string
		appID string
	}{
		{"single digit", "1"},
		{"multiple digits", "123456"},
		{"max valid", "999999999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateAppID(tt.appID); err != nil {
				t.Errorf("validateAppID(%q) unexpected error: %v", tt.appID, err)
			}
		})
	}
}

func TestValidateAppID_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		appID string
	}{
		{"empty", ""},
		{"non-numeric", "abc"},
		{"negative", "-1"},
		{"zero", "0"},
		{"too large", "9999999999"},
		{"with spaces", "123 456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAppID(tt.appID)
			if err == nil {
				t.Errorf("validateAppID(%q) expected error, got nil", tt.appID)
			}
			if !errors.Is(err, ErrAuth) {
				t.Errorf("validateAppID(%q) error should wrap ErrAuth, got %v", tt.appID, err)
			}
		})
	}
}

func TestValidateToken_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"too short", "abc"},
		{"just under min", "ghp_x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := validateToken(tt.token); err == nil {
				t.Errorf("validateToken(%q) expected error, got nil", tt.token)
			}
		})
	}
}

// testKeyPEM generates a throwaway RSA key and returns it PEM-encoded in
// the given format along with the public half for signature checks.
func testKeyPEM(t *testing.T, format string) ([]byte, *rsa.PublicKey) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	var block *pem.Block
	switch format {
	case "pkcs1":
		block = &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}
	case "pkcs8":
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			t.Fatalf("failed to marshal PKCS8 key: %v", err)
		}
		block = &pem.Block{Type: "PRIVATE KEY", Bytes: der}
	default:
		t.Fatalf("unknown key format %q", format)
	}
	return pem.EncodeToMemory(block), &key.PublicKey
}

func TestGenerateJWT_SignedClaims(t *testing.T) {
	for _, format := range []string{"pkcs1", "pkcs8"} {
		t.Run(format, func(t *testing.T) {
			keyPEM, pub := testKeyPEM(t, format)

			signed, err := generateJWT("123456", keyPEM)
			if err != nil {
				t.Fatalf("generateJWT failed: %v", err)
			}

			claims := jwt.MapClaims{}
			parsed, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (any, error) {
				if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
					return nil, errors.New("unexpected signing method")
				}
				return pub, nil
			})
			if err != nil {
				t.Fatalf("failed to parse generated JWT: %v", err)
			}
			if !parsed.Valid {
				t.Fatal("generated JWT failed signature verification")
			}
			if iss, _ := claims["iss"].(string); iss != "123456" {
				t.Errorf("expected issuer 123456, got %v", claims["iss"])
			}

			iat, _ := claims["iat"].(float64)
			exp, _ := claims["exp"].(float64)
			if lifetime := time.Duration(exp-iat) * time.Second; lifetime != jwtLifetime {
				t.Errorf("expected %v lifetime, got %v", jwtLifetime, lifetime)
			}
		})
	}
}

func TestGenerateJWT_BadKey(t *testing.T) {
	if _, err := generateJWT("123456", []byte("not a pem block")); err == nil {
		t.Error("expected error for non-PEM input")
	}

	garbage := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: []byte("garbage")})
	if _, err := generateJWT("123456", garbage); err == nil {
		t.Error("expected error for undecodable key bytes")
	}
}

func TestNewAppAuthClient(t *testing.T) {
	keyPEM, _ := testKeyPEM(t, "pkcs1")
	keyPath := filepath.Join(t.TempDir(), "app.pem")
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	client, err := newAppAuthClient(context.Background(), Config{
		AppID:      "123456",
		AppKeyPath: keyPath,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !client.isAppAuth {
		t.Error("expected isAppAuth to be true")
	}
	if client.appID != "123456" {
		t.Errorf("expected app ID 123456, got %q", client.appID)
	}
	if client.token == "" {
		t.Error("expected a generated JWT token")
	}
}

func TestNewAppAuthClient_Invalid(t *testing.T) {
	if _, err := newAppAuthClient(context.Background(), Config{AppID: "abc"}); !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth for non-numeric app ID, got %v", err)
	}

	if _, err := newAppAuthClient(context.Background(), Config{
		AppID:      "123456",
		AppKeyPath: filepath.Join(t.TempDir(), "missing.pem"),
	}); err == nil {
		t.Error("expected error for missing key file")
	}
}
