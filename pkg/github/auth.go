package github

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication constants.
const (
	minTokenLength = 40  // classic GitHub tokens are 40 chars; fine-grained are longer
	maxTokenLength = 100 // anything longer is not a GitHub token
	maxAppID       = 999999999
	jwtLifetime    = 10 * time.Minute // GitHub App JWTs expire after 10 minutes max
)

// newTokenClient creates a client authenticated with a personal access
// token supplied by the caller.
func newTokenClient(_ context.Context, cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if err := validateToken(token); err != nil {
		return nil, err
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		token:      token,
		budget:     newBudget(),
		cache:      newRepoCache(cfg.CacheTTL),
	}, nil
}

// newAppAuthClient creates a client authenticated as a GitHub App.
func newAppAuthClient(_ context.Context, cfg Config) (*Client, error) {
	if err := validateAppID(cfg.AppID); err != nil {
		return nil, err
	}

	keyData, err := os.ReadFile(cfg.AppKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read app private key %q: %w", cfg.AppKeyPath, err)
	}

	jwtToken, err := generateJWT(cfg.AppID, keyData)
	if err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	slog.Info("Generated JWT for GitHub App", "component", "auth", "app_id", cfg.AppID)

	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		token:      jwtToken,
		appID:      cfg.AppID,
		privateKey: keyData,
		isAppAuth:  true,
		budget:     newBudget(),
		cache:      newRepoCache(cfg.CacheTTL),
	}, nil
}

func validateToken(token string) error {
	if token == "" {
		return fmt.Errorf("%w: no token provided", ErrAuth)
	}
	if len(token) < minTokenLength || len(token) > maxTokenLength {
		return fmt.Errorf("%w: token length %d outside expected range", ErrAuth, len(token))
	}
	return nil
}

func validateAppID(appID string) error {
	id, err := strconv.Atoi(appID)
	if err != nil {
		return fmt.Errorf("%w: app ID %q is not numeric", ErrAuth, appID)
	}
	if id <= 0 || id > maxAppID {
		return fmt.Errorf("%w: app ID %d out of range", ErrAuth, id)
	}
	return nil
}

// generateJWT generates a short-lived JWT for GitHub App authentication.
func generateJWT(appID string, privateKey []byte) (string, error) {
	block, _ := pem.Decode(privateKey)
	if block == nil {
		return "", errors.New("failed to parse PEM block containing the private key")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// Try PKCS8 format if PKCS1 fails
		parsedKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return "", fmt.Errorf("failed to parse private key: %w", err)
		}
		var ok bool
		key, ok = parsedKey.(*rsa.PrivateKey)
		if !ok {
			return "", errors.New("private key is not RSA")
		}
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(jwtLifetime).Unix(),
		"iss": appID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}
