package googlesheets

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// NewWithJSONKeyFile creates a Store using a service account JSON key file.
// An empty path falls back to GOOGLE_APPLICATION_CREDENTIALS.
func NewWithJSONKeyFile(ctx context.Context, config Config, jsonPath string) (*Store, error) {
	if jsonPath == "" {
		jsonPath = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
		if jsonPath == "" {
			return nil, fmt.Errorf("no JSON key file path provided and GOOGLE_APPLICATION_CREDENTIALS not set")
		}
	}

	jsonData, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON key file: %w", err)
	}
	return NewWithJSONKeyData(ctx, config, jsonData)
}

// NewWithJSONKeyData creates a Store from service account JSON key data,
// e.g. credentials delivered through an environment variable.
func NewWithJSONKeyData(ctx context.Context, config Config, jsonData []byte) (*Store, error) {
	creds, err := google.CredentialsFromJSON(ctx, jsonData, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return New(ctx, config, option.WithCredentials(creds))
}

// NewWithServiceAccountKey creates a Store from a service account email and
// private key pair.
func NewWithServiceAccountKey(ctx context.Context, config Config, email, privateKey string) (*Store, error) {
	jwtConfig := &jwt.Config{
		Email:      email,
		PrivateKey: []byte(privateKey),
		Scopes:     []string{sheets.SpreadsheetsScope},
		TokenURL:   google.JWTTokenURL,
	}
	return New(ctx, config, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
}

// NewWithDefaultCredentials creates a Store using Application Default
// Credentials: GOOGLE_APPLICATION_CREDENTIALS, gcloud auth
// application-default, or the GCE metadata service, in that order.
func NewWithDefaultCredentials(ctx context.Context, config Config) (*Store, error) {
	tokenSource, err := google.DefaultTokenSource(ctx, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to get default token source: %w", err)
	}
	return New(ctx, config, option.WithTokenSource(tokenSource))
}
