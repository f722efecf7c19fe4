// Package auth verifies Firebase ID tokens and carries the authenticated
// user through the request context.
package auth

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// UserClaims is the authenticated identity attached to each request.
type UserClaims struct {
	UID         string
	Email       string
	DisplayName string
	Verified    bool
}

// FirebaseAuth verifies Firebase ID tokens against the project's signing keys.
type FirebaseAuth struct {
	client *fbauth.Client
}

// NewFirebaseAuth initializes the Firebase app and its auth client. An empty
// credentialsFile falls back to application default credentials, which is how
// the service authenticates on Cloud Run.
func NewFirebaseAuth(ctx context.Context, credentialsFile string) (*FirebaseAuth, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating auth client: %w", err)
	}
	return &FirebaseAuth{client: client}, nil
}

// VerifyToken checks the ID token signature and expiry and maps its claims
// onto UserClaims.
func (f *FirebaseAuth) VerifyToken(ctx context.Context, idToken string) (*UserClaims, error) {
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("verifying ID token: %w", err)
	}
	return claimsFromToken(token), nil
}

// claimsFromToken lifts the loosely-typed Firebase claim map into UserClaims.
// Missing or mistyped claims read as zero values rather than failing.
func claimsFromToken(token *fbauth.Token) *UserClaims {
	claims := &UserClaims{UID: token.UID}
	claims.Email, _ = token.Claims["email"].(string)
	claims.DisplayName, _ = token.Claims["name"].(string)
	claims.Verified, _ = token.Claims["email_verified"].(bool)
	return claims
}

// ExtractTokenFromHeader pulls the bearer token out of an Authorization
// header value.
func ExtractTokenFromHeader(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("authorization header is required")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", fmt.Errorf("authorization header must be a bearer token")
	}
	return token, nil
}
