// Package auth turns bearer tokens into core.Actor values. Tokens are checked
// by a Verifier (Firebase ID tokens in production, a static table for local
// use) and the uid is resolved against the group's user profiles.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"

	"shgbook/internal/core"
)

// ErrUnauthenticated marks requests without a usable credential.
var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier checks a bearer token and returns the account uid it belongs to.
type Verifier interface {
	Verify(ctx context.Context, token string) (uid string, err error)
}

func unauthenticated(msg string, err error) error {
	if err == nil {
		err = ErrUnauthenticated
	} else {
		err = fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return &core.Error{Kind: core.KindAuthorization, Op: "authenticate", Msg: msg, Err: err}
}

// StaticVerifier maps fixed tokens to uids. Meant for local development and tests.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier copies tokens (token -> uid).
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	cp := make(map[string]string, len(tokens))
	for k, v := range tokens {
		cp[k] = v
	}
	return &StaticVerifier{tokens: cp}
}

// Verify compares against every configured token in constant time.
func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	var uid string
	for known, owner := range v.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			uid = owner
		}
	}
	if uid == "" {
		return "", unauthenticated("invalid token", nil)
	}
	return uid, nil
}

// IDTokenVerifier is the part of the Firebase auth client used here.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier validates Firebase ID tokens.
type FirebaseVerifier struct {
	client IDTokenVerifier
}

// NewFirebaseVerifier builds a verifier from an initialised Firebase app.
func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	if app == nil {
		return nil, errors.New("firebase app is required for firebase auth")
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

// NewFirebaseVerifierWithClient wraps an existing token verifier.
func NewFirebaseVerifierWithClient(client IDTokenVerifier) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (string, error) {
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", unauthenticated("invalid token", err)
	}
	if decoded == nil || decoded.UID == "" {
		return "", unauthenticated("invalid token", nil)
	}
	return decoded.UID, nil
}
