package middleware

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/threadline/backend/internal/models"
)

// IDTokenVerifier is the part of the Firebase auth client we use
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseUserLookup maps a Firebase UID onto a local user
type FirebaseUserLookup interface {
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
}

// FirebaseVerifier accepts Firebase ID tokens of known users
type FirebaseVerifier struct {
	client IDTokenVerifier
	users  FirebaseUserLookup
}

// NewFirebaseVerifier creates a FirebaseVerifier
func NewFirebaseVerifier(client IDTokenVerifier, users FirebaseUserLookup) *FirebaseVerifier {
	return &FirebaseVerifier{client: client, users: users}
}

// Verify implements TokenVerifier
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Viewer, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	user, err := v.users.GetUserByFirebaseUID(ctx, token.UID)
	if err != nil {
		return nil, fmt.Errorf("%w: no user for firebase uid %s", ErrInvalidToken, token.UID)
	}
	return &Viewer{UserID: user.ID}, nil
}
