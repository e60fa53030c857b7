package middleware

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/shinyyama/unimarket-backend/internal/repository"
)

// FirebaseVerifier accepts Firebase ID tokens and maps the Firebase UID onto a
// marketplace user through users.firebase_uid.
type FirebaseVerifier struct {
	authClient *auth.Client
	users      repository.UserRepository
}

// NewFirebaseVerifier uses application default credentials unless credentialsFile is set.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string, users repository.UserRepository) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, err
	}
	return &FirebaseVerifier{authClient: client, users: users}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, tokenStr string) (*Identity, error) {
	token, err := v.authClient.VerifyIDToken(ctx, tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	u, err := v.users.FindByFirebaseUID(ctx, token.UID)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown firebase uid", ErrInvalidToken)
	}
	return &Identity{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}
