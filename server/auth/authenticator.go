package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/llamamind/mindmap/store"
)

const (
	// Issuer is the issuer of the access tokens.
	Issuer = "mindmap"
	// AccessTokenCookieName is the cookie carrying the access token for browser clients.
	AccessTokenCookieName = "mindmap.access-token"
)

var (
	ErrMissingToken = errors.New("missing access token")
	ErrInvalidToken = errors.New("invalid access token")
)

// ClaimsMessage is the payload of an access token.
type ClaimsMessage struct {
	Username string `json:"name"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies HS256 access tokens.
type Authenticator struct {
	store  *store.Store
	secret string
}

func NewAuthenticator(store *store.Store, secret string) *Authenticator {
	return &Authenticator{
		store:  store,
		secret: secret,
	}
}

// GenerateAccessToken signs a token for user that expires after duration.
func (a *Authenticator) GenerateAccessToken(user *store.User, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &ClaimsMessage{
		Username: user.Username,
		Role:     user.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   strconv.Itoa(int(user.ID)),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(a.secret))
	if err != nil {
		return "", errors.Wrap(err, "failed to sign access token")
	}
	return signed, nil
}

// ParseAccessToken verifies the signature and expiry and returns the user id.
func (a *Authenticator) ParseAccessToken(tokenString string) (int32, *ClaimsMessage, error) {
	claims := &ClaimsMessage{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(a.secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Issuer))
	if err != nil {
		return 0, nil, errors.Wrap(ErrInvalidToken, err.Error())
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 32)
	if err != nil {
		return 0, nil, errors.Wrap(ErrInvalidToken, "malformed subject")
	}
	return int32(userID), claims, nil
}

// ExtractToken reads the bearer token from the Authorization header, falling
// back to the access token cookie.
func ExtractToken(authHeader, cookieHeader string) string {
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	if cookieHeader == "" {
		return ""
	}
	cookies, err := http.ParseCookie(cookieHeader)
	if err != nil {
		return ""
	}
	for _, cookie := range cookies {
		if cookie.Name == AccessTokenCookieName {
			return cookie.Value
		}
	}
	return ""
}

// AuthenticateToUser resolves the request credentials to a stored user.
func (a *Authenticator) AuthenticateToUser(ctx context.Context, authHeader, cookieHeader string) (*store.User, error) {
	token := ExtractToken(authHeader, cookieHeader)
	if token == "" {
		return nil, ErrMissingToken
	}
	userID, _, err := a.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}
	user, err := a.store.GetUser(ctx, &store.FindUser{ID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user")
	}
	if user == nil {
		return nil, errors.Wrapf(ErrInvalidToken, "user %d not found", userID)
	}
	return user, nil
}
