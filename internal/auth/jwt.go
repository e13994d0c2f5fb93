package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"

	"starhub/protocol"
)

// ErrUnauthorized is returned by JWTAuthenticator.Authenticate when the
// bearer token is missing, malformed, expired, or does not name the
// connecting identity.
var ErrUnauthorized = errors.New("auth: unauthorized")

// Claims is the JWT claim set JWTAuthenticator expects: the identity kind
// and id being asserted, layered over the standard registered claims so
// expiry/issuer/subject validation comes for free from jwt/v5.
type Claims struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	jwt.RegisteredClaims
}

// JWTAuthenticator validates an HS256-signed bearer token carried as the
// "token" query parameter on the upgrade request, grounded on the teacher
// pack's amurg-ai-amurg hub auth.Service.validateJWT pattern.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator constructs a JWTAuthenticator with the given HMAC
// secret. A zero-length secret is rejected at construction by the caller
// (internal/app wiring), not here, so tests can still exercise the zero
// value deliberately.
func NewJWTAuthenticator(secret []byte) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret}
}

func (a *JWTAuthenticator) Authenticate(r *http.Request, id protocol.Identity) error {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		return ErrUnauthorized
	}

	claims, err := a.validate(tokenStr)
	if err != nil {
		return err
	}
	if claims.Kind != string(id.Kind) || claims.ID != id.ID {
		return ErrUnauthorized
	}
	return nil
}

func (a *JWTAuthenticator) validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, ErrUnauthorized
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func (a *JWTAuthenticator) Authorize(protocol.Identity, protocol.Envelope) bool { return true }
