package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// googleIssuers are the accepted issuers of push-delivery OIDC tokens.
var googleIssuers = []string{"https://accounts.google.com", "accounts.google.com"}

// PushVerifier authenticates HTTP task deliveries. The queue signs each
// request with an OIDC token for a service account; the token's audience
// must be this worker's base URL.
type PushVerifier struct {
	keyfunc        jwt.Keyfunc
	close          func()
	audience       string
	serviceAccount string
}

// NewPushVerifier fetches keys from jwksURL. An empty audience disables
// verification, which is only meant for local development.
func NewPushVerifier(jwksURL, audience, serviceAccount string) (*PushVerifier, error) {
	if audience == "" {
		return &PushVerifier{}, nil
	}
	jwks, stop, err := newKeyfunc(jwksURL)
	if err != nil {
		return nil, err
	}
	return &PushVerifier{
		keyfunc:        jwks.Keyfunc,
		close:          stop,
		audience:       audience,
		serviceAccount: serviceAccount,
	}, nil
}

// NewPushVerifierWithKeyfunc is used when keys come from somewhere other than a JWKS URL.
func NewPushVerifierWithKeyfunc(kf jwt.Keyfunc, audience, serviceAccount string) *PushVerifier {
	return &PushVerifier{keyfunc: kf, audience: audience, serviceAccount: serviceAccount}
}

func (v *PushVerifier) Enabled() bool {
	return v != nil && v.audience != ""
}

// Verify checks an Authorization header value.
func (v *PushVerifier) Verify(authHeader string) error {
	if !v.Enabled() {
		return nil
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return fmt.Errorf("missing bearer token")
	}

	claims, err := validateClaims(parts[1], v.keyfunc, "", v.audience)
	if err != nil {
		return err
	}

	iss, _ := claims.GetIssuer()
	if !contains(googleIssuers, iss) {
		return fmt.Errorf("unexpected issuer %q", iss)
	}
	if v.serviceAccount != "" {
		if !claims.EmailVerified || claims.Email != v.serviceAccount {
			return fmt.Errorf("unexpected caller %q", claims.Email)
		}
	}
	return nil
}

func (v *PushVerifier) Close() {
	if v != nil && v.close != nil {
		v.close()
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
