package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AssertionIssuer   = "retrocast-dispatcher"
	AssertionAudience = "retrocast-worker"
)

// ErrAssertionInvalid is returned for any assertion that fails verification.
var ErrAssertionInvalid = errors.New("invalid worker assertion")

// AssertionSigner issues and checks the short token the dispatcher embeds in
// each queued task so the worker only runs jobs the dispatcher created.
type AssertionSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewAssertionSigner(secret string, ttl time.Duration) (*AssertionSigner, error) {
	if secret == "" {
		return nil, errors.New("worker assertion secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AssertionSigner{secret: []byte(secret), ttl: ttl}, nil
}

type assertionClaims struct {
	UserID  string `json:"uid"`
	VideoID string `json:"vid"`
	jwt.RegisteredClaims
}

// Sign returns an HS256 token whose subject is jobID, bound to the owner and
// source video of the job.
func (s *AssertionSigner) Sign(jobID, userID, videoID string) (string, error) {
	now := time.Now()
	claims := assertionClaims{
		UserID:  userID,
		VideoID: videoID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    AssertionIssuer,
			Audience:  jwt.ClaimStrings{AssertionAudience},
			Subject:   jobID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature, issuer, audience and expiry, then that the token
// was issued for exactly this job, user and video.
func (s *AssertionSigner) Verify(token, jobID, userID, videoID string) error {
	if token == "" {
		return fmt.Errorf("%w: missing", ErrAssertionInvalid)
	}
	parsed, err := jwt.ParseWithClaims(token, &assertionClaims{}, hmacKey(string(s.secret)),
		jwt.WithIssuer(AssertionIssuer),
		jwt.WithAudience(AssertionAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAssertionInvalid, err)
	}
	claims, ok := parsed.Claims.(*assertionClaims)
	if !ok || !parsed.Valid {
		return ErrAssertionInvalid
	}
	if claims.Subject != jobID {
		return fmt.Errorf("%w: subject mismatch", ErrAssertionInvalid)
	}
	if claims.UserID != userID || claims.VideoID != videoID {
		return fmt.Errorf("%w: payload mismatch", ErrAssertionInvalid)
	}
	return nil
}
