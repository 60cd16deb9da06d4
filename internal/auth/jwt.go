package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrInvalidToken wraps every token verification failure.
var ErrInvalidToken = errors.New("invalid token")

// JWTManager signs and validates the bearer tokens handed out at login.
type JWTManager struct {
	keys      map[string]string // kid -> HMAC secret; single-key managers use the empty kid
	activeKid string            // kid used for signing new tokens
	duration  time.Duration     // How long tokens are valid (1 hour by default)
	now       func() time.Time
}

// Claims is the custom JWT payload (user id + username).
type Claims struct {
	UserID               string `json:"id"`       // MongoDB ObjectID converted to hex string
	Username             string `json:"username"` // Username the token was issued to
	jwt.RegisteredClaims        // Includes ExpiresAt, IssuedAt, etc.
}

// NewJWTManager returns a JWTManager signing with a single secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return &JWTManager{
		keys:     map[string]string{"": secretKey}, // Secret from environment variable
		duration: duration,                       // Token validity period
		now:      time.Now,
	}
}

// NewJWTManagerFromKeys returns a manager that signs with activeKid and
// accepts tokens signed by any of the supplied keys, so secrets can be
// rotated without invalidating tokens already handed out.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	// Copy so later changes to the caller's map don't affect verification
	cp := make(map[string]string, len(keys))
	for k, v := range keys {
		cp[k] = v
	}
	return &JWTManager{
		keys:      cp,
		activeKid: activeKid, // New tokens carry this kid in their header
		duration:  duration,
		now:       time.Now,
	}
}

// ParseKeys parses a "kid:secret,kid2:secret2" list.
func ParseKeys(s string) (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// Split on the first colon only; secrets may contain colons
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid key entry %q", p)
		}
		keys[parts[0]] = parts[1]
	}
	if len(keys) == 0 {
		return nil, errors.New("no keys supplied")
	}
	return keys, nil
}

// WithClock replaces the time source used for issuing and verifying tokens.
func (m *JWTManager) WithClock(now func() time.Time) *JWTManager {
	m.now = now
	return m
}

// GenerateToken issues a signed JWT token for a user.
func (m *JWTManager) GenerateToken(userID bson.ObjectID, username string) (string, time.Time, error) {
	// Look up the secret for the active key id
	secret, ok := m.keys[m.activeKid]
	if !ok {
		return "", time.Time{}, fmt.Errorf("no signing key for kid %q", m.activeKid)
	}

	// Calculate when this token will expire (current time + duration)
	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.duration)

	// Create claims struct with user info and expiration
	claims := &Claims{
		UserID:   userID.Hex(), // Convert MongoDB ObjectID to hex string for JSON
		Username: username,     // Username from database
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt), // Set expiration time
			IssuedAt:  jwt.NewNumericDate(issuedAt),  // Set creation time
			Subject:   userID.Hex(),
		},
	}

	// Create new token with HS256 signing method (HMAC with SHA-256)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.activeKid != "" {
		// Tell verifiers which secret signed this token
		token.Header["kid"] = m.activeKid
	}

	// Sign the token using the secret key to create the final JWT string
	tokenString, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err // Return empty string and zero time on error
	}

	// Return the signed token string, expiration time, and no error
	return tokenString, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	// Initialize empty Claims struct to hold decoded data
	claims := &Claims{}

	// ParseWithClaims parses the token and validates the signature
	// keyFunc picks the secret matching the token's kid header
	token, err := jwt.ParseWithClaims(tokenString, claims, m.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),      // Same clock used when issuing
		jwt.WithExpirationRequired(), // Reject tokens without an exp claim
	)

	// Check if there was an error during parsing (malformed, expired, etc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	// Verify the token is valid (signature matches, not expired)
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	// Return extracted claims so handler can identify the user
	return claims, nil
}

func (m *JWTManager) keyFunc(token *jwt.Token) (interface{}, error) {
	// Security check: ensure token was signed with HMAC (not asymmetric key)
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	// Tokens issued without a kid map to the empty key id
	kid, _ := token.Header["kid"].(string)
	secret, ok := m.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	// Return the secret key used to verify the signature
	return []byte(secret), nil
}
