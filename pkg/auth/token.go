package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried in the access token. The subject is the user id; the
// core only ever sees that id, never credentials.
type Claims struct {
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Signer handles token generation and validation with RS256.
type Signer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
	ttl        time.Duration
}

// NewSigner creates a Signer from PEM-encoded keys (for the identity
// service that issues tokens).
func NewSigner(privateKeyPEM, publicKeyPEM []byte, issuer string, ttl time.Duration) (*Signer, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, errors.New("failed to parse private key PEM")
	}
	priv, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	pub, err := parsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}

	return &Signer{
		privateKey: priv,
		publicKey:  pub,
		issuer:     issuer,
		ttl:        ttl,
	}, nil
}

// NewSignerFromPublicKey creates a validate-only Signer (for services
// that consume identities issued elsewhere).
func NewSignerFromPublicKey(publicKeyPEM []byte, issuer string) (*Signer, error) {
	pub, err := parsePublicKey(publicKeyPEM)
	if err != nil {
		return nil, err
	}
	return &Signer{
		publicKey: pub,
		issuer:    issuer,
	}, nil
}

func parsePublicKey(publicKeyPEM []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("failed to parse public key PEM")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return rsaPub, nil
}

// GenerateToken creates a signed access token for the given user.
func (s *Signer) GenerateToken(userID uuid.UUID, email, fullName string) (string, error) {
	if s.privateKey == nil {
		return "", errors.New("signer has no private key")
	}

	now := time.Now()
	claims := &Claims{
		FullName: fullName,
		Email:    email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies the JWT signature.
func (s *Signer) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.publicKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
