package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kset/verifikator/internal/config"
)

// ReceiptClaims is the payload of a verification receipt: a signed statement
// that the given email was confirmed for the given attempt, verifiable
// offline by downstream consumers.
type ReceiptClaims struct {
	State  string `json:"state"`
	Email  string `json:"email"`
	Origin string `json:"origin"`
	jwt.RegisteredClaims
}

// Provider signs and verifies RS256 verification receipts.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.ReceiptPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.ReceiptPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{privateKey: privKey, publicKey: pubKey, expiry: cfg.ReceiptExpiry}, nil
}

func (p *Provider) Sign(state, email, origin string) (string, error) {
	claims := ReceiptClaims{
		State:  state,
		Email:  email,
		Origin: origin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(p.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(p.privateKey)
}

func (p *Provider) Verify(tokenStr string) (*ReceiptClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &ReceiptClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*ReceiptClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid receipt claims")
	}
	return claims, nil
}
