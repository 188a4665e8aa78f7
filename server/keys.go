package server

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"math/big"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// KeyPair is the key the server signs session tokens with.
type KeyPair struct {
	KeyID      string
	PrivateKey crypto.PrivateKey
	PublicKey  crypto.PublicKey
	Algorithm  string // RS256 or ES256
}

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key
type JWK struct {
	Kty string `json:"kty"`
	Use string `json:"use,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg,omitempty"`

	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// EC
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

func GenerateRSAKeyPair(keyID string, bits int) (*KeyPair, error) {
	if bits < 2048 {
		bits = 2048
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate RSA key")
	}

	return &KeyPair{
		KeyID:      keyID,
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		Algorithm:  "RS256",
	}, nil
}

func GenerateECDSAKeyPair(keyID string) (*KeyPair, error) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate ECDSA key")
	}

	return &KeyPair{
		KeyID:      keyID,
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey,
		Algorithm:  "ES256",
	}, nil
}

func (kp *KeyPair) SigningMethod() jwt.SigningMethod {
	if kp.Algorithm == "ES256" {
		return jwt.SigningMethodES256
	}
	return jwt.SigningMethodRS256
}

// Sign issues a token for claims with the key id in its header.
func (kp *KeyPair) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(kp.SigningMethod(), claims)
	t.Header["kid"] = kp.KeyID

	signed, err := t.SignedString(kp.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "[KeyPair.Sign]")
	}
	return signed, nil
}

// ToJWK converts the public key to JWK format
func (kp *KeyPair) ToJWK() (*JWK, error) {
	jwk := &JWK{
		Kid: kp.KeyID,
		Use: "sig",
		Alg: kp.Algorithm,
	}

	switch key := kp.PublicKey.(type) {
	case *rsa.PublicKey:
		jwk.Kty = "RSA"
		jwk.N = base64.RawURLEncoding.EncodeToString(key.N.Bytes())
		jwk.E = base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes())
	case *ecdsa.PublicKey:
		pub, err := key.ECDH()
		if err != nil {
			return nil, errors.Wrap(err, "[KeyPair.ToJWK]")
		}
		// Uncompressed point: 0x04 || X || Y
		point := pub.Bytes()
		size := (len(point) - 1) / 2
		jwk.Kty = "EC"
		jwk.Crv = key.Curve.Params().Name
		jwk.X = base64.RawURLEncoding.EncodeToString(point[1 : 1+size])
		jwk.Y = base64.RawURLEncoding.EncodeToString(point[1+size:])
	default:
		return nil, errors.New("[KeyPair.ToJWK] unsupported public key type")
	}

	return jwk, nil
}

// JWKS publishes the public half of the signing key.
func (kp *KeyPair) JWKS() (*JWKS, error) {
	jwk, err := kp.ToJWK()
	if err != nil {
		return nil, err
	}
	return &JWKS{Keys: []JWK{*jwk}}, nil
}
