package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	jwk "github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
	"github.com/quipper/lti/nrps/pkg/common/logger"
)

// KeyPair holds an RSA signing key and the public JWKS advertising it.
// A platform uses it to verify access tokens it issued, a tool uses it to
// sign client assertions.
type KeyPair struct {
	kid  string
	key  *rsa.PrivateKey
	jwks jwk.Set
}

// Source describes where to load a key from. PEMBase64 wins over PEM.
// When both are empty a 2048-bit key is generated (dev mode).
type Source struct {
	Kid       string
	PEM       string
	PEMBase64 string
}

// Load resolves a key pair from src.
func Load(src Source) (*KeyPair, error) {
	kid := src.Kid
	if kid == "" {
		kid = uuid.NewString()
	}

	var key *rsa.PrivateKey
	if src.PEMBase64 != "" {
		der, err := base64.StdEncoding.DecodeString(src.PEMBase64)
		if err != nil {
			return nil, errors.Wrap(err, "decode base64 private key")
		}
		if key, err = parsePEM(der); err != nil {
			return nil, err
		}
	} else if src.PEM != "" {
		var err error
		if key, err = parsePEM([]byte(src.PEM)); err != nil {
			return nil, err
		}
	}
	if key == nil {
		gen, err := Generate(kid)
		if err != nil {
			return nil, err
		}
		pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(gen.key)})
		logger.Warn("keys: generated ephemeral RSA key kid=%s (dev mode); set PLATFORM_PRIVATE_KEY_B64=%s to persist",
			kid, base64.StdEncoding.EncodeToString(pemBytes))
		return gen, nil
	}
	return New(kid, key)
}

// Generate creates a fresh 2048-bit key pair.
func Generate(kid string) (*KeyPair, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, errors.Wrap(err, "generate rsa key")
	}
	return New(kid, key)
}

// New wraps an existing private key.
func New(kid string, key *rsa.PrivateKey) (*KeyPair, error) {
	pub, err := jwk.FromRaw(&key.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "build public jwk")
	}
	_ = pub.Set(jwk.KeyIDKey, kid)
	_ = pub.Set(jwk.AlgorithmKey, jwa.RS256)
	_ = pub.Set(jwk.KeyUsageKey, "sig")

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		return nil, errors.Wrap(err, "add key to set")
	}
	return &KeyPair{kid: kid, key: key, jwks: set}, nil
}

func parsePEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("private key is not PEM encoded")
	}
	if k, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return k, nil
	}
	pkcs8, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	rk, ok := pkcs8.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rk, nil
}

// PrivateKey returns the signing key.
func (k *KeyPair) PrivateKey() *rsa.PrivateKey { return k.key }

// Kid returns the key id.
func (k *KeyPair) Kid() string { return k.kid }

// PublicSet returns the public JWKS.
func (k *KeyPair) PublicSet() jwk.Set { return k.jwks }

// JWKSJSON returns the public JWKS as JSON bytes.
func (k *KeyPair) JWKSJSON() ([]byte, error) {
	return json.Marshal(k.jwks)
}
