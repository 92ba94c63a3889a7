package bundler

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"os"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/everFinance/goar"
	"github.com/everFinance/goether"
	"github.com/pkg/errors"
)

// Signature types as numbered by ANS-104.
const (
	SignatureTypeArweave  = 1
	SignatureTypeEthereum = 3
)

var ErrNoKeyConfigured = errors.New("no signing key configured")

// Signer signs ANS-104 data items with either an Arweave RSA wallet or a
// secp256k1 key.
type Signer struct {
	signatureType int
	owner         []byte
	items         *goar.ItemSigner
	jwk           []byte
}

// NewRSASigner wraps an Arweave wallet.
func NewRSASigner(wallet *goar.Signer, jwk []byte) (*Signer, error) {
	items, err := goar.NewItemSigner(wallet)
	if err != nil {
		return nil, errors.Wrap(err, "creating item signer")
	}
	return &Signer{
		signatureType: SignatureTypeArweave,
		owner:         wallet.PubKey.N.Bytes(),
		items:         items,
		jwk:           jwk,
	}, nil
}

func NewSecp256k1Signer(key *secp256k1.PrivateKey) (*Signer, error) {
	ethSigner, err := goether.NewSigner(hex.EncodeToString(key.Serialize()))
	if err != nil {
		return nil, errors.Wrap(err, "creating secp256k1 signer")
	}
	items, err := goar.NewItemSigner(ethSigner)
	if err != nil {
		return nil, errors.Wrap(err, "creating item signer")
	}
	encoded, err := json.Marshal(ecJWK{
		Kty: "EC",
		Crv: "secp256k1",
		D:   base64.RawURLEncoding.EncodeToString(key.Serialize()),
	})
	if err != nil {
		return nil, err
	}
	return &Signer{
		signatureType: SignatureTypeEthereum,
		owner:         key.PubKey().SerializeUncompressed(),
		items:         items,
		jwk:           encoded,
	}, nil
}

func GenerateSigner() (*Signer, error) {
	key, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, errors.Wrap(err, "generating secp256k1 key")
	}
	return NewSecp256k1Signer(key)
}

func (s *Signer) SignatureType() int {
	return s.signatureType
}

// Owner is the public key embedded in every data item: the RSA modulus or
// the uncompressed secp256k1 point.
func (s *Signer) Owner() []byte {
	return s.owner
}

// Address is the base64url sha256 digest of the owner key.
func (s *Signer) Address() string {
	return OwnerToAddress(s.owner)
}

func OwnerToAddress(owner []byte) string {
	sum := sha256.Sum256(owner)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

type ecJWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	D   string `json:"d,omitempty"`
}

// ParseJWK reads an Arweave RSA wallet or an EC secp256k1 JSON web key.
func ParseJWK(data []byte) (*Signer, error) {
	var key ecJWK
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, errors.Wrap(err, "decoding jwk")
	}
	switch {
	case key.Kty == "RSA":
		wallet, err := goar.NewSigner(data)
		if err != nil {
			return nil, errors.Wrap(err, "loading arweave wallet")
		}
		return NewRSASigner(wallet, data)
	case key.Kty == "EC" && strings.EqualFold(key.Crv, "secp256k1"):
		d, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(key.D, "="))
		if err != nil {
			return nil, errors.Wrap(err, "decoding private scalar")
		}
		if len(d) != 32 {
			return nil, errors.Errorf("private scalar must be 32 bytes, got %d", len(d))
		}
		return NewSecp256k1Signer(secp256k1.PrivKeyFromBytes(d))
	}
	return nil, errors.Errorf("unsupported key type %s/%s", key.Kty, key.Crv)
}

// LoadSigner prefers an inline JWK over a key file.
func LoadSigner(inlineJWK string, keyFile string) (*Signer, error) {
	if strings.TrimSpace(inlineJWK) != "" {
		return ParseJWK([]byte(inlineJWK))
	}
	if keyFile == "" {
		return nil, ErrNoKeyConfigured
	}
	data, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, errors.Wrapf(err, "reading key file %s", keyFile)
	}
	return ParseJWK(data)
}

// MarshalJWK returns the key in the format ParseJWK reads.
func (s *Signer) MarshalJWK() ([]byte, error) {
	if len(s.jwk) == 0 {
		return nil, errors.New("signer has no exportable key")
	}
	return append([]byte(nil), s.jwk...), nil
}
