package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
)

// PublicKeySize is the length of a member identity
const PublicKeySize = ed25519.PublicKeySize

// nodeKey is the ed25519 protocol key of a storage node
type nodeKey struct{ key ed25519.PrivateKey }

var _ PrivateKeyI = &nodeKey{}

// NewEd25519PrivateKey() generates a new protocol key
func NewEd25519PrivateKey() (PrivateKeyI, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &nodeKey{key: key}, nil
}

func (k *nodeKey) Bytes() []byte          { return k.key }
func (k *nodeKey) Sign(msg []byte) []byte { return ed25519.Sign(k.key, msg) }

// PublicKey() returns the member identity of the key
func (k *nodeKey) PublicKey() PublicKeyI {
	return identity(k.key.Public().(ed25519.PublicKey))
}

// MarshalJSON() encodes the key as a hex string
func (k *nodeKey) MarshalJSON() ([]byte, error) { return json.Marshal(hex.EncodeToString(k.key)) }

// UnmarshalJSON() decodes a hex string key, rejecting lengths other than an ed25519 private key
func (k *nodeKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	bz, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(bz) != ed25519.PrivateKeySize {
		return errInvalidKeyLength
	}
	k.key = bz
	return nil
}

// identity is the public half of a node key, used to verify the signed peer requests and attestations
type identity ed25519.PublicKey

func (i identity) Bytes() []byte  { return i }
func (i identity) String() string { return hex.EncodeToString(i) }

// VerifyBytes() reports whether sig is a valid signature of msg by this identity
func (i identity) VerifyBytes(msg []byte, sig []byte) bool {
	if len(i) != PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(i), msg, sig)
}
