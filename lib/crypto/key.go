package crypto

import (
	"encoding/json"
	"errors"
	"os"
)

var errInvalidKeyLength = errors.New("unrecognized key length")

// PublicKeyI identifies a storage node within and across committees and verifies its signatures
type PublicKeyI interface {
	Bytes() []byte
	// VerifyBytes() verifies a digital signature from its corresponding private key
	VerifyBytes(msg []byte, sig []byte) bool
	String() string
}

// PrivateKeyI is the node's protocol key; it signs the requests sent to other committee members
type PrivateKeyI interface {
	Bytes() []byte
	Sign(msg []byte) []byte
	PublicKey() PublicKeyI
	json.Marshaler
	json.Unmarshaler
}

// NewPublicKeyFromBytes() converts the identity bytes of a member into a PublicKeyI
func NewPublicKeyFromBytes(bz []byte) (PublicKeyI, error) {
	if len(bz) != PublicKeySize {
		return nil, errInvalidKeyLength
	}
	return identity(bz), nil
}

// PrivateKeyFromFile() loads a hex encoded private key from a json file
func PrivateKeyFromFile(filePath string) (PrivateKeyI, error) {
	bz, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	pk := new(nodeKey)
	if err = json.Unmarshal(bz, pk); err != nil {
		return nil, err
	}
	return pk, nil
}

// SavePrivateKeyToFile() writes a private key to a json file with owner only permissions
func SavePrivateKeyToFile(pk PrivateKeyI, filePath string) error {
	bz, err := json.Marshal(pk)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, bz, 0600)
}
