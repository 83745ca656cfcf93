package rgbdescr

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// KeyOrigin is the origin of an account level extended public key: the
// fingerprint of the master key and the path from the master to the account.
type KeyOrigin struct {
	// MasterKeyFingerprint is the fingerprint of the master key, encoded
	// the same way the PSBT derivation fields encode it.
	MasterKeyFingerprint uint32

	// Path is the (usually hardened) path from the master key to the
	// account key.
	Path []uint32
}

// String returns the text form of the origin, for example
// "d34db33f/86h/1h/0h".
func (o KeyOrigin) String() string {
	var fp [4]byte
	binary.LittleEndian.PutUint32(fp[:], o.MasterKeyFingerprint)

	var b strings.Builder
	b.WriteString(hex.EncodeToString(fp[:]))
	for _, idx := range o.Path {
		b.WriteString("/")
		if idx >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(
				uint64(idx-hdkeychain.HardenedKeyStart), 10,
			))
			b.WriteString("h")

			continue
		}
		b.WriteString(strconv.FormatUint(uint64(idx), 10))
	}

	return b.String()
}

// ParseKeyOrigin parses the text form of a key origin. Hardened indexes may
// be marked with either h or '.
func ParseKeyOrigin(s string) (KeyOrigin, error) {
	parts := strings.Split(s, "/")

	fp, err := hex.DecodeString(parts[0])
	if err != nil || len(fp) != 4 {
		return KeyOrigin{}, fmt.Errorf("invalid master key fingerprint "+
			"%q", parts[0])
	}

	origin := KeyOrigin{
		MasterKeyFingerprint: binary.LittleEndian.Uint32(fp),
		Path:                 make([]uint32, 0, len(parts)-1),
	}
	for _, part := range parts[1:] {
		var offset uint32
		if strings.HasSuffix(part, "h") || strings.HasSuffix(part, "'") {
			offset = hdkeychain.HardenedKeyStart
			part = part[:len(part)-1]
		}

		idx, err := strconv.ParseUint(part, 10, 31)
		if err != nil {
			return KeyOrigin{}, fmt.Errorf("invalid origin path "+
				"element %q: %w", part, err)
		}
		origin.Path = append(origin.Path, uint32(idx)+offset)
	}

	return origin, nil
}

// XpubDerivable is an account level extended public key together with its
// origin, from which terminal keys are derived.
type XpubDerivable struct {
	origin KeyOrigin
	xpub   *hdkeychain.ExtendedKey
}

// NewXpubDerivable creates a new derivable key. Private extended keys are
// neutered first.
func NewXpubDerivable(xpub *hdkeychain.ExtendedKey,
	origin KeyOrigin) (*XpubDerivable, error) {

	if xpub.IsPrivate() {
		var err error
		xpub, err = xpub.Neuter()
		if err != nil {
			return nil, fmt.Errorf("unable to neuter key: %w", err)
		}
	}

	return &XpubDerivable{
		origin: origin,
		xpub:   xpub,
	}, nil
}

// DeriveAccount derives the account key at the given path from a master key
// and returns it as a derivable key with the matching origin.
func DeriveAccount(master *hdkeychain.ExtendedKey,
	path []uint32) (*XpubDerivable, error) {

	masterPub, err := master.ECPubKey()
	if err != nil {
		return nil, err
	}
	fingerprint := btcutil.Hash160(masterPub.SerializeCompressed())[:4]

	account := master
	for _, idx := range path {
		account, err = account.Derive(idx)
		if err != nil {
			return nil, fmt.Errorf("unable to derive account path "+
				"%v: %w", path, err)
		}
	}

	return NewXpubDerivable(account, KeyOrigin{
		MasterKeyFingerprint: binary.LittleEndian.Uint32(fingerprint),
		Path:                 append([]uint32(nil), path...),
	})
}

// ParseXpubDerivable parses a key in the form "[origin]xpub".
func ParseXpubDerivable(s string) (*XpubDerivable, error) {
	if !strings.HasPrefix(s, "[") {
		return nil, fmt.Errorf("key %q is missing its origin", s)
	}
	end := strings.Index(s, "]")
	if end < 0 {
		return nil, fmt.Errorf("key %q has an unterminated origin", s)
	}

	origin, err := ParseKeyOrigin(s[1:end])
	if err != nil {
		return nil, err
	}
	xpub, err := hdkeychain.NewKeyFromString(s[end+1:])
	if err != nil {
		return nil, fmt.Errorf("invalid extended key: %w", err)
	}

	return NewXpubDerivable(xpub, origin)
}

// String returns the text form "[origin]xpub" of the key.
func (x *XpubDerivable) String() string {
	return fmt.Sprintf("[%v]%v", x.origin, x.xpub)
}

// Origin returns the origin of the account key.
func (x *XpubDerivable) Origin() KeyOrigin {
	return x.origin
}

// Xpub returns the account extended public key.
func (x *XpubDerivable) Xpub() *hdkeychain.ExtendedKey {
	return x.xpub
}

// FullPath returns the full derivation path from the master key to the given
// terminal.
func (x *XpubDerivable) FullPath(t Terminal) []uint32 {
	path := make([]uint32, 0, len(x.origin.Path)+2)
	path = append(path, x.origin.Path...)

	return append(path, t.Path()...)
}

// Derive derives the public key at the given terminal.
func (x *XpubDerivable) Derive(t Terminal) (*btcec.PublicKey, error) {
	key, err := x.xpub.Derive(uint32(t.Keychain))
	if err != nil {
		return nil, fmt.Errorf("unable to derive keychain %v: %w",
			t.Keychain, err)
	}
	key, err = key.Derive(t.Index)
	if err != nil {
		return nil, fmt.Errorf("unable to derive index %d: %w",
			t.Index, err)
	}

	return key.ECPubKey()
}
