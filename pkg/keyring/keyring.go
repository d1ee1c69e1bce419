// Package keyring resolves and verifies GPG signatures on downloaded
// repository metadata using github.com/ProtonMail/go-crypto/openpgp.
// It implements the keyhint/buddy-key resolution order: a (filename,
// keyId) hint extracted from repomd.xml is first looked up in the
// trusted keyring, then the untrusted keyring, then the on-disk
// pubkey cache; only as a last resort is the key fetched from the
// network, and a fetched key is cached but never auto-trusted.
package keyring

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/packet"

	"github.com/repocore/reposync/pkg/errors"
	"github.com/repocore/reposync/pkg/fsutil"
)

// weakKeyBits is the minimum RSA/DSA modulus size a key must have to be
// considered safe to auto-cache; anything weaker is still cached (so it
// is not re-fetched every run) but is never promoted to trusted.
const weakKeyBits = 2048

// KeyRing holds a trusted keyring, an in-memory untrusted keyring, and
// an on-disk cache directory for keys that have been fetched but not
// yet decided on by a human.
type KeyRing struct {
	trusted   openpgp.EntityList
	untrusted openpgp.EntityList
	cacheDir  string
	fetch     KeyFetcher
}

//go:generate mockgen -destination=./mocks/keyring.go . KeyFetcher

// KeyFetcher retrieves an armored public key by id from the network,
// the way the downloader fetches a buddy key referenced by repomd.xml
// but absent from every local keyring.
type KeyFetcher interface {
	FetchKey(ctx context.Context, keyID string) ([]byte, error)
}

// New returns a KeyRing backed by cacheDir for untrusted key persistence.
func New(trusted openpgp.EntityList, cacheDir string, fetch KeyFetcher) *KeyRing {
	return &KeyRing{trusted: trusted, cacheDir: cacheDir, fetch: fetch}
}

// LoadCache populates the in-memory untrusted keyring from cacheDir,
// called once at startup so previously fetched keys are not re-fetched.
func (k *KeyRing) LoadCache() error {
	entries, err := os.ReadDir(k.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(errors.KindIoFailed, "keyring.LoadCache", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(k.cacheDir, e.Name()))
		if err != nil {
			continue
		}
		list, err := openpgp.ReadArmoredKeyRing(f)
		_ = f.Close()
		if err != nil {
			continue
		}
		k.untrusted = append(k.untrusted, list...)
	}
	return nil
}

// Hint is the (filename, keyId) pair repomd.xml publishes alongside a
// signed file, pointing at the key that should verify it.
type Hint struct {
	Filename string
	KeyID    string
}

// Resolve finds the entity for hint.KeyID, searching trusted first,
// then untrusted, then the on-disk cache, and only fetching over the
// network as a last resort. isTrusted reports whether the resolved
// entity came from the trusted keyring.
func (k *KeyRing) Resolve(ctx context.Context, hint Hint) (entity *openpgp.Entity, isTrusted bool, err error) {
	if e := findKey(k.trusted, hint.KeyID); e != nil {
		return e, true, nil
	}
	if e := findKey(k.untrusted, hint.KeyID); e != nil {
		return e, false, nil
	}
	if e, err := k.loadFromCacheFile(hint.KeyID); err == nil && e != nil {
		k.untrusted = append(k.untrusted, e)
		return e, false, nil
	}
	if k.fetch == nil {
		return nil, false, errors.New(errors.KindNotFound, "keyring.Resolve", hint.KeyID)
	}

	armored, err := k.fetch.FetchKey(ctx, hint.KeyID)
	if err != nil {
		return nil, false, errors.Wrap(errors.KindTransportFailed, "keyring.Resolve", err)
	}
	list, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(armored))
	if err != nil || len(list) == 0 {
		return nil, false, errors.New(errors.KindNotFound, "keyring.Resolve", hint.KeyID)
	}
	e := list[0]

	if err := k.cacheKey(hint.KeyID, armored); err != nil {
		return nil, false, err
	}
	k.untrusted = append(k.untrusted, e)

	// A weak key is cached (so we don't refetch it every run) but is
	// never auto-trusted regardless of where it came from.
	return e, false, nil
}

// IsSafeKeyID reports whether the key's strongest self-signing key
// meets the minimum strength this keyring will trust automatically.
// A weak key is still resolvable and cacheable; it simply can never
// satisfy a mandatory-signature check on its own.
func IsSafeKeyID(e *openpgp.Entity) bool {
	if e == nil || e.PrimaryKey == nil {
		return false
	}
	bits, err := e.PrimaryKey.BitLength()
	if err != nil {
		return false
	}
	return int(bits) >= weakKeyBits
}

// VerifyDetached checks sig against data using entity's signing key.
func VerifyDetached(entity *openpgp.Entity, data, sig io.Reader) error {
	_, err := openpgp.CheckDetachedSignature(openpgp.EntityList{entity}, data, sig, nil)
	if err != nil {
		return errors.Wrap(errors.KindSignatureCheckFailed, "keyring.VerifyDetached", err)
	}
	return nil
}

func findKey(list openpgp.EntityList, keyID string) *openpgp.Entity {
	for _, e := range list {
		if keyIDHex(e) == keyID {
			return e
		}
		for _, sk := range e.Subkeys {
			if sk.PublicKey != nil && keyIDHexOf(sk.PublicKey) == keyID {
				return e
			}
		}
	}
	return nil
}

func keyIDHex(e *openpgp.Entity) string {
	if e.PrimaryKey == nil {
		return ""
	}
	return keyIDHexOf(e.PrimaryKey)
}

func keyIDHexOf(pk *packet.PublicKey) string {
	return pk.KeyIdString()
}

func (k *KeyRing) loadFromCacheFile(keyID string) (*openpgp.Entity, error) {
	path := filepath.Join(k.cacheDir, keyID+".asc")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	list, err := openpgp.ReadArmoredKeyRing(f)
	if err != nil || len(list) == 0 {
		return nil, errors.New(errors.KindNotFound, "keyring.loadFromCacheFile", keyID)
	}
	return list[0], nil
}

func (k *KeyRing) cacheKey(keyID string, armored []byte) error {
	if err := fsutil.EnsureSecureDir(k.cacheDir); err != nil {
		return errors.Wrap(errors.KindIoFailed, "keyring.cacheKey", err)
	}
	path := filepath.Join(k.cacheDir, keyID+".asc")
	if err := os.WriteFile(path, armored, fsutil.FileModeSecure); err != nil {
		return errors.Wrap(errors.KindIoFailed, "keyring.cacheKey", err)
	}
	return nil
}
