package keyring

import (
	"bytes"
	"context"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/repocore/reposync/pkg/keyring/mocks"
)

func newTestEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	e, err := openpgp.NewEntity("test", "", "test@example.com", nil)
	require.NoError(t, err)
	return e
}

func armorEntity(t *testing.T, e *openpgp.Entity) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	require.NoError(t, err)
	require.NoError(t, e.Serialize(w))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestResolve_FindsTrustedKeyWithoutFetching(t *testing.T) {
	entity := newTestEntity(t)
	kr := New(openpgp.EntityList{entity}, t.TempDir(), nil)

	got, trusted, err := kr.Resolve(context.Background(), Hint{KeyID: keyIDHex(entity)})
	require.NoError(t, err)
	assert.True(t, trusted)
	assert.Equal(t, entity, got)
}

func TestResolve_FetchesAndCachesUntrustedOnMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	entity := newTestEntity(t)
	armored := armorEntity(t, entity)

	fetcher := mocks.NewMockKeyFetcher(ctrl)
	fetcher.EXPECT().FetchKey(gomock.Any(), keyIDHex(entity)).Return(armored, nil)

	cacheDir := t.TempDir()
	kr := New(nil, cacheDir, fetcher)

	got, trusted, err := kr.Resolve(context.Background(), Hint{KeyID: keyIDHex(entity)})
	require.NoError(t, err)
	assert.False(t, trusted)
	assert.Equal(t, keyIDHex(entity), keyIDHex(got))

	// A second resolve must hit the on-disk cache, not the network again.
	kr2 := New(nil, cacheDir, nil)
	got2, trusted2, err := kr2.Resolve(context.Background(), Hint{KeyID: keyIDHex(entity)})
	require.NoError(t, err)
	assert.False(t, trusted2)
	assert.Equal(t, keyIDHex(entity), keyIDHex(got2))
}

func TestResolve_NoFetcherConfiguredFails(t *testing.T) {
	kr := New(nil, t.TempDir(), nil)
	_, _, err := kr.Resolve(context.Background(), Hint{KeyID: "deadbeef"})
	assert.Error(t, err)
}

func TestVerifyDetached_RoundTrip(t *testing.T) {
	entity := newTestEntity(t)
	data := bytes.NewReader([]byte("repomd.xml contents"))

	var sig bytes.Buffer
	require.NoError(t, openpgp.DetachSign(&sig, entity, bytes.NewReader([]byte("repomd.xml contents")), nil))

	err := VerifyDetached(entity, data, bytes.NewReader(sig.Bytes()))
	assert.NoError(t, err)
}

func TestVerifyDetached_TamperedDataFails(t *testing.T) {
	entity := newTestEntity(t)

	var sig bytes.Buffer
	require.NoError(t, openpgp.DetachSign(&sig, entity, bytes.NewReader([]byte("original")), nil))

	err := VerifyDetached(entity, bytes.NewReader([]byte("tampered")), bytes.NewReader(sig.Bytes()))
	assert.Error(t, err)
}

func TestIsSafeKeyID_NilEntityIsUnsafe(t *testing.T) {
	assert.False(t, IsSafeKeyID(nil))
}

func TestIsSafeKeyID_GeneratedEntityIsSafe(t *testing.T) {
	entity := newTestEntity(t)
	assert.True(t, IsSafeKeyID(entity))
}
