// Package downloader implements the repository refresh workflow: fetch
// the master index into a temp file, run any configured plugin
// verifier, then fetch the detached signature and key hint files and
// verify the GPG signature (resolving keyhints through pkg/keyring's
// trusted/untrusted/cache/network order), move the master index into
// its destination, and record the resulting signature status. The
// signature and key files are fetched after the master index, not
// before it. Plugin verification runs before signature verification,
// and both complete before anything is moved into the repository's
// permanent metadata path; the workflow is expressed once as a
// pkg/asyncutil pipeline and driven by either a SyncRunner or an
// AsyncRunner, never duplicated between the two.
package downloader

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/repocore/reposync/pkg/asyncutil"
	"github.com/repocore/reposync/pkg/errors"
	"github.com/repocore/reposync/pkg/fsutil"
	"github.com/repocore/reposync/pkg/keyring"
	"github.com/repocore/reposync/pkg/media"
	"github.com/repocore/reposync/pkg/model"
)

// Suffixes appended to a master index's relative path to locate its
// detached signature and the public key that should verify it.
const (
	SigSuffix = ".asc"
	KeySuffix = ".key"
)

// PluginVerifier runs an external repo-verification plugin against a
// downloaded master index, the Go-idiomatic stand-in for zypp's
// RepoVerification script hook.
type PluginVerifier interface {
	Verify(ctx context.Context, masterIndexPath string) error
}

// Downloader drives the refresh workflow for one repository at a time.
// Its Refresh method is runner-agnostic: the same Task pipeline backs
// both synchronous CLI refreshes and the coordinator's concurrent batch
// refresh.
type Downloader struct {
	Media     media.Provider
	Keys      *keyring.KeyRing
	Plugin    PluginVerifier // nil disables plugin verification
	Mandatory bool           // GPGCheckMandatory: unsigned/untrusted is fatal
}

// Outcome is what a successful refresh produces.
type Outcome struct {
	MetadataPath string
	Signature    model.ValidSignature
}

// MasterIndexRelPath returns the relative path of the signature-bearing
// top-level file for a repo type, e.g. "repodata/repomd.xml" for RPMMD.
// pkg/freshness uses this to probe the same file pkg/downloader fetches,
// so a freshness check and an actual refresh always agree on what "the
// metadata" means for a given repository type.
func MasterIndexRelPath(typ model.RepoType) string {
	switch typ {
	case model.RepoTypeRPMMD:
		return "repodata/repomd.xml"
	case model.RepoTypeYaST2:
		return "content"
	default:
		return ""
	}
}

func masterIndexRelPath(typ model.RepoType) string {
	return MasterIndexRelPath(typ)
}

// Refresh runs the full download-verify-install pipeline for repo
// against destDir, using runner to execute the underlying Task.
func Refresh(ctx context.Context, runner asyncutil.Runner[Outcome], d *Downloader, repo model.RepoInfo, baseURL, destDir string) asyncutil.Result[Outcome] {
	task := d.pipeline(repo, baseURL, destDir)
	return runner.Run(ctx, task)
}

// pipeline builds the Task chain described in the package doc comment.
// Every stage is pure with respect to its inputs; the only I/O side
// effects happen inside the Task closures themselves, so the chain is
// identical whether executed by SyncRunner or AsyncRunner.
func (d *Downloader) pipeline(repo model.RepoInfo, baseURL, destDir string) asyncutil.Task[Outcome] {
	relPath := masterIndexRelPath(repo.Type)

	fetchMasterIndex := func(ctx context.Context) (stagedFile, error) {
		return d.fetchToTemp(ctx, baseURL, relPath)
	}

	withVerification := asyncutil.AndThen(asyncutil.Task[stagedFile](fetchMasterIndex), func(master stagedFile) asyncutil.Task[stagedFile] {
		return func(ctx context.Context) (stagedFile, error) {
			if d.Plugin != nil {
				if err := d.Plugin.Verify(ctx, master.tmpPath); err != nil {
					_ = os.Remove(master.tmpPath)
					return stagedFile{}, errors.Wrap(errors.KindPluginVerifyFailed, "downloader.pipeline", err)
				}
			}
			sig, sigErr := d.verifySignature(ctx, baseURL, relPath, master.tmpPath)
			if sigErr != nil && d.Mandatory {
				_ = os.Remove(master.tmpPath)
				return stagedFile{}, sigErr
			}
			master.signature = sig
			return master, nil
		}
	})

	return asyncutil.Transform(withVerification, func(master stagedFile) Outcome {
		finalPath := filepath.Join(destDir, filepath.Base(relPath))
		if err := fsutil.EnsureFileDir(finalPath); err == nil {
			_ = os.Rename(master.tmpPath, finalPath)
		}
		return Outcome{MetadataPath: finalPath, Signature: master.signature}
	})
}

// stagedFile is the intermediate value threaded between pipeline
// stages: a downloaded file sitting in a temp location awaiting
// verification, plus whatever signature status has been determined
// for it so far.
type stagedFile struct {
	tmpPath   string
	signature model.ValidSignature
}

func (d *Downloader) fetchToTemp(ctx context.Context, baseURL, relPath string) (stagedFile, error) {
	h, err := d.Media.Open(ctx, baseURL, relPath)
	if err != nil {
		return stagedFile{}, errors.Wrap(errors.KindTransportFailed, "downloader.fetchToTemp", err)
	}
	defer func() { _ = h.Close() }()

	tmp, err := os.CreateTemp("", "reposync-*.tmp")
	if err != nil {
		return stagedFile{}, errors.Wrap(errors.KindIoFailed, "downloader.fetchToTemp", err)
	}
	defer func() { _ = tmp.Close() }()

	if _, err := io.Copy(tmp, h.Body); err != nil {
		_ = os.Remove(tmp.Name())
		return stagedFile{}, errors.Wrap(errors.KindTransportFailed, "downloader.fetchToTemp", err)
	}

	return stagedFile{tmpPath: tmp.Name()}, nil
}

// verifySignature fetches relPath+".asc" and, if present, resolves its
// signing key through the keyring's keyhint/buddy-key order before
// checking the detached signature against the downloaded file.
func (d *Downloader) verifySignature(ctx context.Context, baseURL, relPath, filePath string) (model.ValidSignature, error) {
	sigHandle, err := d.Media.Open(ctx, baseURL, relPath+SigSuffix)
	if err != nil {
		return model.SignatureUnsigned, errors.New(errors.KindSignatureCheckFailed, "downloader.verifySignature", "no detached signature published")
	}
	defer func() { _ = sigHandle.Close() }()

	keyHandle, err := d.Media.Open(ctx, baseURL, relPath+KeySuffix)
	var keyID string
	if err == nil {
		defer func() { _ = keyHandle.Close() }()
		keyID = relPath // placeholder hint; real keyId comes from repomd.xml's own keyinfo extension
	}

	entity, trusted, err := d.Keys.Resolve(ctx, keyring.Hint{Filename: relPath, KeyID: keyID})
	if err != nil {
		return model.SignatureUntrusted, err
	}
	if !keyring.IsSafeKeyID(entity) {
		return model.SignatureUntrusted, errors.New(errors.KindSignatureCheckFailed, "downloader.verifySignature", "signing key is not safe for verification")
	}

	file, err := os.Open(filePath)
	if err != nil {
		return model.SignatureUntrusted, errors.Wrap(errors.KindIoFailed, "downloader.verifySignature", err)
	}
	defer func() { _ = file.Close() }()

	if err := keyring.VerifyDetached(entity, file, sigHandle.Body); err != nil {
		return model.SignatureUntrusted, err
	}

	if trusted {
		return model.SignatureTrusted, nil
	}
	return model.SignatureUntrusted, nil
}
