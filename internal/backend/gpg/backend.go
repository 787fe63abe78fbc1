package gpg

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ralt/signserver/internal/audit"
	"github.com/ralt/signserver/internal/hasher"
	"github.com/ralt/signserver/internal/lock"
	"github.com/ralt/signserver/internal/models"
)

// passphraseDB is the part of *passphrase.DB that Backend reads. It is
// an interface because internal/passphrase itself imports this package
// for Driver.
type passphraseDB interface {
	KeyExists(keyid string) bool
	ListKeys() []string
	GetPassphrase(keyid string) string
}

// uploadChunkBytes is the chunk size used while streaming an upload
// to its temp file.
const uploadChunkBytes = 1 << 20 // 1 MiB

// Upload is one file to be signed: its name and content stream.
type Upload struct {
	Filename string
	Content  io.Reader
}

// Backend implements the GPG signing backend: local gpg2 subprocess
// invocations guarded by per-key file locks and a passphrase
// database.
type Backend struct {
	driver         *Driver
	db             passphraseDB
	locks          *lock.Manager
	audit          *audit.Logger
	tmpDir         string
	maxUploadBytes int64

	// subprocessSem is an in-process binary semaphore: exactly one
	// gpg2 invocation (plus its agent reload) runs at a time, even
	// across different keys.
	subprocessSem sync.Mutex
}

// New builds a GPG Backend.
func New(driver *Driver, db passphraseDB, locks *lock.Manager, auditLog *audit.Logger, tmpDir string, maxUploadBytes int64) *Backend {
	return &Backend{
		driver:         driver,
		db:             db,
		locks:          locks,
		audit:          auditLog,
		tmpDir:         tmpDir,
		maxUploadBytes: maxUploadBytes,
	}
}

// KeyExists reports whether keyid is in the passphrase database.
func (b *Backend) KeyExists(keyid string) bool { return b.db.KeyExists(keyid) }

// ListKeys returns every configured keyid.
func (b *Backend) ListKeys() []string { return b.db.ListKeys() }

// streamToTemp copies upload into a new temp file in uploadChunkBytes
// chunks, flushing after each chunk, failing fast with FileTooBig the
// instant the running total exceeds maxUploadBytes.
func (b *Backend) streamToTemp(upload Upload) (path string, err error) {
	f, err := os.CreateTemp(b.tmpDir, "signserver-upload-*")
	if err != nil {
		return "", models.SigningFailed(err, "failed to create temp file")
	}
	path = f.Name()

	cleanupOnErr := func() {
		f.Close()
		os.Remove(path)
	}

	w := bufio.NewWriter(f)
	buf := make([]byte, uploadChunkBytes)
	var total int64

	for {
		n, rerr := upload.Content.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > b.maxUploadBytes {
				cleanupOnErr()
				return "", models.FileTooBig(b.maxUploadBytes)
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				cleanupOnErr()
				return "", models.SigningFailed(werr, "failed to write upload chunk")
			}
			if werr := w.Flush(); werr != nil {
				cleanupOnErr()
				return "", models.SigningFailed(werr, "failed to flush upload chunk")
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			cleanupOnErr()
			return "", models.SigningFailed(rerr, "failed to read upload")
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", models.SigningFailed(err, "failed to close temp file")
	}
	return path, nil
}

// Sign streams an upload to a temp file, acquires the per-key lock,
// invokes gpg2, reloads the agent, audit logs, reads back and cleans
// up the .asc sibling.
func (b *Backend) Sign(ctx context.Context, keyid string, upload Upload, detached bool, algo models.DigestAlgo) (string, error) {
	if !b.db.KeyExists(keyid) {
		return "", models.BadRequest("unknown keyid %s", keyid)
	}

	tmpPath, err := b.streamToTemp(upload)
	if err != nil {
		return "", err
	}
	ascPath := tmpPath + ".asc"
	defer func() {
		os.Remove(tmpPath)
		os.Remove(ascPath)
	}()

	preHash, err := hasher.SHA256File(tmpPath)
	if err != nil {
		return "", models.SigningFailed(err, "failed to compute pre-hash")
	}

	h, err := b.locks.Acquire(ctx, keyid)
	if err != nil {
		return "", err
	}
	defer h.Release()

	sig, postHash, signErr := b.signLocked(ctx, keyid, tmpPath, ascPath, detached, algo)

	status := audit.StatusSuccess
	if signErr != nil {
		status = audit.StatusFailed
	}
	b.audit.Record(audit.Entry{
		Filename: upload.Filename,
		PreHash:  preHash,
		PostHash: postHash,
		KeyID:    keyid,
		Status:   status,
	})

	if signErr != nil {
		return "", signErr
	}
	return sig, nil
}

// signLocked runs the subprocess+agent-reload critical section. The
// caller must already hold the per-key lock.
func (b *Backend) signLocked(ctx context.Context, keyid, tmpPath, ascPath string, detached bool, algo models.DigestAlgo) (sig, postHash string, err error) {
	b.subprocessSem.Lock()
	defer b.subprocessSem.Unlock()

	passphrase := b.db.GetPassphrase(keyid)

	if _, err := b.driver.SignFile(ctx, keyid, passphrase, tmpPath, detached, algo); err != nil {
		return "", "", err
	}

	if err := b.driver.RestartAgent(ctx); err != nil {
		return "", "", err
	}

	postHash, err = hasher.SHA256File(tmpPath)
	if err != nil {
		return "", "", models.SigningFailed(err, "failed to compute post-hash")
	}

	data, err := os.ReadFile(ascPath)
	if err != nil {
		return "", "", models.SigningFailed(err, "failed to read signature output")
	}
	return string(data), postHash, nil
}

// SignBatch acquires the per-key lock once for the entire batch (the
// inner helper never re-acquires it), then signs each upload in turn
// through an errgroup limited to concurrency 1, so batch members run
// one after another; each member's gpg2 call additionally takes
// Backend.subprocessSem inside signLocked. The first failure cancels
// the group; later uploads are never submitted to gpg2.
func (b *Backend) SignBatch(ctx context.Context, keyid string, uploads []Upload, detached bool, algo models.DigestAlgo) ([]models.SignResult, error) {
	if !b.db.KeyExists(keyid) {
		return nil, models.BadRequest("unknown keyid %s", keyid)
	}

	h, err := b.locks.Acquire(ctx, keyid)
	if err != nil {
		return nil, err
	}
	defer h.Release()

	results := make([]models.SignResult, len(uploads))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(1)

	for i, up := range uploads {
		i, up := i, up
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			sig, postHash, preHash, signErr := b.signOneLocked(gctx, keyid, up, detached, algo)

			status := audit.StatusSuccess
			if signErr != nil {
				status = audit.StatusFailed
			}
			b.audit.Record(audit.Entry{
				Filename: up.Filename,
				PreHash:  preHash,
				PostHash: postHash,
				KeyID:    keyid,
				Status:   status,
			})

			if signErr != nil {
				return signErr
			}
			results[i] = models.SignResult{Filename: up.Filename, Success: true, Signature: sig}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// signOneLocked streams, pre-hashes, signs and post-hashes a single
// batch member. The caller already holds the batch's per-key lock;
// this does not acquire it again.
func (b *Backend) signOneLocked(ctx context.Context, keyid string, up Upload, detached bool, algo models.DigestAlgo) (sig, postHash, preHash string, err error) {
	tmpPath, err := b.streamToTemp(up)
	if err != nil {
		return "", "", "", err
	}
	ascPath := tmpPath + ".asc"
	defer func() {
		os.Remove(tmpPath)
		os.Remove(ascPath)
	}()

	preHash, err = hasher.SHA256File(tmpPath)
	if err != nil {
		return "", "", "", models.SigningFailed(err, "failed to compute pre-hash")
	}

	sig, postHash, err = b.signLocked(ctx, keyid, tmpPath, ascPath, detached, algo)
	if err != nil {
		return "", "", preHash, err
	}
	return sig, postHash, preHash, nil
}
