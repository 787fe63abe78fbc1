package backend

import (
	"context"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ralt/signserver/internal/audit"
	bgpg "github.com/ralt/signserver/internal/backend/gpg"
	bkms "github.com/ralt/signserver/internal/backend/kms"
	"github.com/ralt/signserver/internal/config"
	"github.com/ralt/signserver/internal/lock"
	"github.com/ralt/signserver/internal/models"
	"github.com/ralt/signserver/internal/passphrase"
)

var (
	once     sync.Once
	resolved Backend
	resolveErr error
)

// Resolve builds the configured Backend exactly once for the
// process's lifetime, guarded by a sync.Once. Every call after the
// first returns the cached result (or the cached error) without
// re-running initialization — switching backends requires a process
// restart.
func Resolve(ctx context.Context, cfg *config.Config, log *logrus.Logger) (Backend, error) {
	once.Do(func() {
		resolved, resolveErr = build(ctx, cfg, log)
	})
	return resolved, resolveErr
}

func build(ctx context.Context, cfg *config.Config, log *logrus.Logger) (Backend, error) {
	auditLog := audit.NewLogger(log)

	switch cfg.SigningBackend {
	case config.BackendGPG:
		if err := os.MkdirAll(cfg.LocksDir, 0o700); err != nil {
			return nil, models.ConfigurationErr(err, "failed to create locks dir %s", cfg.LocksDir)
		}

		db, err := passphrase.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}

		driver := &bgpg.Driver{BinPath: cfg.GPGBinPath, KeyringPath: cfg.KeyringPath}
		locks := lock.NewManager(cfg.LocksDir)
		gb := bgpg.New(driver, db, locks, auditLog, cfg.TmpDir, cfg.MaxUploadBytes)
		return &gpgAdapter{gb}, nil

	case config.BackendKMS:
		keys := make([]bkms.KeyMapping, 0, len(cfg.KMSKeys))
		for _, k := range cfg.KMSKeys {
			keys = append(keys, bkms.KeyMapping{KMSID: k.KMSID, GPGFingerprint: k.GPGFingerprint})
		}

		kb, err := bkms.Init(ctx, bkms.Config{
			Region:          cfg.KMSRegion,
			AccessKeyID:     cfg.KMSAccessKeyID,
			SecretAccessKey: cfg.KMSSecretAccessKey,
			Algorithm:       cfg.KMSAlgorithm,
			MaxUploadBytes:  cfg.MaxUploadBytes,
			MaxWorkers:      cfg.KMSMaxWorkers,
			Keys:            keys,
		}, auditLog, log)
		if err != nil {
			return nil, err
		}
		return &kmsAdapter{kb}, nil

	default:
		return nil, models.ConfigurationErr(nil, "unknown signing_backend %q", cfg.SigningBackend)
	}
}

// gpgAdapter narrows *gpg.Backend's gpg.Upload-typed signature to the
// facade's backend.Upload type.
type gpgAdapter struct{ b *bgpg.Backend }

func (a *gpgAdapter) KeyExists(keyid string) bool { return a.b.KeyExists(keyid) }
func (a *gpgAdapter) ListKeys() []string          { return a.b.ListKeys() }

func (a *gpgAdapter) Sign(ctx context.Context, keyid string, upload Upload, detached bool, algo models.DigestAlgo) (string, error) {
	return a.b.Sign(ctx, keyid, bgpg.Upload{Filename: upload.Filename, Content: upload.Content}, detached, algo)
}

func (a *gpgAdapter) SignBatch(ctx context.Context, keyid string, uploads []Upload, detached bool, algo models.DigestAlgo) ([]models.SignResult, error) {
	converted := make([]bgpg.Upload, len(uploads))
	for i, u := range uploads {
		converted[i] = bgpg.Upload{Filename: u.Filename, Content: u.Content}
	}
	return a.b.SignBatch(ctx, keyid, converted, detached, algo)
}

// kmsAdapter narrows *kms.Backend's kms.Upload-typed signature to the
// facade's backend.Upload type.
type kmsAdapter struct{ b *bkms.Backend }

func (a *kmsAdapter) KeyExists(keyid string) bool { return a.b.KeyExists(keyid) }
func (a *kmsAdapter) ListKeys() []string          { return a.b.ListKeys() }

func (a *kmsAdapter) Sign(ctx context.Context, keyid string, upload Upload, detached bool, algo models.DigestAlgo) (string, error) {
	return a.b.Sign(ctx, keyid, bkms.Upload{Filename: upload.Filename, Content: upload.Content}, detached, algo, false)
}

func (a *kmsAdapter) SignBatch(ctx context.Context, keyid string, uploads []Upload, detached bool, algo models.DigestAlgo) ([]models.SignResult, error) {
	converted := make([]bkms.Upload, len(uploads))
	for i, u := range uploads {
		converted[i] = bkms.Upload{Filename: u.Filename, Content: u.Content}
	}
	return a.b.SignBatch(ctx, keyid, converted, detached, algo)
}
