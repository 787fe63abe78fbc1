// Package passphrase holds the in-memory passphrase database: built
// once at process start, immutable afterward, guaranteeing that no
// key with a passphrase that failed verification ever makes it into
// the process.
package passphrase

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/sirupsen/logrus"

	"github.com/ralt/signserver/internal/backend/gpg"
	"github.com/ralt/signserver/internal/config"
	"github.com/ralt/signserver/internal/models"
)

// checkPlaintext is the fixed plaintext signed during startup
// verification.
const checkPlaintext = "signserver-passphrase-check\n"

// record is the internal, unexported counterpart of models.KeyRecord.
// DB keeps each passphrase in an unexported field of this type rather
// than in an exported models.KeyRecord, so passphrases are never
// accidentally serialized.
type record struct {
	keyid       string
	fingerprint string
	subkeys     map[string]struct{}
	passphrase  string
}

// DB is the passphrase database. Read-only after New returns.
type DB struct {
	keys map[string]record
}

// acquirer obtains the passphrase for one keyid during startup.
type acquirer interface {
	acquire(keyid string) (string, error)
}

type devAcquirer struct{ passphrase string }

func (a devAcquirer) acquire(string) (string, error) { return a.passphrase, nil }

type promptAcquirer struct{}

func (promptAcquirer) acquire(keyid string) (string, error) {
	fmt.Fprintf(os.Stderr, "Enter passphrase for key %s: ", keyid)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// New builds the passphrase database from cfg.KeyIDs, confirming each
// key exists in the keyring, acquiring its passphrase, and verifying
// it with a self-signed, self-checked signature. Any per-key failure
// is fatal: New returns a *models.SignError with Kind
// ErrConfiguration and the caller must not start the process.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*DB, error) {
	driver := &gpg.Driver{BinPath: cfg.GPGBinPath, KeyringPath: cfg.KeyringPath}

	listed, err := driver.ListKeys(ctx)
	if err != nil {
		return nil, models.ConfigurationErr(err, "failed to enumerate secret keyring")
	}
	byID := make(map[string]gpg.KeyInfo, len(listed))
	for _, k := range listed {
		byID[k.KeyID] = k
	}

	var acq acquirer
	switch cfg.PassphraseMode {
	case config.PassphraseDev:
		acq = devAcquirer{passphrase: cfg.DevPassphrase}
	default:
		acq = promptAcquirer{}
	}

	db := &DB{keys: make(map[string]record, len(cfg.KeyIDs))}

	for _, keyid := range cfg.KeyIDs {
		info, ok := byID[keyid]
		if !ok {
			return nil, models.ConfigurationErr(nil, "configured key %s not found in keyring", keyid)
		}

		passphrase, err := acq.acquire(keyid)
		if err != nil {
			return nil, models.ConfigurationErr(err, "failed to acquire passphrase for key %s", keyid)
		}

		if err := driver.RestartAgent(ctx); err != nil {
			return nil, models.ConfigurationErr(err, "failed to restart agent before verifying key %s", keyid)
		}

		if err := verify(ctx, driver, cfg, keyid, passphrase); err != nil {
			return nil, models.ConfigurationErr(err, "passphrase verification failed for key %s", keyid)
		}

		subkeys := make(map[string]struct{}, len(info.Subkeys))
		for _, s := range info.Subkeys {
			subkeys[s] = struct{}{}
		}

		db.keys[keyid] = record{
			keyid:       keyid,
			fingerprint: info.Fingerprint,
			subkeys:     subkeys,
			passphrase:  passphrase,
		}
		log.WithField("keyid", keyid).Info("passphrase verified")
	}

	return db, nil
}

// verify signs checkPlaintext with keyid/passphrase and self-checks
// the result against the public keyring, confirming the passphrase
// actually decrypts the key's private material and produces a valid
// signature.
func verify(ctx context.Context, driver *gpg.Driver, cfg *config.Config, keyid, passphrase string) error {
	tmpFile, err := os.CreateTemp(cfg.TmpDir, "signserver-passcheck-*")
	if err != nil {
		return err
	}
	path := tmpFile.Name()
	defer os.Remove(path)
	defer os.Remove(path + ".asc")

	if _, err := tmpFile.WriteString(checkPlaintext); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	ascPath, err := driver.SignFile(ctx, keyid, passphrase, path, true, models.SHA256)
	if err != nil {
		return err
	}

	sig, err := os.Open(ascPath)
	if err != nil {
		return err
	}
	defer sig.Close()

	keyring, err := os.Open(cfg.KeyringPath)
	if err != nil {
		// Fall back to the gpg2 binary's default keyring location is
		// not available to openpgp directly; absence of an explicit
		// keyring path is a configuration error for the self-check.
		return fmt.Errorf("opening keyring for self-check: %w", err)
	}
	defer keyring.Close()

	entityList, err := openpgp.ReadArmoredKeyRing(keyring)
	if err != nil {
		if _, serr := keyring.Seek(0, 0); serr == nil {
			entityList, err = openpgp.ReadKeyRing(keyring)
		}
	}
	if err != nil {
		return fmt.Errorf("parsing keyring for self-check: %w", err)
	}

	_, err = openpgp.CheckArmoredDetachedSignature(entityList, bytes.NewReader([]byte(checkPlaintext)), sig, nil)
	return err
}

// GetPassphrase returns the passphrase for keyid. It is infallible:
// callers must only invoke it with a keyid that KeyExists reports
// true for, which New guarantees for every configured key.
func (db *DB) GetPassphrase(keyid string) string {
	return db.keys[keyid].passphrase
}

// KeyExists reports whether keyid is present in the database.
func (db *DB) KeyExists(keyid string) bool {
	_, ok := db.keys[keyid]
	return ok
}

// Fingerprint returns the fingerprint recorded for keyid, or "" if
// keyid is not in the database.
func (db *DB) Fingerprint(keyid string) string {
	return db.keys[keyid].fingerprint
}

// ListKeys returns every configured keyid.
func (db *DB) ListKeys() []string {
	ids := make([]string, 0, len(db.keys))
	for id := range db.keys {
		ids = append(ids, id)
	}
	return ids
}
