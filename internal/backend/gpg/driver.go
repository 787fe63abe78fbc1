// Package gpg implements the GPG signing backend: a subprocess driver
// for the external gpg2 binary with expect-style passphrase
// injection, plus the Backend that wires it to the passphrase
// database and the keyed cross-process lock.
package gpg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/ralt/signserver/internal/models"
)

// subprocessTimeout bounds a single gpg2 invocation.
const subprocessTimeout = 1200 * time.Second

var passphrasePrompt = regexp.MustCompile(`Enter passphrase:`)

// Driver drives the gpg2 binary directly. It knows nothing about the
// passphrase database or the keyed lock — those live in Backend — so
// it can also be used standalone by the passphrase database's
// startup self-check.
type Driver struct {
	BinPath     string
	KeyringPath string
}

// KeyInfo is one entry of ListKeys.
type KeyInfo struct {
	KeyID       string
	Fingerprint string
	Subkeys     []string
}

// SignFile drives gpg2 to sign path in place, writing path+".asc".
// detached selects --detach-sign vs --clear-sign. Passphrase
// injection follows an expect-style pattern: a goroutine scans the
// child's combined output for "Enter passphrase:" and writes the
// passphrase, followed by CRLF, to the child's stdin.
func (d *Driver) SignFile(ctx context.Context, keyid, passphrase, path string, detached bool, algo models.DigestAlgo) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, subprocessTimeout)
	defer cancel()

	signMode := "--clear-sign"
	if detached {
		signMode = "--detach-sign"
	}

	args := []string{
		"--yes", "--pinentry-mode", "loopback",
		"--digest-algo", algo.String(),
		signMode, "--armor",
		"--default-key", keyid,
	}
	if d.KeyringPath != "" {
		args = append([]string{"--no-default-keyring", "--keyring", d.KeyringPath}, args...)
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, d.BinPath, args...)
	cmd.Env = append(cmd.Environ(), "LC_ALL=en_US.UTF-8")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", models.SigningFailed(err, "failed to open gpg2 stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", models.SigningFailed(err, "failed to open gpg2 stdout")
	}
	cmd.Stderr = cmd.Stdout // combined output so the expect loop sees prompts

	if err := cmd.Start(); err != nil {
		return "", models.SigningFailed(err, "failed to start gpg2")
	}

	var output bytes.Buffer
	go expectPassphrase(stdout, stdin, passphrase, &output)

	waitErr := cmd.Wait()
	if ctx.Err() == context.DeadlineExceeded || ctx.Err() == context.Canceled {
		return "", models.Canceled(ctx.Err())
	}
	if waitErr != nil {
		return "", models.SigningFailed(waitErr, "gpg2 exited non-zero: %s", output.String())
	}

	return path + ".asc", nil
}

// expectPassphrase scans r line by line and writes passphrase+"\r\n"
// to w the first time a line matches the passphrase prompt. All
// scanned output is copied into captured for inclusion in error
// messages.
func expectPassphrase(r io.Reader, w io.WriteCloser, passphrase string, captured *bytes.Buffer) {
	defer w.Close()

	scanner := bufio.NewScanner(r)
	sent := false
	for scanner.Scan() {
		line := scanner.Text()
		captured.WriteString(line)
		captured.WriteByte('\n')

		if !sent && passphrasePrompt.MatchString(line) {
			fmt.Fprintf(w, "%s\r\n", passphrase)
			sent = true
		}
	}
}

// ListKeys enumerates the secret keyring via `gpg2 --list-secret-keys
// --with-colons`, the stable machine-readable format.
func (d *Driver) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	args := []string{"--with-colons", "--fingerprint", "--list-secret-keys"}
	if d.KeyringPath != "" {
		args = append([]string{"--no-default-keyring", "--keyring", d.KeyringPath}, args...)
	}
	cmd := exec.CommandContext(ctx, d.BinPath, args...)
	out, err := cmd.Output()
	if err != nil {
		return nil, models.ConfigurationErr(err, "failed to list secret keys")
	}
	return parseColonListing(string(out)), nil
}

// parseColonListing extracts key ids, fingerprints and subkeys from
// --with-colons output. Lines of type "sec"/"ssb" carry the key id in
// field 5; "fpr" lines (immediately following sec/ssb) carry the full
// fingerprint in field 10.
func parseColonListing(out string) []KeyInfo {
	var keys []KeyInfo
	var cur *KeyInfo
	expectingPrimaryFpr := false

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(line, ":")
		if len(fields) < 2 {
			continue
		}
		switch fields[0] {
		case "sec":
			if cur != nil {
				keys = append(keys, *cur)
			}
			cur = &KeyInfo{}
			expectingPrimaryFpr = true
		case "ssb":
			expectingPrimaryFpr = false
		case "fpr":
			if cur == nil || len(fields) < 10 {
				continue
			}
			fpr := fields[9]
			if expectingPrimaryFpr && cur.Fingerprint == "" {
				cur.Fingerprint = fpr
				if len(fpr) >= 16 {
					cur.KeyID = fpr[len(fpr)-16:]
				}
				expectingPrimaryFpr = false
			} else {
				if len(fpr) >= 16 {
					cur.Subkeys = append(cur.Subkeys, fpr[len(fpr)-16:])
				}
			}
		}
	}
	if cur != nil {
		keys = append(keys, *cur)
	}
	return keys
}

// RestartAgent reloads the GPG agent so no cached passphrase from a
// prior operation taints the next one. Called before the passphrase
// database's startup self-check and after every GPG Sign.
func (d *Driver) RestartAgent(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "gpgconf", "--reload", "gpg-agent")
	if out, err := cmd.CombinedOutput(); err != nil {
		return models.SigningFailed(err, "failed to reload gpg-agent: %s", string(out))
	}
	return nil
}
