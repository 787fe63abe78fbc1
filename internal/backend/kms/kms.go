// Package kms implements the remote KMS signing backend: digest
// computation via internal/pgp, a remote Sign RPC, and OpenPGP packet
// wrapping so the result is indistinguishable from a GPG-produced
// signature.
package kms

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"golang.org/x/sync/errgroup"

	"github.com/ralt/signserver/internal/audit"
	"github.com/ralt/signserver/internal/hasher"
	"github.com/ralt/signserver/internal/models"
	"github.com/ralt/signserver/internal/pgp"
)

// KeyMapping pairs a remote key id with the OpenPGP fingerprint it is
// wrapped as.
type KeyMapping struct {
	KMSID          string
	GPGFingerprint string
}

// Upload is one file to be signed.
type Upload struct {
	Filename string
	Content  io.Reader
}

// Backend implements the AWS KMS signing backend.
type Backend struct {
	client         *kms.Client
	algorithm      types.SigningAlgorithmSpec
	maxUploadBytes int64
	maxWorkers     int
	sem            chan struct{}
	audit          *audit.Logger
	byKeyID        map[string]KeyMapping
}

// Config configures Init.
type Config struct {
	Region         string
	AccessKeyID    string
	SecretAccessKey string
	Algorithm      string
	MaxUploadBytes int64
	MaxWorkers     int
	Keys           []KeyMapping
}

// Init validates every configured key with DescribeKey (a non-Enabled
// state warns but does not fail init; a call error is fatal),
// configures the client with 3 adaptive retries and a connection pool
// sized maxWorkers+5, and returns a ready Backend.
func Init(ctx context.Context, cfg Config, auditLog *audit.Logger, log logger) (*Backend, error) {
	transport := &http.Transport{
		MaxIdleConnsPerHost: cfg.MaxWorkers + 5,
		MaxConnsPerHost:     cfg.MaxWorkers + 5,
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.AddWithMaxAttempts(retry.NewAdaptiveMode(), 3)
		}),
		awsconfig.WithHTTPClient(&http.Client{Transport: transport, Timeout: 60 * time.Second}),
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, models.ConfigurationErr(err, "failed to load AWS config")
	}

	client := kms.NewFromConfig(awsCfg)

	byKeyID := make(map[string]KeyMapping, len(cfg.Keys))
	for _, k := range cfg.Keys {
		resp, err := client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(k.KMSID)})
		if err != nil {
			return nil, models.ConfigurationErr(err, "failed to describe KMS key %s", k.KMSID)
		}
		if resp.KeyMetadata.KeyState != types.KeyStateEnabled {
			log.Warnf("kms key %s is in state %s, not Enabled", k.KMSID, resp.KeyMetadata.KeyState)
		}
		byKeyID[k.KMSID] = k
	}

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	return &Backend{
		client:         client,
		algorithm:      types.SigningAlgorithmSpec(cfg.Algorithm),
		maxUploadBytes: cfg.MaxUploadBytes,
		maxWorkers:     maxWorkers,
		sem:            make(chan struct{}, maxWorkers),
		audit:          auditLog,
		byKeyID:        byKeyID,
	}, nil
}

// logger is the minimal interface Init needs from the process logger.
type logger interface {
	Warnf(format string, args ...interface{})
}

// KeyExists reports whether keyid is a configured KMS key.
func (b *Backend) KeyExists(keyid string) bool {
	_, ok := b.byKeyID[keyid]
	return ok
}

// ListKeys returns every configured KMS key id.
func (b *Backend) ListKeys() []string {
	ids := make([]string, 0, len(b.byKeyID))
	for id := range b.byKeyID {
		ids = append(ids, id)
	}
	return ids
}

func (b *Backend) readBounded(r io.Reader) ([]byte, error) {
	limited := io.LimitReader(r, b.maxUploadBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, models.SigningFailed(err, "failed to read upload")
	}
	if int64(len(data)) > b.maxUploadBytes {
		return nil, models.FileTooBig(b.maxUploadBytes)
	}
	return data, nil
}

// Sign produces an OpenPGP signature over upload via the remote KMS
// key. rawSignature, when true, skips the OpenPGP hash pipeline
// entirely and returns base64(signature) — this capability exists but
// is never routed through an HTTP endpoint.
func (b *Backend) Sign(ctx context.Context, keyid string, upload Upload, detached bool, algo models.DigestAlgo, rawSignature bool) (string, error) {
	mapping, ok := b.byKeyID[keyid]
	if !ok {
		return "", models.BadRequest("unknown keyid %s", keyid)
	}

	content, err := b.readBounded(upload.Content)
	if err != nil {
		return "", err
	}

	fingerprint, err := hex.DecodeString(mapping.GPGFingerprint)
	if err != nil {
		return "", models.SigningFailed(err, "invalid gpg_fingerprint for key %s", keyid)
	}

	preHash := hasher.SHA256Bytes(content)

	var digest []byte
	var hashedSubpackets []byte
	sigType := pgp.SigBinary
	if !detached {
		sigType = pgp.SigText
	}

	if rawSignature {
		digest = rawDigest(content, algo)
	} else {
		prepared := pgp.PrepareContent(content, sigType)
		digest, hashedSubpackets, _, err = pgp.Digest(prepared, sigType, algo, time.Now().Unix(), fingerprint)
		if err != nil {
			return "", models.SigningFailed(err, "failed to compute signature digest")
		}
	}

	raw, err := b.signDigest(ctx, keyid, digest)

	status := audit.StatusSuccess
	if err != nil {
		status = audit.StatusFailed
	}
	// PostHash is omitted for the KMS backend: there is no local temp
	// file to re-hash after a remote Sign call.
	b.audit.Record(audit.Entry{
		Filename: upload.Filename,
		PreHash:  preHash,
		KeyID:    keyid,
		Status:   status,
	})
	if err != nil {
		return "", err
	}

	if rawSignature {
		return base64.StdEncoding.EncodeToString(raw), nil
	}

	packet := pgp.BuildV4SignaturePacket(sigType, algo.RFC4880ID(), hashedSubpackets, fingerprint, raw)
	armored := pgp.Armor(packet)

	if detached {
		return string(armored), nil
	}
	return string(pgp.Cleartext(algo.String(), content, armored)), nil
}

func rawDigest(content []byte, algo models.DigestAlgo) []byte {
	// raw_signature path hashes content directly with no OpenPGP
	// framing.
	switch algo {
	case models.SHA384:
		sum := sha512.Sum384(content)
		return sum[:]
	case models.SHA512:
		sum := sha512.Sum512(content)
		return sum[:]
	default:
		sum := sha256.Sum256(content)
		return sum[:]
	}
}

// signDigest acquires a worker-pool slot (a bounded channel
// semaphore) and invokes the remote Sign RPC.
func (b *Backend) signDigest(ctx context.Context, keyid string, digest []byte) ([]byte, error) {
	select {
	case b.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, models.Canceled(ctx.Err())
	}
	defer func() { <-b.sem }()

	out, err := b.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(keyid),
		Message:          digest,
		MessageType:      types.MessageTypeDigest,
		SigningAlgorithm: b.algorithm,
	})
	if err != nil {
		return nil, models.SigningFailed(err, "KMS Sign failed for key %s", keyid)
	}
	return out.Signature, nil
}

// SignBatch fans out over the worker pool; the first error cancels
// the group's context and propagates, failing fast. No cross-process
// lock is taken: the remote service already serializes signing
// operations on its end.
func (b *Backend) SignBatch(ctx context.Context, keyid string, uploads []Upload, detached bool, algo models.DigestAlgo) ([]models.SignResult, error) {
	if _, ok := b.byKeyID[keyid]; !ok {
		return nil, models.BadRequest("unknown keyid %s", keyid)
	}

	results := make([]models.SignResult, len(uploads))
	g, gctx := errgroup.WithContext(ctx)

	for i, up := range uploads {
		i, up := i, up
		g.Go(func() error {
			sig, err := b.Sign(gctx, keyid, Upload{Filename: up.Filename, Content: up.Content}, detached, algo, false)
			if err != nil {
				return err
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
