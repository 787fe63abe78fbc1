// Package backend defines the uniform signing backend interface and
// the process-wide, one-shot-initialized facade that resolves to
// either the GPG or the KMS implementation.
package backend

import (
	"context"
	"io"

	"github.com/ralt/signserver/internal/models"
)

// Upload is one file to be signed, shared by both backend
// implementations' Sign/SignBatch signatures.
type Upload struct {
	Filename string
	Content  io.Reader
}

// Backend is the uniform interface every HTTP handler signs through.
type Backend interface {
	KeyExists(keyid string) bool
	ListKeys() []string
	Sign(ctx context.Context, keyid string, upload Upload, detached bool, algo models.DigestAlgo) (string, error)
	SignBatch(ctx context.Context, keyid string, uploads []Upload, detached bool, algo models.DigestAlgo) ([]models.SignResult, error)
}
