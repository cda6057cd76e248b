// Package avatar is the profile-image pipeline: raw upload bytes in, a public
// URL of a normalized image out.
package avatar

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"

	id "renavam/pkg/domain"
	dErrors "renavam/pkg/domain-errors"
)

const (
	// Every stored avatar is a square JPEG of this edge length.
	Dimension = 512

	jpegQuality = 85
	contentType = "image/jpeg"
)

// BlobStore persists avatar blobs under a key and returns the public URL to
// read them back.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Normalize decodes JPEG or PNG bytes, center-crop scales them to a
// Dimension-sized square and re-encodes as JPEG. Undecodable input is
// invalid input, never a server failure.
func Normalize(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "image error")
	}

	square := imaging.Fill(img, Dimension, Dimension, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, square, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "image error")
	}
	return buf.Bytes(), nil
}

// Pipeline normalizes and stores avatars. It satisfies the identity service's
// uploader contract.
type Pipeline struct {
	blobs BlobStore
}

func NewPipeline(blobs BlobStore) *Pipeline {
	return &Pipeline{blobs: blobs}
}

// Upload normalizes data and stores it keyed by the user id. Re-uploading
// overwrites the previous avatar under the same key.
func (p *Pipeline) Upload(ctx context.Context, userID id.UserID, data []byte) (string, error) {
	normalized, err := Normalize(data)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("avatars/%s.jpg", userID.String())
	url, err := p.blobs.Put(ctx, key, normalized, contentType)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not store image")
	}
	return url, nil
}
