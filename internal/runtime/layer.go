package runtime

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/pkg/archive/compression"
	"github.com/containerd/errdefs"
	"github.com/cruciblehq/eosimg/internal/descriptor"
	"github.com/klauspost/compress/gzip"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

var (
	bzip2Magic = []byte{'B', 'Z', 'h'}
	xzMagic    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Layer blob stored in the content store.
type layerBlob struct {
	desc   ocispec.Descriptor // Descriptor of the compressed blob.
	diffID digest.Digest      // Digest of the uncompressed tar stream.
}

// Returns a reader over the uncompressed contents of an archive.
//
// Gzip and zstd are handled by containerd's decompressor and bzip2 by the
// standard library. Anything else is read as a plain tar stream, except xz,
// which is rejected with [ErrUnsupportedCompression].
func decompress(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(xzMagic))
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch {
	case bytes.HasPrefix(magic, xzMagic):
		return nil, fmt.Errorf("%w: xz", ErrUnsupportedCompression)
	case bytes.HasPrefix(magic, bzip2Magic):
		return io.NopCloser(bzip2.NewReader(br)), nil
	}

	return compression.DecompressStream(br)
}

// Writes an uncompressed tar stream to the content store as a gzip layer.
//
// The blob is staged under ref and committed with its computed digest. A
// blob that already exists is reused.
func (rt *Runtime) writeLayer(ctx context.Context, r io.Reader, mediaType, ref string) (layerBlob, error) {
	w, err := content.OpenWriter(ctx, rt.store.ContentStore(), content.WithRef(ref))
	if err != nil {
		return layerBlob{}, err
	}
	defer w.Close()

	// Discard partial data left by an interrupted write under the same ref.
	if err := w.Truncate(0); err != nil {
		return layerBlob{}, err
	}

	desc, diffID, err := compressLayer(w, r)
	if err != nil {
		return layerBlob{}, err
	}
	desc.MediaType = mediaType

	if err := w.Commit(ctx, desc.Size, desc.Digest); err != nil && !errdefs.IsAlreadyExists(err) {
		return layerBlob{}, err
	}

	return layerBlob{desc: desc, diffID: diffID}, nil
}

// Builds the layer holding the descriptor's overlay files.
func (rt *Runtime) overlayLayer(ctx context.Context, d *descriptor.Descriptor, mediaType, name string, modTime time.Time) (layerBlob, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	if err := d.WriteFiles(tw, layerPath, modTime); err != nil {
		return layerBlob{}, err
	}
	if err := tw.Close(); err != nil {
		return layerBlob{}, err
	}

	return rt.writeLayer(ctx, &buf, mediaType, name+"-overlay")
}

// Gzip-compresses src into dst.
//
// Returns a descriptor with the digest and size of the compressed bytes and
// the diff ID, the digest of the uncompressed bytes. The media type is left
// for the caller.
func compressLayer(dst io.Writer, src io.Reader) (ocispec.Descriptor, digest.Digest, error) {
	compressed := digest.Canonical.Digester()
	counter := &countingWriter{w: io.MultiWriter(dst, compressed.Hash())}

	gz := gzip.NewWriter(counter)
	uncompressed := digest.Canonical.Digester()
	if _, err := io.Copy(io.MultiWriter(gz, uncompressed.Hash()), src); err != nil {
		return ocispec.Descriptor{}, "", err
	}
	if err := gz.Close(); err != nil {
		return ocispec.Descriptor{}, "", err
	}

	desc := ocispec.Descriptor{
		Digest: compressed.Digest(),
		Size:   counter.n,
	}
	return desc, uncompressed.Digest(), nil
}

// Returns the in-layer path of an overlay file: its destination, cleaned
// and relative to the root.
func layerPath(f descriptor.File) string {
	return strings.TrimPrefix(path.Clean("/"+f.Dest), "/")
}

// Counts the bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
