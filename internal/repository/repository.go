package repository

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/skyline93/svdag/internal/backend"
	"github.com/skyline93/svdag/internal/backend/cache"
	"github.com/skyline93/svdag/internal/svdag"
)

// Options configures a Repository.
type Options struct {
	Compression CompressionMode
}

// CompressionMode configures if data should be compressed.
type CompressionMode uint

// Constants for the different compression levels.
const (
	CompressionAuto    CompressionMode = 0
	CompressionOff     CompressionMode = 1
	CompressionMax     CompressionMode = 2
	CompressionInvalid CompressionMode = 3
)

// Set implements the method needed for pflag command flag parsing.
func (c *CompressionMode) Set(s string) error {
	switch s {
	case "auto":
		*c = CompressionAuto
	case "off":
		*c = CompressionOff
	case "max":
		*c = CompressionMax
	default:
		*c = CompressionInvalid
		return errors.Errorf("invalid compression mode %q, must be one of (auto|off|max)", s)
	}
	return nil
}

func (c *CompressionMode) String() string {
	switch *c {
	case CompressionAuto:
		return "auto"
	case CompressionOff:
		return "off"
	case CompressionMax:
		return "max"
	default:
		return "invalid"
	}
}

// Type implements the method needed for pflag command flag parsing.
func (c *CompressionMode) Type() string {
	return "mode"
}

// compressedMarker starts every compressed payload. It is never a valid graph
// depth, so raw and compressed artifacts can be told apart by the first byte.
const compressedMarker = 0xff

var (
	// ErrInvalidData is returned when stored data does not match its ID.
	ErrInvalidData = errors.New("invalid data returned")

	// ErrNoIDPrefixFound is returned by Find when no ID matches a prefix.
	ErrNoIDPrefixFound = errors.New("no matching ID found")

	// ErrMultipleIDMatches is returned by Find when a prefix is ambiguous.
	ErrMultipleIDMatches = errors.New("multiple IDs with prefix found")
)

// Repository stores encoded graphs and the scenes they were built from in a
// backend, addressed by the hash of their uncompressed content.
type Repository struct {
	be   backend.Backend
	opts Options

	allocEnc sync.Once
	allocDec sync.Once
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// New returns a new repository with backend be.
func New(be backend.Backend, opts Options) (*Repository, error) {
	if opts.Compression == CompressionInvalid {
		return nil, errors.New("invalid compression mode")
	}

	repo := &Repository{
		be:   be,
		opts: opts,
	}

	return repo, nil
}

// Backend returns the backend for the repository.
func (r *Repository) Backend() backend.Backend {
	return r.be
}

// Connections returns the maximum number of concurrent backend operations.
func (r *Repository) Connections() uint {
	return r.be.Connections()
}

// SaveGraph encodes g and stores it. Storing a graph that is already present
// is a no-op that returns the same ID.
func (r *Repository) SaveGraph(ctx context.Context, g *svdag.Svdag) (svdag.ID, error) {
	buf, err := g.MarshalBinary()
	if err != nil {
		return svdag.ID{}, err
	}
	return r.saveUnpacked(ctx, backend.GraphFile, buf)
}

// LoadGraph loads and decodes the graph with the given ID.
func (r *Repository) LoadGraph(ctx context.Context, id svdag.ID) (*svdag.Svdag, error) {
	buf, err := r.loadUnpacked(ctx, backend.GraphFile, id)
	if err != nil {
		return nil, err
	}

	g := &svdag.Svdag{}
	if err := g.UnmarshalBinary(buf); err != nil {
		return nil, errors.Wrapf(err, "graph %v", id.Str())
	}
	return g, nil
}

// SaveScene stores the scene description a graph was built from.
func (r *Repository) SaveScene(ctx context.Context, data []byte) (svdag.ID, error) {
	return r.saveUnpacked(ctx, backend.SceneFile, data)
}

// LoadScene returns the scene description with the given ID.
func (r *Repository) LoadScene(ctx context.Context, id svdag.ID) ([]byte, error) {
	return r.loadUnpacked(ctx, backend.SceneFile, id)
}

// ListGraphs runs fn for all stored graphs with their stored size.
func (r *Repository) ListGraphs(ctx context.Context, fn func(svdag.ID, int64) error) error {
	return r.List(ctx, backend.GraphFile, fn)
}

// List runs fn for all files of type t in the repo.
func (r *Repository) List(ctx context.Context, t backend.FileType, fn func(svdag.ID, int64) error) error {
	return r.be.List(ctx, t, func(fi backend.FileInfo) error {
		id, err := svdag.ParseID(fi.Name)
		if err != nil {
			log.Debugf("unable to parse %v as an ID", fi.Name)
			return nil
		}
		return fn(id, fi.Size)
	})
}

// Find returns the ID of the file of type t whose name starts with prefix.
func (r *Repository) Find(ctx context.Context, t backend.FileType, prefix string) (svdag.ID, error) {
	var match svdag.ID
	found := false

	err := r.List(ctx, t, func(id svdag.ID, _ int64) error {
		if !strings.HasPrefix(id.String(), prefix) {
			return nil
		}
		if found {
			return errors.Wrapf(ErrMultipleIDMatches, "prefix %q", prefix)
		}
		match, found = id, true
		return nil
	})
	if err != nil {
		return svdag.ID{}, err
	}
	if !found {
		return svdag.ID{}, errors.Wrapf(ErrNoIDPrefixFound, "%v prefix %q", t, prefix)
	}
	return match, nil
}

// IsCompressed reports whether the stored graph with the given ID is
// compressed, by reading only its first byte.
func (r *Repository) IsCompressed(ctx context.Context, t backend.FileType, id svdag.ID) (bool, error) {
	var hdr [1]byte
	h := backend.Handle{Type: t, Name: id.String()}
	if _, err := backend.ReadAt(ctx, r.be, h, 0, hdr[:]); err != nil {
		return false, err
	}
	return hdr[0] == compressedMarker, nil
}

func (r *Repository) saveUnpacked(ctx context.Context, t backend.FileType, p []byte) (svdag.ID, error) {
	id := svdag.Hash(p)
	h := backend.Handle{Type: t, Name: id.String()}

	if _, err := r.be.Stat(ctx, h); err == nil {
		log.Debugf("%v already stored", h)
		return id, nil
	} else if !r.be.IsNotExist(err) {
		return svdag.ID{}, err
	}

	payload := r.compressUnpacked(p)

	err := r.be.Save(ctx, h, backend.NewByteReader(payload, r.be.Hasher()))
	if err != nil {
		log.Debugf("error saving %v: %v", h, err)
		return svdag.ID{}, err
	}

	log.Infof("%v saved (%d bytes stored)", h, len(payload))
	return id, nil
}

func (r *Repository) compressUnpacked(p []byte) []byte {
	if r.opts.Compression == CompressionOff {
		return p
	}

	out := make([]byte, 1, len(p)/2+1)
	out[0] = compressedMarker
	out = r.getZstdEncoder().EncodeAll(p, out)

	// small graphs are not worth a decoder round trip
	if r.opts.Compression == CompressionAuto && len(out) >= len(p) {
		return p
	}
	return out
}

func (r *Repository) getZstdEncoder() *zstd.Encoder {
	r.allocEnc.Do(func() {
		level := zstd.SpeedDefault
		if r.opts.Compression == CompressionMax {
			level = zstd.SpeedBestCompression
		}

		opts := []zstd.EOption{
			// Set the compression level configured.
			zstd.WithEncoderLevel(level),
			// Disable CRC, the content hash is checked on load anyway.
			zstd.WithEncoderCRC(false),
			zstd.WithWindowSize(512 * 1024),
		}

		enc, err := zstd.NewWriter(nil, opts...)
		if err != nil {
			panic(err)
		}
		r.enc = enc
	})
	return r.enc
}

// loadUnpacked loads the file with the given type and ID and returns its
// uncompressed content. Data that does not match its ID is loaded a second
// time before ErrInvalidData is returned.
func (r *Repository) loadUnpacked(ctx context.Context, t backend.FileType, id svdag.ID) ([]byte, error) {
	log.Debugf("load %v with id %v", t, id.Str())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h := backend.Handle{Type: t, Name: id.String()}
	retriedInvalidData := false
	var dataErr error
	var plaintext []byte
	wr := new(bytes.Buffer)

	err := r.be.Load(ctx, h, 0, 0, func(rd io.Reader) error {
		// make sure this call is idempotent, in case an error occurs
		wr.Reset()
		_, cerr := io.Copy(wr, rd)
		if cerr != nil {
			return cerr
		}

		buf, derr := r.decompressUnpacked(wr.Bytes())
		if derr == nil && svdag.Hash(buf) == id {
			plaintext = buf
			return nil
		}

		log.Debugf("retry loading broken file %v", h)
		if !retriedInvalidData {
			retriedInvalidData = true
			r.forgetCached(h)
		} else {
			// with a canceled context there is not guarantee which error will
			// be returned by `be.Load`.
			dataErr = errors.Wrapf(ErrInvalidData, "load(%v)", h)
			cancel()
		}
		return ErrInvalidData
	})

	if dataErr != nil {
		return nil, dataErr
	}
	if err != nil {
		return nil, err
	}
	return plaintext, nil
}

// forgetCached drops a broken cached copy of h so the retry reads from the
// backend itself.
func (r *Repository) forgetCached(h backend.Handle) {
	c := backend.AsBackend[*cache.Backend](r.be)
	if c == nil {
		return
	}
	if err := c.Forget(h); err != nil {
		log.Debugf("unable to remove %v from the cache: %v", h, err)
	}
}

func (r *Repository) decompressUnpacked(p []byte) ([]byte, error) {
	if len(p) == 0 || p[0] != compressedMarker {
		return bytes.Clone(p), nil
	}
	return r.getZstdDecoder().DecodeAll(p[1:], nil)
}

func (r *Repository) getZstdDecoder() *zstd.Decoder {
	r.allocDec.Do(func() {
		opts := []zstd.DOption{
			// Use all available cores.
			zstd.WithDecoderConcurrency(0),
			// A depth 10 graph is far below this.
			zstd.WithDecoderMaxMemory(1 << 30),
		}

		dec, err := zstd.NewReader(nil, opts...)
		if err != nil {
			panic(err)
		}
		r.dec = dec
	})
	return r.dec
}
