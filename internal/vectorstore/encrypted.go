package vectorstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"math"

	"github.com/sourcelens/sourcelens/internal/coreerr"
)

// EncryptedStore is a decorator that encrypts metadata values with
// AES-GCM and adds a sealed copy of each vector's values before
// delegating to an inner Store, and decrypts on the way out. The inner
// store still receives the raw vector values, which its similarity
// search runs on (see SearchSimilar). It never implements storage
// itself; it only transforms payloads around a real backend (in-memory
// or HNSW).
type EncryptedStore struct {
	inner Store
	gcm   cipher.AEAD
}

// NewEncryptedStore wraps inner with AES-GCM encryption keyed by key,
// which must be 16, 24, or 32 bytes (AES-128/192/256).
func NewEncryptedStore(inner Store, key []byte) (*EncryptedStore, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, coreerr.Wrap("vectorstore", coreerr.Configuration, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, coreerr.Wrap("vectorstore", coreerr.Configuration, err)
	}
	return &EncryptedStore{inner: inner, gcm: gcm}, nil
}

func (s *EncryptedStore) seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, coreerr.Wrap("vectorstore", coreerr.Internal, err)
	}
	return s.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *EncryptedStore) open(sealed []byte) ([]byte, error) {
	nonceSize := s.gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, coreerr.New(coreerr.Internal, "vectorstore: ciphertext too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, coreerr.Wrap("vectorstore", coreerr.Internal, err)
	}
	return plaintext, nil
}

func floatsToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.BigEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToFloats(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.BigEndian.Uint32(b[i*4 : i*4+4]))
	}
	return out
}

// Because the inner store validates vector dimensionality, ciphertext
// bytes are carried as a base64 string stashed in metadata rather than
// reinterpreted as floats; encryptForStorage implements that.
func (s *EncryptedStore) encryptForStorage(v Vector) (Vector, error) {
	sealed, err := s.seal(floatsToBytes(v.Values))
	if err != nil {
		return Vector{}, err
	}
	encMeta := make(map[string]string, len(v.Metadata)+1)
	for k, val := range v.Metadata {
		sealedVal, err := s.seal([]byte(val))
		if err != nil {
			return Vector{}, err
		}
		encMeta[k] = base64.StdEncoding.EncodeToString(sealedVal)
	}
	encMeta["__sealed_values__"] = base64.StdEncoding.EncodeToString(sealed)
	return Vector{ID: v.ID, Values: v.Values, Metadata: encMeta}, nil
}

func (s *EncryptedStore) decryptFromStorage(v Vector) (Vector, error) {
	decMeta := make(map[string]string, len(v.Metadata))
	var values []float32
	for k, val := range v.Metadata {
		raw, err := base64.StdEncoding.DecodeString(val)
		if err != nil {
			return Vector{}, coreerr.Wrap("vectorstore", coreerr.Internal, err)
		}
		plain, err := s.open(raw)
		if err != nil {
			return Vector{}, err
		}
		if k == "__sealed_values__" {
			values = bytesToFloats(plain)
			continue
		}
		decMeta[k] = string(plain)
	}
	return Vector{ID: v.ID, Values: values, Metadata: decMeta}, nil
}

func (s *EncryptedStore) CreateCollection(ctx context.Context, name string, dimensions int) error {
	return s.inner.CreateCollection(ctx, name, dimensions)
}

func (s *EncryptedStore) DeleteCollection(ctx context.Context, name string) error {
	return s.inner.DeleteCollection(ctx, name)
}

func (s *EncryptedStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return s.inner.CollectionExists(ctx, name)
}

func (s *EncryptedStore) InsertVectors(ctx context.Context, collection string, vectors []Vector) ([]string, error) {
	encrypted := make([]Vector, len(vectors))
	for i, v := range vectors {
		ev, err := s.encryptForStorage(v)
		if err != nil {
			return nil, err
		}
		encrypted[i] = ev
	}
	return s.inner.InsertVectors(ctx, collection, encrypted)
}

// SearchSimilar cannot be performed on ciphertext: the plaintext query
// vector is searched against the inner store's own vectors, which are
// raw (unencrypted) so the backend's distance metric still works. Only
// metadata and retrieved values are encrypted at rest, leaving the
// fields a downstream component must still operate on untouched.
func (s *EncryptedStore) SearchSimilar(ctx context.Context, collection string, query []float32, k int, filter Filter) ([]Result, error) {
	results, err := s.inner.SearchSimilar(ctx, collection, query, k, nil)
	if err != nil {
		return nil, err
	}
	out := make([]Result, 0, len(results))
	for _, r := range results {
		v, err := s.decryptFromStorage(Vector{ID: r.ID, Metadata: r.Metadata})
		if err != nil {
			return nil, err
		}
		if filter != nil && !filter.Match(v.Metadata) {
			continue
		}
		out = append(out, Result{ID: r.ID, Score: r.Score, Metadata: v.Metadata})
	}
	return out, nil
}

func (s *EncryptedStore) DeleteVectors(ctx context.Context, collection string, ids []string) error {
	return s.inner.DeleteVectors(ctx, collection, ids)
}

func (s *EncryptedStore) GetVectorsByIDs(ctx context.Context, collection string, ids []string) ([]Vector, error) {
	raw, err := s.inner.GetVectorsByIDs(ctx, collection, ids)
	if err != nil {
		return nil, err
	}
	return s.decryptBatch(raw)
}

func (s *EncryptedStore) ListVectors(ctx context.Context, collection string, limit int) ([]Vector, error) {
	raw, err := s.inner.ListVectors(ctx, collection, limit)
	if err != nil {
		return nil, err
	}
	return s.decryptBatch(raw)
}

func (s *EncryptedStore) decryptBatch(raw []Vector) ([]Vector, error) {
	out := make([]Vector, len(raw))
	for i, v := range raw {
		dv, err := s.decryptFromStorage(v)
		if err != nil {
			return nil, err
		}
		dv.ID = v.ID
		out[i] = dv
	}
	return out, nil
}

func (s *EncryptedStore) GetStats(ctx context.Context, collection string) (map[string]int, error) {
	return s.inner.GetStats(ctx, collection)
}

func (s *EncryptedStore) Flush(ctx context.Context, collection string) error {
	return s.inner.Flush(ctx, collection)
}

func (s *EncryptedStore) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	return s.inner.ListCollections(ctx)
}

// ListFilePaths cannot apply the inner store's file_path index directly
// since metadata is encrypted at rest; it decrypts every vector's
// metadata instead. Collections wrapped in EncryptedStore are expected
// to be small enough that this is acceptable: encryption is opt-in for
// sensitive/private collections, not the default hot path.
func (s *EncryptedStore) ListFilePaths(ctx context.Context, collection string, limit int) ([]string, error) {
	all, err := s.inner.ListVectors(ctx, collection, 0)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var out []string
	for _, v := range all {
		dv, err := s.decryptFromStorage(v)
		if err != nil {
			return nil, err
		}
		fp := dv.Metadata["file_path"]
		if fp == "" {
			continue
		}
		if _, ok := seen[fp]; ok {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, fp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *EncryptedStore) GetChunksByFile(ctx context.Context, collection string, filePath string) ([]Vector, error) {
	all, err := s.inner.ListVectors(ctx, collection, 0)
	if err != nil {
		return nil, err
	}
	var out []Vector
	for _, v := range all {
		dv, err := s.decryptFromStorage(v)
		if err != nil {
			return nil, err
		}
		if dv.Metadata["file_path"] != filePath {
			continue
		}
		dv.ID = v.ID
		out = append(out, dv)
	}
	return out, nil
}
