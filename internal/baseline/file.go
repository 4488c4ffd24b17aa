package baseline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"filippo.io/age"
	"github.com/IvanShishkin/tamperhound/pkg/models"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// FileStoreOptions configures the optional encryption layer
type FileStoreOptions struct {
	IdentityFile string   // age identity file used to decrypt .age baselines
	Recipients   []string // age recipients used when saving .age baselines
}

// FileStore reads a baseline document from a single file
type FileStore struct {
	path   string
	opts   FileStoreOptions
	logger *zap.Logger
}

// NewFileStore creates a store for the baseline at path
func NewFileStore(path string, opts FileStoreOptions, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:   path,
		opts:   opts,
		logger: logger,
	}
}

// Source returns the baseline file path
func (s *FileStore) Source() string {
	return s.path
}

// Load reads, decodes and validates the baseline
func (s *FileStore) Load(ctx context.Context) (*models.Baseline, error) {
	doc, err := s.ReadDocument(ctx)
	if err != nil {
		return nil, err
	}

	b, err := doc.Baseline()
	if err != nil {
		return nil, &BaselineLoadError{Source: s.path, Err: err}
	}

	s.logger.Info("Loaded baseline",
		zap.String("source", s.path),
		zap.Int("entries", b.Len()))
	return b, nil
}

// ReadDocument reads and decodes the raw document without validating entries
func (s *FileStore) ReadDocument(ctx context.Context) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &BaselineLoadError{Source: s.path, Err: err}
	}

	l, err := parseLayout(s.path)
	if err != nil {
		return nil, &BaselineLoadError{Source: s.path, Err: err}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%w: %w", ErrBaselineNotFound, err)
		}
		return nil, &BaselineLoadError{Source: s.path, Err: err}
	}

	if l.encrypted {
		data, err = s.decrypt(data)
		if err != nil {
			return nil, &BaselineLoadError{Source: s.path, Err: err}
		}
	}
	if l.compressed {
		data, err = decompress(data)
		if err != nil {
			return nil, &BaselineLoadError{Source: s.path, Err: err}
		}
	}

	doc, err := decodeDocument(l.format, data)
	if err != nil {
		return nil, &BaselineLoadError{Source: s.path, Err: err}
	}
	return doc, nil
}

// Save writes doc in the layout implied by the file name. The file is
// replaced atomically.
func (s *FileStore) Save(doc *Document) error {
	l, err := parseLayout(s.path)
	if err != nil {
		return err
	}

	data, err := encodeDocument(l.format, doc)
	if err != nil {
		return fmt.Errorf("encoding baseline: %w", err)
	}
	if l.compressed {
		if data, err = compress(data); err != nil {
			return err
		}
	}
	if l.encrypted {
		if data, err = s.encrypt(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".baseline-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return err
	}

	s.logger.Info("Saved baseline",
		zap.String("path", s.path),
		zap.Int("entries", len(doc.Entries)))
	return nil
}

func (s *FileStore) decrypt(data []byte) ([]byte, error) {
	if s.opts.IdentityFile == "" {
		return nil, errors.New("encrypted baseline requires an identity file")
	}

	f, err := os.Open(s.opts.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("opening identity file: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parsing identity file: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(data), identities...)
	if err != nil {
		return nil, fmt.Errorf("decrypting baseline: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted baseline: %w", err)
	}
	return plaintext, nil
}

func (s *FileStore) encrypt(data []byte) ([]byte, error) {
	if len(s.opts.Recipients) == 0 {
		return nil, errors.New("encrypted baseline requires at least one recipient")
	}

	recipients := make([]age.Recipient, 0, len(s.opts.Recipients))
	for _, key := range s.opts.Recipients {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipients...)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("encrypting baseline: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()

	out, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("decompressing baseline: %w", err)
	}
	return out, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return nil, fmt.Errorf("compressing baseline: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("compressing baseline: %w", err)
	}
	return buf.Bytes(), nil
}
