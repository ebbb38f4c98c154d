package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/jrsteele09/go-auth-client/internal/errors"
	pkgerrors "github.com/pkg/errors"
)

var _ Store = (*FileStore)(nil)

// FileStore keeps the pair in a single JSON document on disk, optionally sealed.
type FileStore struct {
	path   string
	sealer *Sealer
	lock   sync.Mutex
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithSealer encrypts the document at rest.
func WithSealer(s *Sealer) FileStoreOption {
	return func(store *FileStore) {
		store.sealer = s
	}
}

// NewFileStore creates a store backed by the file at path. The file is created on first Save.
func NewFileStore(path string, options ...FileStoreOption) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, pkgerrors.New("[NewFileStore] path is required")
	}
	store := &FileStore{path: path}
	for _, opt := range options {
		opt(store)
	}
	return store, nil
}

// Path returns the file the store writes to.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Save(_ context.Context, pair Pair) error {
	if err := validate(pair); err != nil {
		return err
	}

	data, err := json.Marshal(pair)
	if err != nil {
		return pkgerrors.Wrap(err, "[FileStore.Save] marshal credentials")
	}
	if f.sealer != nil {
		sealed, err := f.sealer.Seal(data)
		if err != nil {
			return pkgerrors.Wrap(err, "[FileStore.Save] seal credentials")
		}
		data = []byte(sealed)
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	return writeFileAtomic(f.path, data)
}

func (f *FileStore) Load(_ context.Context) (Pair, bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Pair{}, false, nil
	}
	if err != nil {
		return Pair{}, false, pkgerrors.Wrap(err, "[FileStore.Load] read credentials")
	}

	if f.sealer != nil {
		data, err = f.sealer.Open(strings.TrimSpace(string(data)))
		if err != nil {
			return Pair{}, false, err
		}
	}

	var pair Pair
	if err := json.Unmarshal(data, &pair); err != nil {
		return Pair{}, false, apperrors.Wrapf(apperrors.ErrCorruptCredentials, "[FileStore.Load] %v", err)
	}
	if !pair.Valid() {
		return Pair{}, false, nil
	}
	return pair, true, nil
}

func (f *FileStore) Clear(_ context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return pkgerrors.Wrap(err, "[FileStore.Clear] remove credentials")
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return pkgerrors.Wrap(err, "create credentials directory")
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return pkgerrors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return pkgerrors.Wrap(err, "chmod temp file")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return pkgerrors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return pkgerrors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return pkgerrors.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return pkgerrors.Wrap(err, "rename temp file")
	}
	return nil
}
