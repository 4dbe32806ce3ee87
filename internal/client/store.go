package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SessionStore persiste la sesión entre ejecuciones del cliente.
type SessionStore interface {
	Load() (*Session, error)
	Save(s *Session) error
	Clear() error
}

// FileSessionStore guarda la sesión como JSON en un archivo 0600. La
// escritura es atómica (archivo temporal + rename) para que nunca quede
// una sesión a medio escribir.
type FileSessionStore struct {
	path string
}

func NewFileSessionStore(path string) (*FileSessionStore, error) {
	if path == "" {
		return nil, errors.New("session store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &FileSessionStore{path: path}, nil
}

// Load lee la sesión persistida. Un archivo ausente no es un error:
// simplemente no hay sesión. Un archivo corrupto se descarta.
func (st *FileSessionStore) Load() (*Session, error) {
	data, err := os.ReadFile(st.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		_ = os.Remove(st.path)
		return nil, nil
	}
	if !s.Valid() {
		_ = os.Remove(st.path)
		return nil, nil
	}
	return &s, nil
}

func (st *FileSessionStore) Save(s *Session) error {
	if !s.Valid() {
		return errors.New("refusing to persist a partial session")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, st.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("persisting session: %w", err)
	}
	return nil
}

func (st *FileSessionStore) Clear() error {
	err := os.Remove(st.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
