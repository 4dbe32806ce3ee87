package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound indica que la clave no existe en el backend.
var ErrNotFound = errors.New("blob not found")

// Backend abstrae dónde viven los PDF (disco local o S3).
type Backend interface {
	// Save guarda el archivo local srcPath bajo key.
	Save(ctx context.Context, key, srcPath string) error
	// Open devuelve el contenido almacenado bajo key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete elimina el contenido de key. Borrar una clave inexistente no es error.
	Delete(ctx context.Context, key string) error
	// Exists indica si key tiene contenido almacenado.
	Exists(ctx context.Context, key string) (bool, error)
}
