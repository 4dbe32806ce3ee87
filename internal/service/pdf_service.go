package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"camps-pdf/internal/domain"
)

var ErrNotPDF = errors.New("el archivo no es un PDF valido")

// PDFService valida, inspecciona y sella archivos PDF.
type PDFService struct {
	conf        *model.Configuration
	companyName string
	location    string
}

// NewPDFService crea una instancia de PDFService con dependencias necesarias.
func NewPDFService(companyName, location string) *PDFService {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFService{conf: conf, companyName: companyName, location: location}
}

// Validate verifica que el archivo sea un PDF bien formado.
func (s *PDFService) Validate(path string) error {
	if err := api.ValidateFile(path, s.conf); err != nil {
		return fmt.Errorf("%w: %v", ErrNotPDF, err)
	}
	return nil
}

// PageCount devuelve la cantidad de paginas del PDF.
func (s *PDFService) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("contando paginas: %w", err)
	}
	return n, nil
}

// HashSHA256 calcula el hash del archivo en streaming.
func (s *PDFService) HashSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// StampMetadata escribe una copia del PDF con las propiedades del documento
// en el diccionario de informacion, incluida la entrada Custom con
// identificador y prefijo del hash.
func (s *PDFService) StampMetadata(srcPath, dstPath string, doc *domain.Document) error {
	props := map[string]string{
		"Title":    doc.DisplayTitle(),
		"Author":   doc.Author,
		"Producer": s.companyName,
		"Custom":   s.customEntry(doc),
	}
	if doc.Subject != "" {
		props["Subject"] = doc.Subject
	}
	if doc.DocType != "" {
		props["Keywords"] = doc.DocType
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return err
	}
	if err := copyFile(srcPath, dstPath); err != nil {
		return err
	}
	if err := api.AddPropertiesFile(dstPath, "", props, s.conf); err != nil {
		return fmt.Errorf("sellando metadatos: %w", err)
	}
	return nil
}

// Merge concatena varios PDF en un solo archivo.
func (s *PDFService) Merge(srcPaths []string, dstPath string) error {
	if len(srcPaths) < 2 {
		return errors.New("se necesitan al menos dos archivos para combinar")
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return err
	}
	if err := api.MergeCreateFile(srcPaths, dstPath, false, s.conf); err != nil {
		return fmt.Errorf("combinando archivos: %w", err)
	}
	return nil
}

func (s *PDFService) customEntry(doc *domain.Document) string {
	hashPrefix := doc.HashSHA256
	if len(hashPrefix) > 16 {
		hashPrefix = hashPrefix[:16]
	}
	parts := []string{
		fmt.Sprintf("ID:%s", doc.Identifier),
		fmt.Sprintf("Hash:%s", hashPrefix),
	}
	if s.location != "" {
		parts = append(parts, fmt.Sprintf("Loc:%s", s.location))
	}
	parts = append(parts, fmt.Sprintf("Stamped:%s", time.Now().UTC().Format("2006-01-02")))
	return strings.Join(parts, ";")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
