package domain

import "time"

// Estados del ciclo de vida de un documento.
const (
	DocumentStatusUploaded      = "uploaded"
	DocumentStatusMetadataAdded = "metadata_added"
	DocumentStatusSigned        = "signed"
)

type Document struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`

	Title       string `json:"title"`
	Author      string `json:"author"`
	Subject     string `json:"subject"`
	DocType     string `json:"doc_type"`
	Responsible string `json:"responsible"`

	DigitalizationDate     time.Time `json:"digitalization_date"`
	DigitalizationLocation string    `json:"digitalization_location"`
	DigitizerName          string    `json:"digitizer_name,omitempty"`
	DigitizerCPFCNPJ       string    `json:"digitizer_cpf_cnpj,omitempty"`
	ResolutionDPI          int       `json:"resolution_dpi,omitempty"`
	EquipmentInfo          string    `json:"equipment_info,omitempty"`
	CompanyName            string    `json:"company_name,omitempty"`
	CompanyCNPJ            string    `json:"company_cnpj,omitempty"`

	OriginalFilename string `json:"original_filename"`
	StorageKey       string `json:"-"`
	ProcessedKey     string `json:"-"`
	HashSHA256       string `json:"hash_sha256"`
	FileSize         int64  `json:"file_size"`
	PageCount        int    `json:"page_count"`

	IsSigned bool       `json:"is_signed"`
	SignedAt *time.Time `json:"signed_at,omitempty"`
	Status   string     `json:"status"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayTitle devuelve el título o, si falta, el nombre original del archivo.
func (d Document) DisplayTitle() string {
	if d.Title != "" {
		return d.Title
	}
	return d.OriginalFilename
}
