package service

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxTitleLength   = 500
	maxAuthorLength  = 200
	maxSubjectLength = 1000
)

var validDocTypes = []string{
	"contrato", "ata", "relatorio", "nota_fiscal",
	"comprovante", "certidao", "procuracao", "declaracao",
	"estatuto", "balanco", "documento_fiscal",
	"documento_trabalhista", "documento_societario",
	"laudo_tecnico", "outro",
}

var (
	validTextRe       = regexp.MustCompile(`^[a-zA-ZÀ-ÿ0-9\s\-_.,:;()/]+$`)
	validPersonNameRe = regexp.MustCompile(`^[a-zA-ZÀ-ÿ\s]+$`)
	nonDigitRe        = regexp.MustCompile(`\D`)
)

// DocumentMetadata agrupa los campos enviados al agregar metadatos.
type DocumentMetadata struct {
	Title              string `json:"title"`
	Author             string `json:"author"`
	Subject            string `json:"subject"`
	DocType            string `json:"doc_type"`
	Responsible        string `json:"responsible"`
	DigitalizationDate string `json:"digitalization_date"`
	Location           string `json:"digitalization_location"`
	DigitizerName      string `json:"digitizer_name"`
	DigitizerCPFCNPJ   string `json:"digitizer_cpf_cnpj"`
	ResolutionDPI      int    `json:"resolution_dpi"`
	EquipmentInfo      string `json:"equipment_info"`
	CompanyName        string `json:"company_name"`
	CompanyCNPJ        string `json:"company_cnpj"`
}

// ValidationResult indica si los metadatos son validos y lista los errores.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// MetadataValidator valida metadatos conforme estandares brasileños de
// digitalizacion (ABNT NBR ISO 15489).
type MetadataValidator struct{}

func NewMetadataValidator() *MetadataValidator {
	return &MetadataValidator{}
}

// Validate revisa los metadatos; con partial=true no exige campos obligatorios.
func (v *MetadataValidator) Validate(md DocumentMetadata, partial bool) ValidationResult {
	var errs []string

	if !partial {
		if strings.TrimSpace(md.Author) == "" {
			errs = append(errs, "campo obligatorio ausente: author")
		}
		if strings.TrimSpace(md.DocType) == "" {
			errs = append(errs, "campo obligatorio ausente: doc_type")
		}
	}

	if title := strings.TrimSpace(md.Title); title != "" {
		if len([]rune(title)) < 3 {
			errs = append(errs, "el titulo debe tener al menos 3 caracteres")
		}
		if len([]rune(title)) > maxTitleLength {
			errs = append(errs, fmt.Sprintf("el titulo excede %d caracteres", maxTitleLength))
		}
		if !validTextRe.MatchString(title) {
			errs = append(errs, "el titulo contiene caracteres invalidos")
		}
	}

	if author := strings.TrimSpace(md.Author); author != "" {
		if len([]rune(author)) < 3 {
			errs = append(errs, "el autor debe tener al menos 3 caracteres")
		}
		if len([]rune(author)) > maxAuthorLength {
			errs = append(errs, fmt.Sprintf("el autor excede %d caracteres", maxAuthorLength))
		}
		if !isValidPersonName(author) {
			errs = append(errs, "nombre de autor invalido (use nombre completo)")
		}
	}

	if md.DocType != "" && !isValidDocType(md.DocType) {
		errs = append(errs, fmt.Sprintf("tipo de documento invalido. Tipos validos: %s",
			strings.Join(validDocTypes, ", ")))
	}

	if subject := strings.TrimSpace(md.Subject); subject != "" {
		if len([]rune(subject)) > maxSubjectLength {
			errs = append(errs, fmt.Sprintf("el asunto excede %d caracteres", maxSubjectLength))
		}
	}

	if md.DigitizerCPFCNPJ != "" {
		digits := nonDigitRe.ReplaceAllString(md.DigitizerCPFCNPJ, "")
		switch len(digits) {
		case 11:
			if !ValidCPF(digits) {
				errs = append(errs, "CPF invalido")
			}
		case 14:
			if !ValidCNPJ(digits) {
				errs = append(errs, "CNPJ invalido")
			}
		default:
			errs = append(errs, "CPF/CNPJ invalido")
		}
	}

	if md.CompanyCNPJ != "" {
		digits := nonDigitRe.ReplaceAllString(md.CompanyCNPJ, "")
		if !ValidCNPJ(digits) {
			errs = append(errs, "CNPJ de la empresa invalido")
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func isValidDocType(docType string) bool {
	for _, t := range validDocTypes {
		if t == docType {
			return true
		}
	}
	return false
}

func isValidPersonName(name string) bool {
	words := strings.Fields(name)
	if len(words) < 2 {
		return false
	}
	for _, w := range words {
		if len([]rune(w)) < 2 {
			return false
		}
	}
	return validPersonNameRe.MatchString(name)
}

// ValidCPF verifica los digitos verificadores de un CPF (solo digitos).
func ValidCPF(cpf string) bool {
	cpf = nonDigitRe.ReplaceAllString(cpf, "")
	if len(cpf) != 11 || allSameDigit(cpf) {
		return false
	}
	calc := func(partial string) int {
		sum := 0
		n := len(partial)
		for i, r := range partial {
			sum += (n + 1 - i) * int(r-'0')
		}
		d := 11 - sum%11
		if d > 9 {
			return 0
		}
		return d
	}
	if calc(cpf[:9]) != int(cpf[9]-'0') {
		return false
	}
	return calc(cpf[:10]) == int(cpf[10]-'0')
}

// ValidCNPJ verifica los digitos verificadores de un CNPJ (solo digitos).
func ValidCNPJ(cnpj string) bool {
	cnpj = nonDigitRe.ReplaceAllString(cnpj, "")
	if len(cnpj) != 14 || allSameDigit(cnpj) {
		return false
	}
	calc := func(partial string, weights []int) int {
		sum := 0
		for i, r := range partial {
			sum += int(r-'0') * weights[i]
		}
		d := sum % 11
		if d < 2 {
			return 0
		}
		return 11 - d
	}
	first := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	second := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	if calc(cnpj[:12], first) != int(cnpj[12]-'0') {
		return false
	}
	return calc(cnpj[:13], second) == int(cnpj[13]-'0')
}

func allSameDigit(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}
