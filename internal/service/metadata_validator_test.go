package service

import (
	"strings"
	"testing"
)

func validMetadata() DocumentMetadata {
	return DocumentMetadata{
		Title:       "Contrato de prestacion de servicios",
		Author:      "Maria Silva",
		DocType:     "contrato",
		Responsible: "Joao Santos",
	}
}

func hasError(result ValidationResult, fragment string) bool {
	for _, e := range result.Errors {
		if strings.Contains(e, fragment) {
			return true
		}
	}
	return false
}

func TestMetadataValidator_ValidDocument(t *testing.T) {
	v := NewMetadataValidator()

	result := v.Validate(validMetadata(), false)
	if !result.Valid {
		t.Fatalf("expected valid, got errors: %v", result.Errors)
	}
}

func TestMetadataValidator_RequiredFields(t *testing.T) {
	v := NewMetadataValidator()

	result := v.Validate(DocumentMetadata{Title: "Algo valido"}, false)
	if result.Valid {
		t.Fatalf("expected invalid without author/doc_type")
	}
	if !hasError(result, "author") || !hasError(result, "doc_type") {
		t.Fatalf("expected missing-field errors, got %v", result.Errors)
	}
}

func TestMetadataValidator_PartialSkipsRequired(t *testing.T) {
	v := NewMetadataValidator()

	result := v.Validate(DocumentMetadata{Title: "Solo titulo"}, true)
	if !result.Valid {
		t.Fatalf("partial validation should skip required fields, got %v", result.Errors)
	}
}

func TestMetadataValidator_TitleRules(t *testing.T) {
	v := NewMetadataValidator()

	md := validMetadata()
	md.Title = "ab"
	if result := v.Validate(md, false); !hasError(result, "al menos 3") {
		t.Fatalf("short title should fail, got %v", result.Errors)
	}

	md.Title = strings.Repeat("a", 501)
	if result := v.Validate(md, false); !hasError(result, "excede 500") {
		t.Fatalf("long title should fail, got %v", result.Errors)
	}

	md.Title = "titulo <script>"
	if result := v.Validate(md, false); !hasError(result, "caracteres invalidos") {
		t.Fatalf("title with invalid characters should fail, got %v", result.Errors)
	}
}

func TestMetadataValidator_AuthorMustBeFullName(t *testing.T) {
	v := NewMetadataValidator()

	md := validMetadata()
	md.Author = "Maria"
	if result := v.Validate(md, false); !hasError(result, "nombre completo") {
		t.Fatalf("single word author should fail, got %v", result.Errors)
	}

	md.Author = "Maria S"
	if result := v.Validate(md, false); !hasError(result, "nombre completo") {
		t.Fatalf("one-letter surname should fail, got %v", result.Errors)
	}

	md.Author = "José Antônio"
	if result := v.Validate(md, false); result.Valid != true {
		t.Fatalf("accented full name should pass, got %v", result.Errors)
	}
}

func TestMetadataValidator_DocTypeWhitelist(t *testing.T) {
	v := NewMetadataValidator()

	md := validMetadata()
	md.DocType = "factura"
	result := v.Validate(md, false)
	if result.Valid || !hasError(result, "tipo de documento invalido") {
		t.Fatalf("unknown doc_type should fail, got %v", result.Errors)
	}

	for _, dt := range []string{"ata", "laudo_tecnico", "outro"} {
		md.DocType = dt
		if result := v.Validate(md, false); !result.Valid {
			t.Fatalf("doc_type %q should be valid, got %v", dt, result.Errors)
		}
	}
}

func TestMetadataValidator_DigitizerDocument(t *testing.T) {
	v := NewMetadataValidator()

	md := validMetadata()
	md.DigitizerCPFCNPJ = "529.982.247-25"
	if result := v.Validate(md, false); !result.Valid {
		t.Fatalf("valid CPF with punctuation should pass, got %v", result.Errors)
	}

	md.DigitizerCPFCNPJ = "52998224724"
	if result := v.Validate(md, false); !hasError(result, "CPF invalido") {
		t.Fatalf("bad CPF check digit should fail, got %v", result.Errors)
	}

	md.DigitizerCPFCNPJ = "11.222.333/0001-81"
	if result := v.Validate(md, false); !result.Valid {
		t.Fatalf("valid CNPJ should pass, got %v", result.Errors)
	}

	md.DigitizerCPFCNPJ = "12345"
	if result := v.Validate(md, false); !hasError(result, "CPF/CNPJ invalido") {
		t.Fatalf("wrong length should fail, got %v", result.Errors)
	}
}

func TestMetadataValidator_CompanyCNPJ(t *testing.T) {
	v := NewMetadataValidator()

	md := validMetadata()
	md.CompanyCNPJ = "11222333000181"
	if result := v.Validate(md, false); !result.Valid {
		t.Fatalf("valid company CNPJ should pass, got %v", result.Errors)
	}

	md.CompanyCNPJ = "11222333000182"
	if result := v.Validate(md, false); !hasError(result, "CNPJ de la empresa") {
		t.Fatalf("bad company CNPJ should fail, got %v", result.Errors)
	}
}

func TestValidCPF(t *testing.T) {
	cases := []struct {
		cpf  string
		want bool
	}{
		{"52998224725", true},
		{"529.982.247-25", true},
		{"52998224724", false},
		{"11111111111", false},
		{"123", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidCPF(tc.cpf); got != tc.want {
			t.Fatalf("ValidCPF(%q) = %v, want %v", tc.cpf, got, tc.want)
		}
	}
}

func TestValidCNPJ(t *testing.T) {
	cases := []struct {
		cnpj string
		want bool
	}{
		{"11222333000181", true},
		{"11.222.333/0001-81", true},
		{"11222333000182", false},
		{"00000000000000", false},
		{"1122233300018", false},
	}
	for _, tc := range cases {
		if got := ValidCNPJ(tc.cnpj); got != tc.want {
			t.Fatalf("ValidCNPJ(%q) = %v, want %v", tc.cnpj, got, tc.want)
		}
	}
}
