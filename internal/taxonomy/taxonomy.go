// Package taxonomy holds the document types a sales pack page can be
// classified as. The list is configuration: callers inject it into the
// classifier prompt, the partition builder and the upload file namer.
package taxonomy

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Other is the catch-all type every taxonomy must contain.
const Other = "other"

// DocumentType is one selectable type.
type DocumentType struct {
	Value string `toml:"value" json:"value"`
	Label string `toml:"label" json:"label"`
}

// Taxonomy is an ordered list of document types.
type Taxonomy struct {
	Types []DocumentType `toml:"types"`
}

// Default is the dealership sales pack taxonomy.
func Default() Taxonomy {
	return Taxonomy{Types: []DocumentType{
		{Value: "id_front", Label: "ID Card (Front)"},
		{Value: "id_back", Label: "ID Card (Back)"},
		{Value: "drivers_license", Label: "Driver's License"},
		{Value: "vehicle_sale_agreement", Label: "Vehicle Sale Agreement"},
		{Value: "finance_agreement", Label: "Finance Agreement"},
		{Value: "consent_form", Label: "Consent Form"},
		{Value: "proof_of_address", Label: "Proof of Address"},
		{Value: "vehicle_registration", Label: "Vehicle Registration"},
		{Value: "insurance_certificate", Label: "Insurance Certificate"},
		{Value: Other, Label: "Other"},
	}}
}

// Load reads a taxonomy from a TOML file of the form
//
//	[[types]]
//	value = "id_front"
//	label = "ID Card (Front)"
func Load(path string) (Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Taxonomy{}, fmt.Errorf("failed to read taxonomy file '%s': %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML taxonomy. The "other" type is appended
// when the file does not declare it.
func Parse(data []byte) (Taxonomy, error) {
	var t Taxonomy
	if err := toml.Unmarshal(data, &t); err != nil {
		return Taxonomy{}, fmt.Errorf("failed to parse taxonomy TOML: %w", err)
	}
	seen := make(map[string]bool, len(t.Types))
	for i, dt := range t.Types {
		v := strings.TrimSpace(dt.Value)
		if v == "" {
			return Taxonomy{}, fmt.Errorf("taxonomy entry %d has no value", i+1)
		}
		if seen[v] {
			return Taxonomy{}, fmt.Errorf("taxonomy value %q declared twice", v)
		}
		seen[v] = true
		t.Types[i].Value = v
		if strings.TrimSpace(dt.Label) == "" {
			t.Types[i].Label = v
		}
	}
	if !seen[Other] {
		t.Types = append(t.Types, DocumentType{Value: Other, Label: "Other"})
	}
	return t, nil
}

// Contains reports whether value is a known type.
func (t Taxonomy) Contains(value string) bool {
	for _, dt := range t.Types {
		if dt.Value == value {
			return true
		}
	}
	return false
}

// Label returns the display name of a type. Unknown values are returned as-is.
func (t Taxonomy) Label(value string) string {
	for _, dt := range t.Types {
		if dt.Value == value {
			return dt.Label
		}
	}
	return value
}

// Normalize maps unknown values to Other.
func (t Taxonomy) Normalize(value string) string {
	value = strings.TrimSpace(value)
	if t.Contains(value) {
		return value
	}
	return Other
}

// Values lists the type values in order, for prompt enums.
func (t Taxonomy) Values() []string {
	out := make([]string, len(t.Types))
	for i, dt := range t.Types {
		out[i] = dt.Value
	}
	return out
}
