package model

// Provenance records which actor produced an artifact
type Provenance string

const (
	ProvenanceGenerated Provenance = "generated" // Produced by the analysis service
	ProvenanceHuman     Provenance = "human"     // Approved or edited by a reviewer
	ProvenanceSystem    Provenance = "system"    // Created by the engine itself
)

// Code is one node in the codebook's theme hierarchy
type Code struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ParentID    string     `json:"parent_id,omitempty"` // Empty for root-level codes
	Level       int        `json:"level"`               // Depth in the hierarchy (0 = root)
	Properties  []string   `json:"properties,omitempty"`
	Dimensions  []string   `json:"dimensions,omitempty"`
	Examples    []string   `json:"examples,omitempty"` // Evidentiary quotes
	Mentions    int        `json:"mentions"`           // Times the analysis service applied this code
	Confidence  float64    `json:"confidence"`         // 0-1
	Provenance  Provenance `json:"provenance"`
	Version     int        `json:"version"`             // Codebook version at creation
	Reasoning   string     `json:"reasoning,omitempty"` // Free-text rationale from the service
}

// Codebook is the versioned set of codes for one project
type Codebook struct {
	Version     int        `json:"version"`
	Methodology string     `json:"methodology,omitempty"` // e.g. "grounded_theory"
	Codes       []Code     `json:"codes"`
	CreatedBy   Provenance `json:"created_by"`
}

// FindCode returns the code with the given id, or nil
func (cb *Codebook) FindCode(id string) *Code {
	for i := range cb.Codes {
		if cb.Codes[i].ID == id {
			return &cb.Codes[i]
		}
	}
	return nil
}

// FindCodeByName returns the code whose normalized name matches, or nil.
// Normalized names are the unit of code identity everywhere codes are
// compared across passes or versions.
func (cb *Codebook) FindCodeByName(name string) *Code {
	want := NormalizeCodeName(name)
	for i := range cb.Codes {
		if NormalizeCodeName(cb.Codes[i].Name) == want {
			return &cb.Codes[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the codebook, safe to archive or mutate independently
func (cb *Codebook) Clone() Codebook {
	out := Codebook{
		Version:     cb.Version,
		Methodology: cb.Methodology,
		CreatedBy:   cb.CreatedBy,
		Codes:       make([]Code, len(cb.Codes)),
	}
	for i, c := range cb.Codes {
		cc := c
		cc.Properties = append([]string(nil), c.Properties...)
		cc.Dimensions = append([]string(nil), c.Dimensions...)
		cc.Examples = append([]string(nil), c.Examples...)
		out.Codes[i] = cc
	}
	return out
}

// CodeApplication links one code to one evidentiary quote in one document
type CodeApplication struct {
	ID         string     `json:"id"`
	CodeID     string     `json:"code_id"`
	DocumentID string     `json:"document_id"`
	Quote      string     `json:"quote"`
	Speaker    string     `json:"speaker,omitempty"`
	Confidence float64    `json:"confidence"`
	Provenance Provenance `json:"provenance"`
	Version    int        `json:"version"` // Codebook version at time of application
}
