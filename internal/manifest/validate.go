package manifest

import (
	"github.com/verdikta/external-adapter/internal/faults"
)

// Validate checks a decoded manifest against the schema rules. Validation is
// a separate pass from JSON decoding so parse errors and schema violations
// stay distinguishable. bound marks a secondary (bCID) archive.
func Validate(m *Manifest, bound bool) error {
	if m.Version == "" {
		return faults.New(faults.ManifestInvalid, "manifest missing required field %q", "version")
	}

	hasFilename := m.Primary.Filename != ""
	hasHash := m.Primary.Hash != ""
	switch {
	case hasFilename && hasHash:
		return faults.New(faults.ManifestInvalid, "primary declares both filename and hash; exactly one is allowed")
	case !hasFilename && !hasHash:
		return faults.New(faults.ManifestInvalid, "primary declares neither filename nor hash")
	}

	if bound && m.Name == "" {
		return faults.New(faults.ManifestInvalid, "bound archive manifest missing required field %q", "name")
	}

	seen := make(map[string]bool, len(m.Additional))
	for _, add := range m.Additional {
		if add.Name == "" {
			return faults.New(faults.ManifestInvalid, "additional entry missing name")
		}
		if seen[add.Name] {
			return faults.New(faults.ManifestInvalid, "duplicate additional entry name %q", add.Name)
		}
		seen[add.Name] = true
		if add.Filename == "" && add.Hash == "" {
			return faults.New(faults.ManifestInvalid, "additional entry %q declares neither filename nor hash", add.Name)
		}
	}

	for _, sup := range m.Support {
		if sup.Hash.CID == "" {
			return faults.New(faults.ManifestInvalid, "support entry missing cid")
		}
	}

	if m.JuryParameters != nil {
		if m.JuryParameters.NumberOfOutcomes < 0 {
			return faults.New(faults.ManifestInvalid, "NUMBER_OF_OUTCOMES must not be negative")
		}
		for _, node := range m.JuryParameters.AINodes {
			if node.Model == "" || node.Provider == "" {
				return faults.New(faults.ManifestInvalid, "AI_NODES entries require AI_MODEL and AI_PROVIDER")
			}
		}
	}

	return nil
}
