// Package manifest loads arbitration archives from IPFS and turns one or more
// CIDs into a single resolved evaluation: a combined prompt, the outcome list,
// the jury composition, and local paths for every referenced file.
package manifest

// ManifestFileName is the root JSON file every archive must contain.
const ManifestFileName = "manifest.json"

// Version is the wire format this adapter understands.
const Version = "1.0"

// Manifest is the root document of an arbitration archive.
type Manifest struct {
	Version string `json:"version"`

	// Name binds a secondary archive to a key in the primary manifest's
	// BCIDs map. Required for bound archives, ignored on the primary.
	Name string `json:"name,omitempty"`

	Primary        FileRef           `json:"primary"`
	JuryParameters *JuryParameters   `json:"juryParameters,omitempty"`
	Additional     []AdditionalFile  `json:"additional,omitempty"`
	Support        []SupportFile     `json:"support,omitempty"`
	BCIDs          map[string]string `json:"bCIDs,omitempty"`
	Addendum       string            `json:"addendum,omitempty"`
}

// FileRef points at a file either inside the archive (Filename) or on the
// network (Hash). Exactly one of the two must be set.
type FileRef struct {
	Filename string `json:"filename,omitempty"`
	Hash     string `json:"hash,omitempty"`
}

// JuryParameters selects the jury composition for the evaluation.
type JuryParameters struct {
	NumberOfOutcomes int      `json:"NUMBER_OF_OUTCOMES,omitempty"`
	AINodes          []AINode `json:"AI_NODES,omitempty"`
	Iterations       int      `json:"ITERATIONS,omitempty"`
}

// AINode is one model in the jury pool.
type AINode struct {
	Model    string  `json:"AI_MODEL"`
	Provider string  `json:"AI_PROVIDER"`
	Counts   int     `json:"NO_COUNTS"`
	Weight   float64 `json:"WEIGHT"`
}

// AdditionalFile is an attachment supplied to the jury alongside the prompt.
type AdditionalFile struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Filename    string `json:"filename,omitempty"`
	Hash        string `json:"hash,omitempty"`
	Description string `json:"description,omitempty"`
}

// SupportFile references supplementary material by CID.
type SupportFile struct {
	Hash SupportHash `json:"hash"`
}

// SupportHash carries the CID mapping of a support file.
type SupportHash struct {
	CID         string `json:"cid"`
	Description string `json:"description,omitempty"`
	ID          string `json:"id,omitempty"`
}

// PrimaryQuery is the JSON document the manifest's primary reference points
// at: the prompt itself plus optional outcome labels and reference names.
type PrimaryQuery struct {
	Query      string   `json:"query"`
	References []string `json:"references,omitempty"`
	Outcomes   []string `json:"outcomes,omitempty"`
}

// Defaults applied when juryParameters (or parts of it) are absent.
const (
	DefaultNumberOfOutcomes = 2
	DefaultIterations       = 1
)

// DefaultAINode is the single-node jury used when the manifest names none.
var DefaultAINode = AINode{
	Provider: "OpenAI",
	Model:    "gpt-4",
	Counts:   1,
	Weight:   1.0,
}

// ModelSpec is the resolver's output form of an AINode, shaped for the jury
// service payload.
type ModelSpec struct {
	Provider string  `json:"provider"`
	Model    string  `json:"model"`
	Weight   float64 `json:"weight"`
	Count    int     `json:"count"`
}

// ResolvedFile is an additional file resolved to an absolute local path.
type ResolvedFile struct {
	Name        string
	Type        string
	Path        string
	Description string
}

// SupportRef is a support CID resolved to a local path.
type SupportRef struct {
	Hash string
	Path string
}

// Resolved is the combined output of the resolver: everything the jury client
// needs to evaluate a request. All paths live under the request's working
// directory.
type Resolved struct {
	Prompt     string
	Outcomes   []string
	Models     []ModelSpec
	Iterations int
	Additional []ResolvedFile
	Support    []SupportRef
	BCIDs      map[string]string
	Addendum   string
	References []string
}
