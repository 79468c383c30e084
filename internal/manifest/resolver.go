package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/verdikta/external-adapter/internal/faults"
	"github.com/verdikta/external-adapter/internal/ipfs"
	"github.com/verdikta/external-adapter/internal/workdir"
)

// Resolver turns a list of CIDs into one Resolved evaluation. The first CID
// is the primary archive; every further CID is a bound archive whose manifest
// name must match a key in the primary's bCIDs map.
type Resolver struct {
	gateway ipfs.Gateway
	logger  *zap.Logger
}

// NewResolver creates a resolver backed by the given gateway.
func NewResolver(gateway ipfs.Gateway, logger *zap.Logger) *Resolver {
	return &Resolver{gateway: gateway, logger: logger}
}

// loadedArchive is one fetched, extracted, and parsed archive.
type loadedArchive struct {
	cid        string
	manifest   *Manifest
	query      *PrimaryQuery
	additional []ResolvedFile
	support    []SupportRef
}

// Resolve fetches and parses every archive, verifies bCID bindings, and runs
// combined-query construction. All referenced files end up under dir.
func (r *Resolver) Resolve(ctx context.Context, cids []string, dir *workdir.Dir) (*Resolved, error) {
	if len(cids) == 0 {
		return nil, faults.New(faults.BadRequest, "no CIDs supplied")
	}

	archives := make([]*loadedArchive, 0, len(cids))
	for i, cid := range cids {
		a, err := r.loadArchive(ctx, i, cid, dir)
		if err != nil {
			return nil, err
		}
		archives = append(archives, a)
	}

	primary, bound := archives[0], archives[1:]
	if err := checkBindings(primary, bound); err != nil {
		return nil, err
	}

	return compose(primary, bound)
}

// loadArchive runs steps 1-7 of the per-CID resolution: fetch, extract,
// locate and validate the manifest, resolve the primary query, additional
// files, and support files.
func (r *Resolver) loadArchive(ctx context.Context, idx int, cid string, dir *workdir.Dir) (*loadedArchive, error) {
	data, err := r.gateway.Fetch(ctx, cid)
	if err != nil {
		return nil, err
	}

	root := dir.Join(fmt.Sprintf("archive_%d", idx))
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("create extraction dir: %w", err)
	}
	if err := extractArchive(data, root); err != nil {
		return nil, faults.Wrap(err, faults.ArchiveCorrupt, "extract archive %s: %v", cid, err)
	}

	rawManifest, err := os.ReadFile(filepath.Join(root, ManifestFileName))
	if err != nil {
		return nil, faults.New(faults.ArchiveCorrupt, "archive %s lacks %s", cid, ManifestFileName)
	}

	var m Manifest
	if err := json.Unmarshal(rawManifest, &m); err != nil {
		return nil, faults.Wrap(err, faults.ManifestInvalid, "archive %s: manifest is not valid JSON: %v", cid, err)
	}
	if err := Validate(&m, idx > 0); err != nil {
		return nil, err
	}

	query, err := r.resolveQuery(ctx, cid, &m, root)
	if err != nil {
		return nil, err
	}

	additional, err := r.resolveAdditional(ctx, cid, &m, root, dir)
	if err != nil {
		return nil, err
	}

	support, err := r.resolveSupport(ctx, &m, dir)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("archive resolved",
		zap.String("cid", cid),
		zap.Int("additional", len(additional)),
		zap.Int("support", len(support)))

	return &loadedArchive{
		cid:        cid,
		manifest:   &m,
		query:      query,
		additional: additional,
		support:    support,
	}, nil
}

func (r *Resolver) resolveQuery(ctx context.Context, cid string, m *Manifest, root string) (*PrimaryQuery, error) {
	var raw []byte
	var err error
	if m.Primary.Filename != "" {
		raw, err = os.ReadFile(filepath.Join(root, filepath.FromSlash(m.Primary.Filename)))
		if err != nil {
			return nil, faults.New(faults.ManifestInvalid, "archive %s: primary file %q not found in archive", cid, m.Primary.Filename)
		}
	} else {
		raw, err = r.gateway.Fetch(ctx, m.Primary.Hash)
		if err != nil {
			return nil, err
		}
	}

	var q PrimaryQuery
	if err := json.Unmarshal(raw, &q); err != nil {
		return nil, faults.Wrap(err, faults.ManifestInvalid, "archive %s: primary query is not valid JSON: %v", cid, err)
	}
	if q.Query == "" {
		return nil, faults.New(faults.ManifestInvalid, "archive %s: primary query missing required field %q", cid, "query")
	}
	return &q, nil
}

func (r *Resolver) resolveAdditional(ctx context.Context, cid string, m *Manifest, root string, dir *workdir.Dir) ([]ResolvedFile, error) {
	out := make([]ResolvedFile, 0, len(m.Additional))
	for _, add := range m.Additional {
		var path string
		if add.Filename != "" {
			path = filepath.Join(root, filepath.FromSlash(add.Filename))
			if _, err := os.Stat(path); err != nil {
				return nil, faults.New(faults.ManifestInvalid, "archive %s: additional file %q not found in archive", cid, add.Filename)
			}
		} else {
			data, err := r.gateway.Fetch(ctx, add.Hash)
			if err != nil {
				return nil, err
			}
			path = dir.Join("additional_" + add.Hash)
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return nil, fmt.Errorf("cache additional file %s: %w", add.Hash, err)
			}
		}
		out = append(out, ResolvedFile{
			Name:        add.Name,
			Type:        add.Type,
			Path:        path,
			Description: add.Description,
		})
	}
	return out, nil
}

func (r *Resolver) resolveSupport(ctx context.Context, m *Manifest, dir *workdir.Dir) ([]SupportRef, error) {
	out := make([]SupportRef, 0, len(m.Support))
	for _, sup := range m.Support {
		data, err := r.gateway.Fetch(ctx, sup.Hash.CID)
		if err != nil {
			return nil, err
		}
		path := dir.Join("support_" + sup.Hash.CID)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("cache support file %s: %w", sup.Hash.CID, err)
		}
		out = append(out, SupportRef{Hash: sup.Hash.CID, Path: path})
	}
	return out, nil
}

// checkBindings enforces the bCID name contract: every bound archive's name
// is a key in the primary's bCIDs map, and every key is claimed exactly once.
func checkBindings(primary *loadedArchive, bound []*loadedArchive) error {
	if len(bound) == 0 {
		return nil
	}
	if len(primary.manifest.BCIDs) == 0 {
		return faults.New(faults.ManifestInvalid, "primary manifest declares no bCIDs but %d bound archives were supplied", len(bound))
	}

	claimed := make(map[string]string, len(bound))
	for _, b := range bound {
		name := b.manifest.Name
		if _, ok := primary.manifest.BCIDs[name]; !ok {
			return faults.New(faults.ManifestInvalid, "bCID archive %s declares name %q which is not in the primary's bCIDs", b.cid, name)
		}
		if prev, dup := claimed[name]; dup {
			return faults.New(faults.ManifestInvalid, "bCID name %q claimed by both %s and %s", name, prev, b.cid)
		}
		claimed[name] = b.cid
	}
	for key := range primary.manifest.BCIDs {
		if _, ok := claimed[key]; !ok {
			return faults.New(faults.ManifestInvalid, "bCIDs key %q has no matching bound archive", key)
		}
	}
	return nil
}

// compose runs combined-query construction and merges attachments.
func compose(primary *loadedArchive, bound []*loadedArchive) (*Resolved, error) {
	var prompt strings.Builder
	prompt.WriteString(primary.query.Query)
	for _, b := range bound {
		prompt.WriteString("\n\n**\nWork product submitted for evaluation:\nName: ")
		prompt.WriteString(b.manifest.Name)
		prompt.WriteString("\n")
		prompt.WriteString(b.query.Query)
	}
	if primary.manifest.Addendum != "" {
		prompt.WriteString("\n\nAddendum: ")
		prompt.WriteString(primary.manifest.Addendum)
	}

	outcomes, err := resolveOutcomes(primary)
	if err != nil {
		return nil, err
	}

	additional := append([]ResolvedFile(nil), primary.additional...)
	support := append([]SupportRef(nil), primary.support...)
	references := append([]string(nil), primary.query.References...)
	for _, b := range bound {
		additional = append(additional, b.additional...)
		support = append(support, b.support...)
		references = unionStrings(references, b.query.References)
	}

	return &Resolved{
		Prompt:     prompt.String(),
		Outcomes:   outcomes,
		Models:     resolveModels(primary.manifest),
		Iterations: resolveIterations(primary.manifest),
		Additional: additional,
		Support:    support,
		BCIDs:      primary.manifest.BCIDs,
		Addendum:   primary.manifest.Addendum,
		References: references,
	}, nil
}

// resolveOutcomes uses the primary query's outcome labels when present, else
// synthesizes outcome1..outcomeN.
func resolveOutcomes(primary *loadedArchive) ([]string, error) {
	n := DefaultNumberOfOutcomes
	declared := false
	if jp := primary.manifest.JuryParameters; jp != nil && jp.NumberOfOutcomes > 0 {
		n = jp.NumberOfOutcomes
		declared = true
	}

	if len(primary.query.Outcomes) > 0 {
		if declared && len(primary.query.Outcomes) != n {
			return nil, faults.New(faults.ManifestInvalid,
				"query declares %d outcomes but NUMBER_OF_OUTCOMES is %d", len(primary.query.Outcomes), n)
		}
		return append([]string(nil), primary.query.Outcomes...), nil
	}

	outcomes := make([]string, n)
	for i := range outcomes {
		outcomes[i] = fmt.Sprintf("outcome%d", i+1)
	}
	return outcomes, nil
}

func resolveModels(m *Manifest) []ModelSpec {
	nodes := []AINode{DefaultAINode}
	if m.JuryParameters != nil && len(m.JuryParameters.AINodes) > 0 {
		nodes = m.JuryParameters.AINodes
	}
	models := make([]ModelSpec, len(nodes))
	for i, n := range nodes {
		count := n.Counts
		if count <= 0 {
			count = 1
		}
		models[i] = ModelSpec{
			Provider: n.Provider,
			Model:    n.Model,
			Weight:   n.Weight,
			Count:    count,
		}
	}
	return models
}

func resolveIterations(m *Manifest) int {
	if m.JuryParameters != nil && m.JuryParameters.Iterations > 0 {
		return m.JuryParameters.Iterations
	}
	return DefaultIterations
}

// unionStrings appends items from extra not already present, preserving the
// order the user assembled.
func unionStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range extra {
		if !seen[s] {
			base = append(base, s)
			seen[s] = true
		}
	}
	return base
}
