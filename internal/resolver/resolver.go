// Package resolver matches free-text strain names against the taxonomy name
// indices using a tiered policy: exact scientific name, normalized form,
// exact synonym, then unique substring. Tiers are evaluated in order and the
// first hit wins; an exact hit never falls through to a weaker tier.
package resolver

import (
	"strings"

	"github.com/hipc-validation/virus-strain-validator/internal/taxonomy"
)

// Tier identifies which matching tier produced a result.
type Tier string

const (
	TierExact      Tier = "exact"
	TierNormalized Tier = "normalized"
	TierSynonym    Tier = "synonym"
	TierSubstring  Tier = "substring"
	TierNone       Tier = "none"
)

// MatchResult is the outcome of resolving one input name. Taxid and
// ScientificName are empty when Tier is TierNone. AutoReplaced is true only
// for normalized-tier matches, where the resolved name can safely replace
// the input.
type MatchResult struct {
	Input          string
	Taxid          string
	ScientificName string
	Tier           Tier
	AutoReplaced   bool
}

// Matched reports whether the resolution found a taxon.
func (m MatchResult) Matched() bool {
	return m.Tier != TierNone
}

// Resolve matches name against the graph's indices. An empty name resolves
// to TierNone without any lookup.
func Resolve(name string, g *taxonomy.Graph) MatchResult {
	result := MatchResult{Input: name, Tier: TierNone}
	if name == "" {
		return result
	}

	// Tier 1: exact scientific name.
	if taxid, ok := g.TaxidForScientificName(name); ok {
		result.Taxid = taxid
		result.ScientificName = name
		result.Tier = TierExact
		return result
	}

	// Tier 2: normalized form matches some recorded name. The resolved name
	// is the canonical scientific name of that taxon; a taxon with no
	// scientific name on record cannot be resolved this way.
	if taxid, ok := g.TaxidForNormalizedName(taxonomy.Normalize(name)); ok {
		scientific, ok := g.ScientificNameOf(taxid)
		if !ok {
			return result
		}
		result.Taxid = taxid
		result.ScientificName = scientific
		result.Tier = TierNormalized
		result.AutoReplaced = true
		return result
	}

	// Tier 3: exact synonym.
	if taxid, ok := g.TaxidForSynonym(name); ok {
		scientific, ok := g.ScientificNameOf(taxid)
		if !ok {
			return result
		}
		result.Taxid = taxid
		result.ScientificName = scientific
		result.Tier = TierSynonym
		return result
	}

	// Tier 4: name is a case-sensitive substring of exactly one scientific
	// name. Two or more candidates means ambiguity, which is a non-match,
	// so the scan stops as soon as a second candidate appears.
	if match, taxid, unique := uniqueSubstringMatch(name, g); unique {
		result.Taxid = taxid
		result.ScientificName = match
		result.Tier = TierSubstring
		return result
	}

	return result
}

func uniqueSubstringMatch(name string, g *taxonomy.Graph) (match, taxid string, unique bool) {
	count := 0
	g.RangeScientificNames(func(candidate, candidateTaxid string) bool {
		if !strings.Contains(candidate, name) {
			return true
		}
		count++
		if count == 1 {
			match, taxid = candidate, candidateTaxid
			return true
		}
		return false
	})
	if count != 1 {
		return "", "", false
	}
	return match, taxid, true
}
