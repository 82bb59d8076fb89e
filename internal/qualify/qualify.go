// Package qualify scores companies against an Ideal Customer Profile.
package qualify

import (
	"errors"
	"math"
	"strings"

	"github.com/olvconsultores/stratevo/internal/model"
)

// ErrInvalidICP is returned when an ICP sets no scored criterion.
var ErrInvalidICP = errors.New("qualify: invalid ICP: no target criteria set")

// Partial credit levels.
const (
	fullFit       = 100.0
	tokenFit      = 75.0
	divisionFit   = 50.0
	sameRegionFit = 50.0
)

type component struct {
	criterion model.Criterion
	defined   bool
	score     float64
	weight    float64
}

// Score computes the fit of company against icp using weights (or the
// ICP's own weights when it carries an override). It is a pure function:
// the returned result has no ID, status or timestamps.
func Score(company *model.Company, icp *model.ICP, weights model.Weights) (*model.QualificationResult, error) {
	if icp == nil || !icp.HasCriteria() {
		return nil, ErrInvalidICP
	}
	w := ResolveWeights(icp, weights)

	components := []component{
		{model.CriterionSector, icp.HasSectorCriteria(), scoreSector(company.Sector, icp.TargetSectors), w.Sector},
		{model.CriterionGeo, icp.HasGeoCriteria(), scoreGeo(company, icp), w.Geo},
		{model.CriterionSize, icp.HasSizeCriteria(), scoreSize(company, icp), w.Size},
		{model.CriterionMaturity, icp.HasMaturityCriteria(), scoreMaturity(company.DigitalMaturity, icp.MinDigitalMaturity), w.Maturity},
		{model.CriterionProduct, icp.HasProductCriteria(), scoreProduct(company.Technologies, icp.TargetTechnologies), w.Product},
	}

	res := &model.QualificationResult{
		TenantID:  icp.TenantID,
		CompanyID: company.ID,
		ICPID:     icp.ID,
	}

	var total, weightSum, plainSum float64
	var defined int
	for _, c := range components {
		if !c.defined {
			continue
		}
		s := round2(c.score)
		switch c.criterion {
		case model.CriterionSector:
			res.SectorFit = s
		case model.CriterionGeo:
			res.GeoFit = s
		case model.CriterionSize:
			res.CapitalFit = s
		case model.CriterionMaturity:
			res.MaturityFit = s
		case model.CriterionProduct:
			res.ProductSimilarity = s
		}
		res.Criteria = append(res.Criteria, c.criterion)
		total += c.score * c.weight
		weightSum += c.weight
		plainSum += c.score
		defined++
	}

	// Undefined sub-scores drop out and the remaining weights are
	// renormalised. If every defined criterion has zero weight fall back to
	// a plain mean.
	var overall float64
	if weightSum > 0 {
		overall = total / weightSum
	} else {
		overall = plainSum / float64(defined)
	}

	res.FitScore = round2(overall)
	res.Grade = GradeFor(res.FitScore)
	return res, nil
}

// GradeFor maps a 0-100 score onto a letter grade. Lower bounds are
// inclusive.
func GradeFor(score float64) model.Grade {
	switch {
	case score >= 90:
		return model.GradeAPlus
	case score >= 75:
		return model.GradeA
	case score >= 60:
		return model.GradeB
	case score >= 40:
		return model.GradeC
	default:
		return model.GradeD
	}
}

func scoreSector(sector string, targets []string) float64 {
	s := Fold(sector)
	if s == "" {
		return 0
	}
	sCode := cnaeDigits(s)

	var best float64
	for _, t := range targets {
		ft := Fold(t)
		if ft == "" {
			continue
		}
		if ft == s {
			return fullFit
		}
		if tCode := cnaeDigits(ft); sCode != "" && tCode != "" {
			if sCode == tCode {
				return fullFit
			}
			if sCode[:2] == tCode[:2] {
				best = math.Max(best, divisionFit)
			}
			continue
		}
		if containsWord(s, ft) || containsWord(ft, s) {
			best = math.Max(best, tokenFit)
		}
	}
	return best
}

// containsWord reports whether needle appears in haystack at the start of
// a word ("agro" in "agro negocio", "agronegocio").
func containsWord(haystack, needle string) bool {
	if len(needle) < 3 {
		return false
	}
	for _, w := range strings.Fields(haystack) {
		if strings.HasPrefix(w, needle) {
			return true
		}
	}
	return false
}

func scoreGeo(c *model.Company, icp *model.ICP) float64 {
	city := Fold(c.City)
	state := NormalizeState(c.State)
	if city == "" && state == "" {
		return 0
	}

	for _, t := range icp.TargetCities {
		if city != "" && Fold(t) == city {
			return fullFit
		}
	}
	for _, t := range icp.TargetStates {
		if state != "" && NormalizeState(t) == state {
			return fullFit
		}
	}

	region := RegionOf(state)
	if region == "" {
		return 0
	}
	for _, t := range icp.TargetRegions {
		if NormalizeRegion(t) == region {
			return fullFit
		}
	}
	for _, t := range icp.TargetStates {
		if RegionOf(t) == region {
			return sameRegionFit
		}
	}
	return 0
}

func scoreSize(c *model.Company, icp *model.ICP) float64 {
	var sum float64
	var n int
	if icp.EmployeeRange != nil {
		sum += rangeFit(float64(c.Employees()), *icp.EmployeeRange)
		n++
	}
	if icp.CapitalRange != nil {
		sum += rangeFit(c.Capital, *icp.CapitalRange)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// rangeFit gives full credit inside r and decays by ratio outside it.
func rangeFit(v float64, r model.Range) float64 {
	if v <= 0 {
		return 0
	}
	if r.Contains(v) {
		return fullFit
	}
	if v < r.Min {
		return fullFit * v / r.Min
	}
	return fullFit * r.Max / v
}

func scoreMaturity(score, minimum *float64) float64 {
	if score == nil || minimum == nil {
		return 0
	}
	if *minimum <= 0 || *score >= *minimum {
		return fullFit
	}
	return math.Max(0, fullFit * *score / *minimum)
}

func scoreProduct(techs, targets []string) float64 {
	if len(techs) == 0 || len(targets) == 0 {
		return 0
	}
	have := make(map[string]bool, len(techs))
	for _, t := range techs {
		have[Fold(t)] = true
	}
	var hits, total int
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		ft := Fold(t)
		if ft == "" || seen[ft] {
			continue
		}
		seen[ft] = true
		total++
		if have[ft] {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return fullFit * float64(hits) / float64(total)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
