package qualify

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/olvconsultores/stratevo/internal/model"
)

// DefaultWeights returns the documented default sub-score weights.
// Weights sum to 100.
func DefaultWeights() model.Weights {
	return model.Weights{
		Sector:   30,
		Geo:      25,
		Size:     20,
		Maturity: 10,
		Product:  15,
	}
}

// ValidateWeights checks that a weight set is usable.
func ValidateWeights(w model.Weights) error {
	var errs []string

	named := []struct {
		name string
		v    float64
	}{
		{"sector", w.Sector},
		{"geo", w.Geo},
		{"size", w.Size},
		{"maturity", w.Maturity},
		{"product", w.Product},
	}
	for _, n := range named {
		if n.v < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", n.name))
		}
	}
	if w.Sum() <= 0 {
		errs = append(errs, "weight sum must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("qualify: weight validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ResolveWeights returns the ICP's own weights when set, otherwise the
// tenant default.
func ResolveWeights(icp *model.ICP, tenant model.Weights) model.Weights {
	if icp != nil && icp.Weights != nil && icp.Weights.Sum() > 0 {
		return *icp.Weights
	}
	return tenant
}
