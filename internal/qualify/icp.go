package qualify

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/olvconsultores/stratevo/internal/model"
)

// LoadICP reads an ICP definition from a YAML file.
func LoadICP(path string) (*model.ICP, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "qualify: read icp %s", path)
	}
	return ParseICP(data)
}

// ParseICP decodes a YAML ICP definition and validates it.
func ParseICP(data []byte) (*model.ICP, error) {
	var icp model.ICP
	if err := yaml.Unmarshal(data, &icp); err != nil {
		return nil, eris.Wrap(err, "qualify: parse icp")
	}
	if !icp.HasCriteria() {
		return nil, ErrInvalidICP
	}
	if icp.Weights != nil {
		if err := ValidateWeights(*icp.Weights); err != nil {
			return nil, err
		}
	}
	return &icp, nil
}
