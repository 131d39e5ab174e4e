// Package codebook holds the read-only code-to-label tables of the survey:
// geographic clusters, regions and the categorical housing and education codes.
package codebook

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed codebook.yaml
var defaultYAML []byte

// Codebook maps survey codes to display labels.
type Codebook struct {
	Clusters          map[string]string `yaml:"clusters"`
	Regions           map[string]string `yaml:"regions"`
	DwellingTypes     map[string]string `yaml:"dwelling_types"`
	FloorTypes        map[string]string `yaml:"floor_types"`
	BathroomLocations map[string]string `yaml:"bathroom_locations"`
	Tenure            map[string]string `yaml:"tenure"`
	EducationLevels   map[string]string `yaml:"education_levels"`

	clusterCodes   []string
	clustersByName []string
}

// Default returns the embedded codebook.
func Default() (*Codebook, error) {
	return Parse(defaultYAML)
}

// Load reads a codebook from path, or returns the embedded one when path is empty.
func Load(path string) (*Codebook, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.SourceMissing(path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML codebook. At least one cluster is required.
func Parse(data []byte) (*Codebook, error) {
	var cb Codebook
	if err := yaml.Unmarshal(data, &cb); err != nil {
		return nil, fmt.Errorf("decode codebook: %w", err)
	}
	if len(cb.Clusters) == 0 {
		return nil, fmt.Errorf("codebook has no clusters")
	}
	cb.index()
	return &cb, nil
}

func (c *Codebook) index() {
	c.clusterCodes = make([]string, 0, len(c.Clusters))
	for code := range c.Clusters {
		c.clusterCodes = append(c.clusterCodes, code)
	}
	sort.Slice(c.clusterCodes, func(i, j int) bool {
		return codeLess(c.clusterCodes[i], c.clusterCodes[j])
	})

	col := collate.New(language.Spanish)
	c.clustersByName = append([]string(nil), c.clusterCodes...)
	sort.SliceStable(c.clustersByName, func(i, j int) bool {
		return col.CompareString(c.Clusters[c.clustersByName[i]], c.Clusters[c.clustersByName[j]]) < 0
	})
}

// codeLess orders numeric codes numerically and anything else lexically after them.
func codeLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

// IsKnownCluster reports whether code belongs to the closed cluster set.
func (c *Codebook) IsKnownCluster(code string) bool {
	_, ok := c.Clusters[code]
	return ok
}

// ClusterName returns the name of a cluster, or a validation error for codes
// outside the closed set.
func (c *Codebook) ClusterName(code string) (string, error) {
	name, ok := c.Clusters[code]
	if !ok {
		return "", apperr.Validation("unknown cluster code").WithDetails(map[string]string{"cluster": code})
	}
	return name, nil
}

// ClusterLabel returns the cluster name, falling back to the raw code.
func (c *Codebook) ClusterLabel(code string) string {
	return label(c.Clusters, code)
}

// ClusterCodes returns every known cluster code in numeric order.
func (c *Codebook) ClusterCodes() []string {
	return append([]string(nil), c.clusterCodes...)
}

// ClusterCodesByName returns every known cluster code ordered by name using
// Spanish collation.
func (c *Codebook) ClusterCodesByName() []string {
	return append([]string(nil), c.clustersByName...)
}

// RegionLabel returns the region name, falling back to the raw code.
func (c *Codebook) RegionLabel(code string) string { return label(c.Regions, code) }

// DwellingTypeLabel returns the IV1 label.
func (c *Codebook) DwellingTypeLabel(code string) string { return label(c.DwellingTypes, code) }

// FloorTypeLabel returns the IV3 label.
func (c *Codebook) FloorTypeLabel(code string) string { return label(c.FloorTypes, code) }

// BathroomLocationLabel returns the IV9 label.
func (c *Codebook) BathroomLocationLabel(code string) string {
	return label(c.BathroomLocations, code)
}

// TenureLabel returns the II7 label.
func (c *Codebook) TenureLabel(code string) string { return label(c.Tenure, code) }

// TenureCodes returns the tenure codes in numeric order.
func (c *Codebook) TenureCodes() []string { return sortedCodes(c.Tenure) }

// DwellingTypeCodes returns the IV1 codes in numeric order.
func (c *Codebook) DwellingTypeCodes() []string { return sortedCodes(c.DwellingTypes) }

// EducationLevelLabel returns the NIVEL_ED codebook label.
func (c *Codebook) EducationLevelLabel(code string) string {
	return label(c.EducationLevels, code)
}

func label(table map[string]string, code string) string {
	if name, ok := table[code]; ok {
		return name
	}
	return code
}

func sortedCodes(table map[string]string) []string {
	codes := make([]string, 0, len(table))
	for code := range table {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codeLess(codes[i], codes[j]) })
	return codes
}
