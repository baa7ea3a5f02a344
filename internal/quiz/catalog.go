package quiz

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"careerforge/pkg/types"
)

// Catalog is read-only career reference data
type Catalog struct {
	profiles []types.CareerProfile
}

type catalogFile struct {
	Profiles []types.CareerProfile `yaml:"profiles"`
}

// NewCatalog validates and freezes a profile list; order is kept for tie-breaking
func NewCatalog(profiles []types.CareerProfile) (*Catalog, error) {
	if len(profiles) == 0 {
		return nil, ErrEmptyCatalog
	}

	seen := make(map[string]struct{}, len(profiles))
	out := make([]types.CareerProfile, 0, len(profiles))
	for _, p := range profiles {
		if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Industry) == "" {
			return nil, fmt.Errorf("%w: %+v", ErrInvalidProfile, p)
		}
		key := strings.ToLower(p.Title)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateProfile, p.Title)
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return &Catalog{profiles: out}, nil
}

// LoadCatalog reads a YAML document with a top-level "profiles" list
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read career catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse career catalog %s: %w", path, err)
	}
	return NewCatalog(file.Profiles)
}

// Profiles returns a copy of every profile in catalog order
func (c *Catalog) Profiles() []types.CareerProfile {
	out := make([]types.CareerProfile, len(c.profiles))
	copy(out, c.profiles)
	return out
}

// ByIndustry looks profiles up by industry tag, case-insensitively
func (c *Catalog) ByIndustry(industry string) ([]types.CareerProfile, error) {
	var out []types.CareerProfile
	for _, p := range c.profiles {
		if strings.EqualFold(p.Industry, strings.TrimSpace(industry)) {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIndustry, industry)
	}
	return out, nil
}

// DefaultCatalog returns the built-in profiles used when no catalog file is configured
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultProfiles)
	if err != nil {
		panic(err)
	}
	return c
}

var defaultProfiles = []types.CareerProfile{
	{
		Title:                "Software Engineer",
		RequiredSkills:       []string{"python", "java", "sql", "aws"},
		Industry:             "Technology",
		WorkStyle:            "collaborative",
		LearningRequirements: []string{"hands-on", "project-based"},
	},
	{
		Title:                "Data Scientist",
		RequiredSkills:       []string{"python", "statistics", "sql", "machine learning"},
		Industry:             "Data & Analytics",
		WorkStyle:            "analytical",
		LearningRequirements: []string{"self-paced", "research"},
	},
	{
		Title:                "Cloud Engineer",
		RequiredSkills:       []string{"aws", "linux", "terraform", "networking"},
		Industry:             "Technology",
		WorkStyle:            "independent",
		LearningRequirements: []string{"certification", "hands-on"},
	},
	{
		Title:                "UX Designer",
		RequiredSkills:       []string{"figma", "user research", "prototyping", "accessibility"},
		Industry:             "Design",
		WorkStyle:            "creative",
		LearningRequirements: []string{"visual", "workshop"},
	},
	{
		Title:                "Product Manager",
		RequiredSkills:       []string{"communication", "roadmapping", "analytics", "stakeholder management"},
		Industry:             "Technology",
		WorkStyle:            "leadership",
		LearningRequirements: []string{"mentorship", "collaborative"},
	},
	{
		Title:                "Marketing Analyst",
		RequiredSkills:       []string{"excel", "sql", "seo", "analytics"},
		Industry:             "Marketing",
		WorkStyle:            "analytical",
		LearningRequirements: []string{"online courses", "workshop"},
	},
	{
		Title:                "Registered Nurse",
		RequiredSkills:       []string{"patient care", "clinical assessment", "communication", "first aid"},
		Industry:             "Healthcare",
		WorkStyle:            "empathetic",
		LearningRequirements: []string{"clinical rotation", "certification"},
	},
}
