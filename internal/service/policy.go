package service

import (
	"fmt"
	"sort"

	"github.com/Strob0t/ActionForge/internal/domain"
	"github.com/Strob0t/ActionForge/internal/domain/policy"
)

// PolicyService resolves the policy applied to an orchestration from the
// built-in presets and operator-supplied YAML profiles.
type PolicyService struct {
	defaultProfile string
	profiles       map[string]policy.Policy
}

// NewPolicyService creates a PolicyService with built-in presets and
// optional custom profiles. Custom profiles override presets with the same name.
func NewPolicyService(defaultProfile string, custom []policy.Policy) *PolicyService {
	profiles := make(map[string]policy.Policy)

	for _, name := range policy.PresetNames() {
		p, _ := policy.PresetByName(name)
		profiles[name] = p
	}
	for i := range custom {
		profiles[custom[i].Name] = custom[i]
	}

	return &PolicyService{
		defaultProfile: defaultProfile,
		profiles:       profiles,
	}
}

// Resolve picks the policy for a request. An inline policy wins, then the
// named profile, then the default profile. An unknown name is a validation
// error; an unknown default profile means no policy.
func (s *PolicyService) Resolve(name string, inline *policy.Policy) (*policy.Policy, error) {
	if inline != nil {
		return inline, nil
	}
	if name != "" {
		p, ok := s.profiles[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown policy profile %q", domain.ErrValidation, name)
		}
		return &p, nil
	}
	if p, ok := s.profiles[s.defaultProfile]; ok {
		return &p, nil
	}
	return nil, nil
}

// GetProfile returns a policy profile by name.
func (s *PolicyService) GetProfile(name string) (policy.Policy, bool) {
	p, ok := s.profiles[name]
	return p, ok
}

// ListProfiles returns all available profile names, sorted alphabetically.
func (s *PolicyService) ListProfiles() []string {
	names := make([]string, 0, len(s.profiles))
	for name := range s.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profiles returns every profile ordered by name.
func (s *PolicyService) Profiles() []policy.Policy {
	names := s.ListProfiles()
	out := make([]policy.Policy, 0, len(names))
	for _, n := range names {
		out = append(out, s.profiles[n])
	}
	return out
}

// DefaultProfile returns the name of the default policy profile.
func (s *PolicyService) DefaultProfile() string {
	return s.defaultProfile
}
