package agents

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Override replaces parts of a role definition, typically loaded from the
// roles file so wording can change without a rebuild.
type Override struct {
	Instructions string            `yaml:"instructions,omitempty"`
	Localized    map[string]string `yaml:"localized,omitempty"`
	Voices       map[string]string `yaml:"voices,omitempty"`
	OnEnter      string            `yaml:"on_enter,omitempty"`
}

// Overrides is keyed by domain, then role name.
type Overrides map[string]map[string]Override

func LoadOverrides(r io.Reader) (Overrides, error) {
	ret := Overrides{}
	if err := yaml.NewDecoder(r).Decode(&ret); err != nil {
		if errors.Is(err, io.EOF) {
			return ret, nil
		}
		return nil, errors.Wrap(err, "could not decode role overrides")
	}
	return ret, nil
}

func LoadOverridesFromFile(path string) (Overrides, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadOverrides(f)
}

// Apply returns copies of roles with the overrides of domain applied. Roles
// themselves are never modified.
func (o Overrides) Apply(domain string, roles []*Role) []*Role {
	byRole := o[domain]
	ret := make([]*Role, 0, len(roles))
	for _, r := range roles {
		cp := *r
		ov, ok := byRole[r.Name]
		if ok {
			if ov.Instructions != "" {
				cp.Instructions = ov.Instructions
			}
			if ov.OnEnter != "" {
				cp.OnEnter.Instructions = ov.OnEnter
			}
			cp.Localized = mergeStrings(r.Localized, ov.Localized)
			cp.Voices = mergeStrings(r.Voices, ov.Voices)
		}
		ret = append(ret, &cp)
	}
	return ret
}

func mergeStrings(base, over map[string]string) map[string]string {
	ret := make(map[string]string, len(base)+len(over))
	for k, v := range base {
		ret[k] = v
	}
	for k, v := range over {
		ret[k] = v
	}
	return ret
}
