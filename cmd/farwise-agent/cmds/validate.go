package cmds

import (
	"os"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/domains"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type roleReport struct {
	Tools    []string `yaml:"tools"`
	Handoffs []string `yaml:"handoffs,omitempty"`
}

type domainReport struct {
	Topic       string                `yaml:"topic"`
	Event       string                `yaml:"completion_event"`
	InitialRole string                `yaml:"initial_role"`
	Fields      []string              `yaml:"fields"`
	Roles       map[string]roleReport `yaml:"roles"`
}

// NewValidateCommand checks every domain's tool bindings and prints them.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate domains and role overrides",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			catalog, err := cfg.BuildCatalog(store.NewMemoryStore())
			if err != nil {
				return err
			}
			report, err := validateCatalog(catalog)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(os.Stdout)
			defer func() {
				_ = enc.Close()
			}()
			return enc.Encode(report)
		},
	}
}

func validateCatalog(catalog domains.Catalog) (map[string]domainReport, error) {
	ret := map[string]domainReport{}
	for _, name := range catalog.Names() {
		d, err := catalog.Get(name)
		if err != nil {
			return nil, err
		}
		if _, err := d.Registry(); err != nil {
			return nil, err
		}
		r := domainReport{
			Topic:       d.Topic,
			Event:       string(d.CompletionEvent),
			InitialRole: d.InitialRole,
			Fields:      d.Fields,
			Roles:       map[string]roleReport{},
		}
		for _, role := range d.Roles {
			r.Roles[role.Name] = roleReport{Tools: domains.RoleTools(role), Handoffs: role.Handoffs}
		}
		ret[name] = r
	}
	return ret, nil
}
