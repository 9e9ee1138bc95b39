package domains

import (
	"context"
	"fmt"
	"strings"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/store"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/tools"
	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
)

// SetterName is the tool name used for a field setter, "set_<field>".
func SetterName(field string) string {
	return "set_" + strcase.ToSnake(field)
}

type textInput struct {
	Value string `json:"value" jsonschema:"minLength=1"`
}

// TextField is a setter storing a free text value.
func TextField(field, description string) *tools.Definition {
	return tools.MustNewTool(SetterName(field), description,
		func(ctx context.Context, s *state.Session, in textInput) (*tools.Result, error) {
			v := strings.TrimSpace(in.Value)
			if err := s.Set(field, v); err != nil {
				return nil, err
			}
			return tools.NewResult("%s recorded as %s", field, v), nil
		})
}

// EnumField is a text setter restricted to values.
func EnumField(field, description string, values ...string) *tools.Definition {
	def := TextField(field, description)
	if prop, ok := def.Parameters.Properties.Get("value"); ok {
		prop.Enum = make([]any, 0, len(values))
		for _, v := range values {
			prop.Enum = append(prop.Enum, v)
		}
	}
	return def
}

type numberInput struct {
	Value float64 `json:"value" jsonschema:"minimum=0"`
}

func NumberField(field, description string) *tools.Definition {
	return tools.MustNewTool(SetterName(field), description,
		func(ctx context.Context, s *state.Session, in numberInput) (*tools.Result, error) {
			if err := s.Set(field, in.Value); err != nil {
				return nil, err
			}
			return tools.NewResult("%s recorded as %v", field, in.Value), nil
		})
}

type listInput struct {
	Values []string `json:"values" jsonschema:"minItems=1"`
}

func ListField(field, description string) *tools.Definition {
	return tools.MustNewTool(SetterName(field), description,
		func(ctx context.Context, s *state.Session, in listInput) (*tools.Result, error) {
			vals := make([]string, 0, len(in.Values))
			for _, v := range in.Values {
				if v = strings.TrimSpace(v); v != "" {
					vals = append(vals, v)
				}
			}
			if len(vals) == 0 {
				return nil, errors.New("no values given")
			}
			if err := s.Set(field, vals); err != nil {
				return nil, err
			}
			return tools.NewResult("%s recorded as %s", field, strings.Join(vals, ", ")), nil
		})
}

type saveInput struct {
	Confirmed bool `json:"confirmed" jsonschema:"description=Set to true once the user confirmed the summary"`
}

// SaveTool is the terminal tool of a domain. It writes the collected fields to
// st, keyed by the session's identity and target, once every required field
// is set and the user confirmed.
func SaveTool(name, description, domain string, st store.Store, required ...string) *tools.Definition {
	return tools.MustNewTool(name, description,
		func(ctx context.Context, s *state.Session, in saveInput) (*tools.Result, error) {
			if !in.Confirmed {
				return nil, errors.New("the user has not confirmed yet")
			}
			values := s.Values()
			missing := []string{}
			for _, f := range required {
				if _, ok := values[f]; !ok {
					missing = append(missing, f)
				}
			}
			if len(missing) > 0 {
				return nil, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
			}
			rec, err := st.Upsert(ctx, store.Key{Domain: domain, Identity: s.Identity, TargetID: s.TargetID}, values)
			if err != nil {
				return nil, errors.Wrap(err, "could not save")
			}
			return &tools.Result{Content: "saved", Record: rec}, nil
		}, tools.AsTerminal())
}
