package agents

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/pkg/errors"
)

// EnterBehavior is what a role does when it becomes active. Its reply on
// entering is always produced with tools disabled.
type EnterBehavior struct {
	// Instructions are appended to the role instructions for the entering reply only.
	Instructions string `yaml:"instructions"`
}

// Role is an immutable role definition. Per-session status and history live
// in Agent.
type Role struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// Instructions is a text/template rendered with sprig functions against
	// InstructionData.
	Instructions string `yaml:"instructions"`
	// Localized overrides Instructions per locale tag.
	Localized map[string]string `yaml:"localized,omitempty"`
	// Voices selects a voice per locale tag; "" is the fallback.
	Voices map[string]string `yaml:"voices,omitempty"`
	// Tools are the tool names bound to this role.
	Tools []string `yaml:"tools"`
	// Handoffs lists the roles this one may transfer to.
	Handoffs []string      `yaml:"handoffs,omitempty"`
	OnEnter  EnterBehavior `yaml:"on_enter"`
}

type InstructionData struct {
	Role     string
	Identity string
	TargetID string
	Locale   string
	Handoffs []string
}

func localeCandidates(locale string) []string {
	ret := []string{}
	if locale != "" {
		ret = append(ret, locale)
		if base, _, ok := strings.Cut(locale, "-"); ok {
			ret = append(ret, base)
		}
	}
	return ret
}

// InstructionsFor picks the instruction template for a locale, falling back
// from "hi-IN" to "hi" to the default.
func (r *Role) InstructionsFor(locale string) string {
	for _, l := range localeCandidates(locale) {
		if s, ok := r.Localized[l]; ok && s != "" {
			return s
		}
	}
	return r.Instructions
}

func (r *Role) VoiceFor(locale string) string {
	for _, l := range localeCandidates(locale) {
		if v, ok := r.Voices[l]; ok {
			return v
		}
	}
	return r.Voices[""]
}

// RenderInstructions renders the role's instructions for a session.
func (r *Role) RenderInstructions(s *state.Session) (string, error) {
	tmpl, err := template.New(r.Name).Funcs(sprig.TxtFuncMap()).Parse(r.InstructionsFor(s.Locale))
	if err != nil {
		return "", errors.Wrapf(err, "could not parse instructions of role %s", r.Name)
	}
	var buf bytes.Buffer
	err = tmpl.Execute(&buf, InstructionData{
		Role:     r.Name,
		Identity: s.Identity,
		TargetID: s.TargetID,
		Locale:   s.Locale,
		Handoffs: r.Handoffs,
	})
	if err != nil {
		return "", errors.Wrapf(err, "could not render instructions of role %s", r.Name)
	}
	return strings.TrimSpace(buf.String()), nil
}
