package agents

import (
	"strings"
	"testing"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/state"
	"github.com/stretchr/testify/require"
)

func TestRenderInstructions_LocaleAndTemplate(t *testing.T) {
	r := &Role{
		Name:         "intake",
		Instructions: "Talk to {{ .Identity | upper }} in English.",
		Localized:    map[string]string{"hi": "{{ .Identity }} से हिंदी में बात करें।"},
		Voices:       map[string]string{"": "alloy", "hi-IN": "hindi-1"},
	}

	out, err := r.RenderInstructions(state.New(state.Seed{Identity: "u1", Locale: "en"}))
	require.NoError(t, err)
	require.Equal(t, "Talk to U1 in English.", out)

	out, err = r.RenderInstructions(state.New(state.Seed{Identity: "u1", Locale: "hi-IN"}))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "u1 "))

	require.Equal(t, "hindi-1", r.VoiceFor("hi-IN"))
	require.Equal(t, "alloy", r.VoiceFor("en"))
}

func TestRenderInstructions_BadTemplate(t *testing.T) {
	r := &Role{Name: "x", Instructions: "{{ .Nope"}
	_, err := r.RenderInstructions(state.New(state.Seed{}))
	require.Error(t, err)
}

func TestOverrides_Apply(t *testing.T) {
	ov, err := LoadOverrides(strings.NewReader(`
profile:
  intake:
    on_enter: greet warmly
    localized:
      mr: "मराठीत बोला"
`))
	require.NoError(t, err)

	base := []*Role{{Name: "intake", Instructions: "base", Localized: map[string]string{"hi": "hindi"}}}
	out := ov.Apply("profile", base)
	require.Equal(t, "greet warmly", out[0].OnEnter.Instructions)
	require.Equal(t, "hindi", out[0].Localized["hi"])
	require.Equal(t, "मराठीत बोला", out[0].Localized["mr"])
	require.Empty(t, base[0].OnEnter.Instructions)
	require.NotContains(t, base[0].Localized, "mr")

	same := ov.Apply("activity", base)
	require.Equal(t, "base", same[0].Instructions)

	empty, err := LoadOverrides(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, empty)
}
