package orchestrator

import (
	"strings"
	"time"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/conversation"
)

type Config struct {
	// ModelTimeout bounds one model invocation.
	ModelTimeout time.Duration `mapstructure:"model-timeout"`
	// ToolTimeout bounds one tool executor run.
	ToolTimeout time.Duration `mapstructure:"tool-timeout"`
	// RetryBackoff is the wait before the single retry of a failed model invocation.
	RetryBackoff time.Duration `mapstructure:"retry-backoff"`
	// MaxToolRounds caps model/tool round trips within one turn. The last
	// round is forced to answer without tools.
	MaxToolRounds int `mapstructure:"max-tool-rounds"`
	// Apologies is spoken when the model cannot be reached, keyed by locale.
	Apologies map[string]string `mapstructure:"apologies"`
	// FarewellOnComplete asks the role for a goodbye after the task completed.
	FarewellOnComplete bool                         `mapstructure:"farewell-on-complete"`
	Truncation         conversation.TruncateOptions `mapstructure:"-"`
}

func DefaultConfig() Config {
	return Config{
		ModelTimeout:  30 * time.Second,
		ToolTimeout:   15 * time.Second,
		RetryBackoff:  500 * time.Millisecond,
		MaxToolRounds: 6,
		Apologies: map[string]string{
			"":   "Sorry, I am having trouble right now. Could you say that again?",
			"hi": "माफ़ कीजिए, अभी थोड़ी दिक्कत है। क्या आप फिर से कह सकते हैं?",
		},
		FarewellOnComplete: true,
		Truncation:         conversation.TruncateOptions{MaxMessages: 80},
	}
}

func (c Config) apology(locale string) string {
	if v, ok := c.Apologies[locale]; ok {
		return v
	}
	if base, _, ok := strings.Cut(locale, "-"); ok {
		if v, ok := c.Apologies[base]; ok {
			return v
		}
	}
	if v, ok := c.Apologies[""]; ok {
		return v
	}
	return "Sorry, something went wrong."
}
