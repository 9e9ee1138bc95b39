package cmds

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/events"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/orchestrator"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"
	"golang.org/x/sync/errgroup"
)

type chatOptions struct {
	domain   string
	identity string
	target   string
	locale   string
}

// NewChatCommand runs a single session on the console, typed text standing in
// for transcribed speech.
func NewChatCommand() *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a domain's agents on the console",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
				return errors.New("chat needs an interactive terminal")
			}
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			return chat(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.domain, "domain", "profile", "Domain to talk to")
	cmd.Flags().StringVar(&opts.identity, "identity", "console", "Caller identity")
	cmd.Flags().StringVar(&opts.target, "target", "", "Target id")
	cmd.Flags().StringVar(&opts.locale, "locale", "en", "Locale")
	return cmd
}

func chat(ctx context.Context, cfg *Config, opts *chatOptions) error {
	st, err := cfg.BuildStore()
	if err != nil {
		return err
	}
	defer func() {
		_ = st.Close()
	}()
	e, err := cfg.BuildEngine()
	if err != nil {
		return err
	}
	catalog, err := cfg.BuildCatalog(st)
	if err != nil {
		return err
	}
	d, err := catalog.Get(opts.domain)
	if err != nil {
		return err
	}

	router, err := events.NewRouter()
	if err != nil {
		return err
	}
	defer func() {
		_ = router.Close()
	}()
	router.AddHandler("log-"+d.Name, d.Topic, router.LogEvents)

	o, err := orchestrator.New(e, d,
		orchestrator.WithPublisher(router.EventPublisher()),
		orchestrator.WithStore(st),
		orchestrator.WithConfig(cfg.Orchestrator),
		orchestrator.WithMetrics(orchestrator.NewMetrics("farwise", prometheus.NewRegistry())),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		defer cancel()
		<-router.Running()

		session, err := o.NewSession(ctx, orchestrator.Bootstrap{
			Identity: opts.identity,
			TargetID: opts.target,
			Locale:   opts.locale,
		})
		if err != nil {
			return err
		}
		return console(ctx, session)
	})
	return eg.Wait()
}

func console(ctx context.Context, session *orchestrator.Session) error {
	ui := &input.UI{Writer: os.Stdout, Reader: os.Stdin}

	inputs := make(chan string)
	go func() {
		defer close(inputs)
		for {
			select {
			case <-session.Done():
				return
			case <-ctx.Done():
				return
			default:
			}
			text, err := ui.Ask("you", &input.Options{Required: true, Loop: true, HideOrder: true})
			if err != nil || strings.TrimSpace(text) == "/quit" {
				return
			}
			select {
			case inputs <- text:
			case <-session.Done():
				return
			}
		}
	}()

	return session.Run(ctx, inputs, func(res *orchestrator.TurnResult, err error) {
		if err != nil {
			fmt.Printf("[error] %v\n", err)
			return
		}
		if res.Handoff != nil {
			fmt.Printf("(%s → %s)\n", res.Handoff.From, res.Handoff.To)
		}
		if res.Reply != "" {
			fmt.Printf("[%s] %s\n", res.Role, res.Reply)
		}
		if res.Completed {
			fmt.Println("(saved, session ended)")
		}
	})
}
