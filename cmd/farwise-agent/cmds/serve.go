package cmds

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/events"
	"github.com/TanaySingh02/Farwise2.0-sub000/pkg/transport/ws"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve sessions and events over websockets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *Config) error {
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

	router, err := events.NewRouter(events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return err
	}
	defer func() {
		_ = router.Close()
	}()
	for _, name := range catalog.Names() {
		d, _ := catalog.Get(name)
		router.AddHandler("log-"+name, d.Topic, router.LogEvents)
	}

	publisher, closePublisher, err := cfg.BuildPublisher(ctx, router)
	if err != nil {
		return err
	}
	defer closePublisher()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orchestrators, err := cfg.BuildOrchestrators(e, catalog, publisher, st, reg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr: cfg.Listen,
		Handler: ws.NewServer(orchestrators,
			ws.WithEventRouter(router),
			ws.WithGatherer(reg),
			ws.WithInputRate(rate.Limit(cfg.InputRate), cfg.InputBurst),
			ws.WithOriginPatterns(cfg.Origins...),
		).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return router.Run(ctx)
	})
	eg.Go(func() error {
		select {
		case <-router.Running():
		case <-ctx.Done():
			return nil
		}
		log.Info().Str("addr", cfg.Listen).Strs("domains", catalog.Names()).Msg("serving")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
