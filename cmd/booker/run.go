package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/entrhq/booker/pkg/browser"
	"github.com/entrhq/booker/pkg/config"
	"github.com/entrhq/booker/pkg/control"
	"github.com/entrhq/booker/pkg/logging"
	"github.com/entrhq/booker/pkg/orchestrator"
	"github.com/entrhq/booker/pkg/profile"
	"github.com/entrhq/booker/pkg/report"
	"github.com/entrhq/booker/pkg/session"
	"github.com/entrhq/booker/pkg/slots"
	"github.com/entrhq/booker/pkg/types"
	"github.com/entrhq/booker/pkg/watcher"
	"github.com/entrhq/booker/pkg/wizard"
)

var log = logging.NewLogger("main")

func runCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the booking pipeline",
		Long: `Runs the booking pipeline over every profile in the users directory.

The pipeline keeps going until it is stopped through the control listener or
by an interrupt. With --once every user is tried a single time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			if once {
				settings.Orchestrator.ExitWhenIdle = true
			}
			return run(cmd.Context(), settings)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "try every user once, then exit")
	return cmd
}

// run wires the pipeline and blocks until it ends.
//
//nolint:gocyclo
func run(ctx context.Context, settings *config.Settings) error {
	level, err := logging.ParseLevel(settings.Logging.Level)
	if err != nil {
		return err
	}
	if err := logging.Configure(settings.Logging.Dir, level); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}
	defer logging.Close()

	logDir, err := logging.Dir()
	if err != nil {
		return err
	}
	events, err := logging.OpenEventLog(logDir)
	if err != nil {
		return err
	}
	defer events.Close()

	matcher, err := settings.PatternMatcher()
	if err != nil {
		return err
	}
	loader, err := profile.NewLoader(settings.Paths.UsersDir, settings.Paths.KeysDir, matcher)
	if err != nil {
		return err
	}
	snapshot, loadErrs := loader.Load()
	for _, e := range loadErrs {
		log.Warnf("Skipping profile: %v", e)
	}
	store := profile.NewStore(snapshot)
	log.Infof("Loaded %d profile(s) from %s", snapshot.Len(), loader.Dir())

	registry, err := slots.NewRegistry(settings.Paths.RegistryFile)
	if err != nil {
		return err
	}
	if err := registry.Load(); err != nil {
		log.Warnf("Starting with an empty slot registry: %v", err)
	}

	if os.Getenv(profile.PassphraseEnv) == "" {
		log.Warnf("%s is not set; logins will fail", profile.PassphraseEnv)
	}

	machine, err := wizard.NewMachine(wizard.DefaultSteps(), settings.Retry, settings.Perception.Threshold)
	if err != nil {
		return err
	}

	state := control.NewState()

	opts := session.DefaultOptions()
	opts.Consulates = settings.Consulates
	opts.PageBudget = settings.Search.PageBudget
	opts.HorizonDays = settings.Search.HorizonDays
	opts.ConfirmSamples = settings.Confirmation.Samples
	opts.SettleDelay = settings.Confirmation.SettleDelay
	opts.ConfirmAttempts = settings.Confirmation.MaxAttempts
	driver := session.NewDriver(machine, state, events, profile.NewVaultFromEnv(), registry, opts)

	manager := browser.NewManager(settings.Browser, settings.Catalog(), settings.Calendar,
		settings.Perception.Threshold, settings.Actions)
	if err := manager.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			log.Warnf("Browser shutdown: %v", err)
		}
	}()

	orch := orchestrator.New(store, driver, &workspace{manager: manager}, state, registry, orchestrator.Options{
		IdleInterval: settings.Orchestrator.IdleInterval,
		ExitWhenIdle: settings.Orchestrator.ExitWhenIdle,
		Events:       events,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	handleSignals(ctx, cancel, state)

	services, servicesCtx := errgroup.WithContext(ctx)
	pipelineCtx, stopServices := context.WithCancel(servicesCtx)
	defer stopServices()

	if settings.Control.Enabled {
		listener := control.NewListener(settings.Control.Addr, state, settings.Control.ReadTimeout)
		if err := listener.Listen(); err != nil {
			return err
		}
		services.Go(func() error { return listener.Serve(pipelineCtx) })
	}
	if settings.Watcher.Enabled {
		w := watcher.New(loader, store, settings.Watcher.Debounce)
		w.OnReload(func(_ *profile.Snapshot, _ profile.Diff, errs []error) {
			for _, e := range errs {
				log.Warnf("Skipping profile: %v", e)
			}
		})
		services.Go(func() error { return w.Run(pipelineCtx) })
	}

	start := time.Now()
	summary, runErr := orch.Run(pipelineCtx)
	end := time.Now()

	stopServices()
	if err := services.Wait(); err != nil {
		log.Errorf("Service failed: %v", err)
		if runErr == nil || errors.Is(runErr, context.Canceled) {
			runErr = err
		}
	}

	if registry.IsModified() {
		if err := registry.Save(); err != nil {
			log.Warnf("Failed to save slot registry: %v", err)
		}
	}

	if settings.Report.Enabled {
		writer := report.NewArtifactWriter(settings.Report.OutputDir)
		if err := writer.WriteAll(report.Build(logging.GetSessionID(), summary, start, end)); err != nil {
			log.Errorf("Failed to write run artifacts: %v", err)
		}
	}

	fmt.Printf("Booked %d, no slot %d, failed %d, aborted %d\n",
		summary.Count(types.ResultBooked),
		summary.Count(types.ResultNoSlotFound),
		summary.Count(types.ResultFailed),
		summary.Count(types.ResultAborted))

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// handleSignals turns the first interrupt into a stop command, which lets a
// submitted booking finish. A second interrupt cancels everything.
func handleSignals(ctx context.Context, cancel context.CancelFunc, state *control.State) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		fmt.Fprintln(os.Stderr, "\nStopping at the next checkpoint (interrupt again to abort)...")
		state.Set(types.CommandStop)

		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
}
