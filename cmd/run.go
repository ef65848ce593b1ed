package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seaquell/outpost/internal/config"
	"github.com/seaquell/outpost/internal/dispatch"
	"github.com/seaquell/outpost/internal/gesture"
	"github.com/seaquell/outpost/internal/platform"
	"github.com/seaquell/outpost/internal/runners"
	"github.com/seaquell/outpost/internal/session"
	"github.com/seaquell/outpost/internal/tracing"
	"github.com/seaquell/outpost/pkg/protocol"
)

func runCmd() *cobra.Command {
	var showFrames bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the controller and serve tasks until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(showFrames)
		},
	}
	cmd.Flags().BoolVar(&showFrames, "show-frames", false, "log every frame in both directions")
	return cmd
}

func runAgent(showFrames bool) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	gate := gesture.New(&terminalPrompter{})
	caps := hostCapabilities()
	collector := &platform.HostCollector{Extra: map[string]any{"appId": cfg.AppID}}

	var observer session.Observer
	if showFrames {
		observer = func(dir string, frame any) {
			slog.Info("frame", "dir", dir, "frame", fmt.Sprintf("%+v", frame))
		}
	}

	sess, err := session.New(session.Options{
		Endpoint:          cfg.Endpoint,
		AppID:             cfg.AppID,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Collector:         collector,
		Observer:          observer,
	})
	if err != nil {
		return err
	}
	dispatcher := dispatch.New(sess)
	registerRunners(dispatcher, gate, caps, collector, cfg)
	sess.SetHandler(dispatcher)

	shutdownTracing, err := tracing.Setup(ctx, cfg.Trace, sess.ID())
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	if watcher, err := config.NewWatcher(cfgPath); err == nil {
		watcher.OnChange(func(next *config.Config) { setupLogging(next.LogLevel) })
		if err := watcher.Start(); err == nil {
			defer watcher.Stop()
		}
	}

	fmt.Printf("session %s\n", sess.ID())
	sess.Start(ctx)
	defer sess.Stop()

	go confirmLoop(ctx, gate)

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// registerRunners wires every task kind. The dispatcher emits through
// the session; nothing else touches the connection.
func registerRunners(d *dispatch.Dispatcher, gate *gesture.Gate, caps platform.Capabilities, collector platform.SnapshotCollector, cfg *config.Config) {
	d.Register(runners.CPURunner{})
	d.Register(runners.NewFetchRunner(runners.FetchOptions{
		HTTPBase:        cfg.HTTPBase,
		Timeout:         cfg.Fetch.Timeout,
		PreviewMaxBytes: cfg.Fetch.PreviewMaxBytes,
		CacheTTL:        cfg.Fetch.CacheTTL,
	}))
	d.Register(&runners.SnapshotRunner{Collector: collector})
	d.Register(&runners.LocationOnceRunner{Loc: caps.Location})
	d.Register(&runners.LocationWatchRunner{Loc: caps.Location})
	d.Register(&runners.CameraSnapshotRunner{Cam: caps.Camera, Gate: gate})
	d.Register(&runners.QRScanRunner{Cam: caps.Camera, Det: caps.Barcode, Gate: gate})
	d.Register(&runners.MicSampleRunner{Mic: caps.Mic, Gate: gate})
	d.Register(&runners.MediaDevicesRunner{Lister: caps.Devices})
	d.RegisterAlias(protocol.KindInfo, protocol.KindInfoSnapshot)
}

// hostCapabilities returns the sensors this build can reach. Headless
// builds leave them nil; the runners answer with clean failure results.
func hostCapabilities() platform.Capabilities {
	return platform.Capabilities{}
}

// terminalPrompter renders the gesture prompt on the terminal.
type terminalPrompter struct{}

func (terminalPrompter) Show(capability string) {
	fmt.Printf("\n[permission] a task wants to use the %s; press Enter to allow\n", capability)
}

func (terminalPrompter) Hide() {}

// confirmLoop turns Enter keypresses into gate confirmations.
func confirmLoop(ctx context.Context, gate *gesture.Gate) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		gate.Confirm()
	}
}
