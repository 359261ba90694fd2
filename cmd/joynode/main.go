package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cjeanneret/wiper/internal/bus"
	"github.com/cjeanneret/wiper/internal/config"
	"github.com/cjeanneret/wiper/internal/debug"
	"github.com/cjeanneret/wiper/internal/hw/joystick"
	"github.com/cjeanneret/wiper/internal/logic/publisher"
)

func main() {
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	device := flag.String("device", "", "override joystick device path")
	addr := flag.String("addr", "", "override publish address (host:port)")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := applyOverrides(cfg, overrides{
		Device:     *device,
		Addr:       *addr,
		DebugLevel: *debugLevel,
	}); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}

	debug.Init(cfg.Defaults.DebugLevel, "joynode")
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Joystick", cfg.Joystick.Device)
	debug.Value("Publish address", cfg.Bus.PublishAddr)

	js, err := joystick.Open(cfg.Joystick.Device)
	if err != nil {
		log.Fatalf("init joystick failed: %v", err)
	}
	defer js.Close()

	pub, err := bus.NewUDPPublisher(cfg.Bus.PublishAddr)
	if err != nil {
		log.Fatalf("init publisher failed: %v", err)
	}
	defer pub.Close()

	// The event read blocks; closing the device is what unblocks it.
	go func() {
		<-ctx.Done()
		js.Close()
	}()

	err = publisher.New(js, pub).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("joystick node: %v", err)
	}
}

// overrides holds CLI values that take precedence over the config file.
// Empty strings and DebugLevel -1 mean "use config".
type overrides struct {
	Device     string
	Addr       string
	DebugLevel int
}

func applyOverrides(cfg *config.Config, o overrides) error {
	if o.DebugLevel < -1 || o.DebugLevel > debug.LevelTrace {
		return fmt.Errorf("debug level must be between 0 and %d, got %d", debug.LevelTrace, o.DebugLevel)
	}
	if o.DebugLevel >= 0 {
		cfg.Defaults.DebugLevel = o.DebugLevel
	}
	if o.Device != "" {
		cfg.Joystick.Device = o.Device
	}
	if o.Addr != "" {
		cfg.Bus.PublishAddr = o.Addr
	}
	return nil
}
