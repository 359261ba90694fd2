package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/cjeanneret/wiper/internal/bus"
	"github.com/cjeanneret/wiper/internal/command"
	"github.com/cjeanneret/wiper/internal/config"
	"github.com/cjeanneret/wiper/internal/debug"
	"github.com/cjeanneret/wiper/internal/hw/gpio"
	"github.com/cjeanneret/wiper/internal/hw/motor"
	"github.com/cjeanneret/wiper/internal/logic/position"
	"github.com/cjeanneret/wiper/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start status server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	debugLevel := flag.Int("debug", -1, "override debug level (0-4)")
	mock := flag.Bool("mock", false, "use the in-memory GPIO driver instead of hardware")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := applyOverrides(cfg, overrides{
		DebugLevel: *debugLevel,
		WebPort:    webPort.port(),
		Mock:       *mock,
	}); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}

	debug.Init(cfg.Defaults.DebugLevel, "wiper")
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	var broadcaster *web.StatusBroadcaster
	if cfg.Defaults.WebPort > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
	}

	debug.Step(1, "Initializing pin access")
	debug.PrintStruct("Pin access", cfg.PinAccess)
	pins, err := gpio.NewDriver(gpioOptions(cfg))
	if err != nil {
		log.Fatalf("init pin access failed: %v", err)
	}
	defer func() {
		if err := pins.Close(); err != nil {
			log.Printf("closing pin access failed: %v", err)
		}
	}()

	debug.Step(2, "Initializing motor")
	debug.PrintStruct("Pins", cfg.Pins)
	m := motor.NewMotor(pins, motor.Config{
		DirAPin:   cfg.Pins.DirA,
		DirBPin:   cfg.Pins.DirB,
		EnablePin: cfg.Pins.Enable,
	})

	debug.Step(3, "Subscribing to commands")
	sub, err := bus.NewUDPSubscriber(cfg.Bus.ListenAddr, cfg.Bus.QueueSize)
	if err != nil {
		log.Fatalf("subscribe failed: %v", err)
	}
	defer sub.Close()
	debug.Value("Listening on", sub.Addr())

	ctrlCfg, err := controllerConfig(cfg)
	if err != nil {
		log.Fatalf("controller config: %v", err)
	}
	ctrl := position.NewController(pins, m, sub, ctrlCfg)

	if broadcaster != nil {
		srv := web.NewServer(fmt.Sprintf(":%d", cfg.Defaults.WebPort), broadcaster, ctrl.Snapshot)
		go func() {
			if err := srv.Run(ctx); err != nil {
				log.Printf("web server: %v", err)
			}
		}()
	}

	debug.Section("Control loop")
	if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("controller: %v", err)
	}
}

// overrides holds CLI values that take precedence over the config file.
// DebugLevel -1 and WebPort 0 mean "use config".
type overrides struct {
	DebugLevel int
	WebPort    int
	Mock       bool
}

// applyOverrides mutates cfg with the CLI overrides.
func applyOverrides(cfg *config.Config, o overrides) error {
	if o.DebugLevel < -1 || o.DebugLevel > debug.LevelTrace {
		return fmt.Errorf("debug level must be between 0 and %d, got %d", debug.LevelTrace, o.DebugLevel)
	}
	if o.DebugLevel >= 0 {
		cfg.Defaults.DebugLevel = o.DebugLevel
	}
	if o.WebPort > 0 {
		cfg.Defaults.WebPort = o.WebPort
	}
	if o.Mock {
		cfg.PinAccess.Type = gpio.TypeMock
	}
	return nil
}

func gpioOptions(cfg *config.Config) gpio.Options {
	return gpio.Options{
		Type:        cfg.PinAccess.Type,
		Device:      cfg.PinAccess.Device,
		BaudRate:    cfg.PinAccess.BaudRate,
		Settle:      cfg.SettleDelay(),
		ReadTimeout: cfg.ReadTimeout(),
		Pull:        cfg.PinAccess.Pull,
	}
}

// controllerConfig translates the config file sections into controller settings.
func controllerConfig(cfg *config.Config) (position.Config, error) {
	side, err := position.ParseSide(cfg.Control.DefaultSide)
	if err != nil {
		return position.Config{}, err
	}
	policy, err := position.ParseReadPolicy(cfg.Control.ReadFailure)
	if err != nil {
		return position.Config{}, err
	}
	buttons := command.ButtonMap{
		Left:   cfg.Buttons.Left,
		Right:  cfg.Buttons.Right,
		Middle: cfg.Buttons.Middle,
	}
	if err := buttons.Validate(); err != nil {
		return position.Config{}, err
	}
	return position.Config{
		Pins: position.Pins{
			LeftSwitch:   cfg.Pins.LeftSwitch,
			MiddleSwitch: cfg.Pins.MiddleSwitch,
			RightSwitch:  cfg.Pins.RightSwitch,
		},
		Buttons:     buttons,
		Interval:    cfg.LoopInterval(),
		DefaultSide: side,
		ReadPolicy:  policy,
	}, nil
}

// webPortFlag implements flag.Value for -web: 0 = use config, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
