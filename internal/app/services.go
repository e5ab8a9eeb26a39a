package app

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huebridge/internal/config"
	"github.com/dokzlo13/huebridge/internal/db"
	"github.com/dokzlo13/huebridge/internal/description"
	"github.com/dokzlo13/huebridge/internal/device"
	"github.com/dokzlo13/huebridge/internal/dispatch"
	"github.com/dokzlo13/huebridge/internal/eventbus"
	"github.com/dokzlo13/huebridge/internal/hueapi"
	"github.com/dokzlo13/huebridge/internal/ledger"
	luart "github.com/dokzlo13/huebridge/internal/lua"
	"github.com/dokzlo13/huebridge/internal/mdns"
	"github.com/dokzlo13/huebridge/internal/mqtt"
	"github.com/dokzlo13/huebridge/internal/netinfo"
	"github.com/dokzlo13/huebridge/internal/ssdp"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core
	Host       netinfo.Static
	Identity   netinfo.Identity
	Registry   *device.Registry
	Bus        *eventbus.Bus
	Dispatcher *dispatch.Dispatcher

	// Transports
	HTTP      *hueapi.Server
	Discovery *ssdp.Responder
	MQTT      *mqtt.Client

	// Optional
	DB     *db.DB
	Ledger *ledger.Ledger
	Lua    *luart.Runtime
	Health *HealthService

	discoveryConn net.PacketConn
	wg            sync.WaitGroup
}

// NewServices creates all services with proper dependency injection.
// Nothing listens until Start.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	host, err := netinfo.Detect(cfg.Bridge.AdvertiseIP, cfg.Bridge.MAC)
	if err != nil {
		return nil, fmt.Errorf("resolve host identity: %w", err)
	}
	s.Host = host
	s.Identity = netinfo.NewIdentity(host.HardwareAddr())

	s.Registry = device.NewRegistry(cfg.Bridge.MaxDevices)
	for _, d := range cfg.Devices {
		id, err := s.Registry.Register(d.Name, d.Type, uint8(d.Value))
		if err != nil {
			return nil, fmt.Errorf("register %q: %w", d.Name, err)
		}
		log.Debug().Int("id", id).Str("name", d.Name).Str("type", d.Type.String()).Msg("Registered light")
	}

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.Workers, cfg.EventBus.QueueSize)
	s.Dispatcher = dispatch.New(s.Registry, s.Bus, s.Identity.LightID)

	gateway := hueapi.NewGateway(s.Registry, s.Dispatcher, s.Identity,
		hueapi.WithUsername(cfg.Bridge.Username),
		hueapi.WithLegacySchema(cfg.API.LegacySchema),
	)
	s.HTTP = hueapi.NewServer(cfg.Bridge.Addr(), gateway, s.Registry,
		description.Render(host.LocalIP(), cfg.Bridge.Port, s.Identity))

	if cfg.Discovery.IsEnabled() {
		s.Discovery = ssdp.NewResponder(host.LocalIP(), cfg.Bridge.Port, s.Identity)
	}

	if cfg.Ledger.Enabled {
		database, err := db.Open(cfg.Ledger.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database
		s.Ledger = ledger.New(database.DB)
	}

	if cfg.Script != "" {
		s.Lua = luart.NewRuntime(s.Registry, s.Dispatcher, s.Identity.LightID)
		if s.Ledger != nil {
			s.Lua.SetHistory(s.Ledger)
		}
	}

	s.Health = NewHealthService(cfg, s.ready)

	return s, nil
}

// Start binds the listeners and starts all background services. A bind
// failure of the HTTP or discovery socket is returned. Errors of running
// services are reported through onFatalError.
func (s *Services) Start(ctx context.Context, onFatalError func(error)) (err error) {
	if err := s.HTTP.Listen(); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			s.HTTP.Close()
			if s.discoveryConn != nil {
				s.discoveryConn.Close()
			}
		}
	}()

	if s.Discovery != nil {
		conn, err := ssdp.Listen(s.cfg.Discovery.Group, s.cfg.Discovery.Interface)
		if err != nil {
			return fmt.Errorf("discovery: %w", err)
		}
		s.discoveryConn = conn
	}

	if s.Lua != nil {
		if err := s.Lua.LoadScript(s.cfg.Script); err != nil {
			return err
		}
		s.Bus.Subscribe(eventbus.EventTypeLightChanged, s.Lua.HandleEvent)
		s.goRun(func() { s.Lua.Run(ctx) })
	}

	if s.Ledger != nil {
		s.Bus.Subscribe(eventbus.EventTypeLightChanged, s.Ledger.HandleEvent)
		retention := time.Duration(s.cfg.Ledger.RetentionDays) * 24 * time.Hour
		s.goRun(func() { s.Ledger.RunCleanup(ctx, s.cfg.Ledger.CleanupInterval.Duration(), retention) })
	}

	if s.cfg.MQTT.Enabled {
		if err := s.startMQTT(); err != nil {
			return err
		}
	}

	s.goRun(func() {
		if err := s.HTTP.Serve(ctx, s.cfg.GetShutdownTimeout()); err != nil {
			onFatalError(fmt.Errorf("bridge http server: %w", err))
		}
	})

	if s.Discovery != nil {
		s.goRun(func() {
			if err := s.Discovery.Serve(ctx, s.discoveryConn); err != nil {
				onFatalError(fmt.Errorf("discovery: %w", err))
			}
		})
	}

	if s.cfg.MDNS.Enabled {
		port := s.cfg.Bridge.Port
		if _, p, err := net.SplitHostPort(s.HTTP.Addr()); err == nil {
			port, _ = strconv.Atoi(p)
		}
		s.goRun(func() {
			if err := mdns.Run(ctx, port, s.Identity); err != nil {
				log.Warn().Err(err).Msg("mDNS advertisement unavailable")
			}
		})
	}

	s.Health.Start(ctx)

	log.Info().
		Str("addr", s.HTTP.Addr()).
		Str("bridge_id", s.Identity.BridgeID()).
		Int("lights", s.Registry.Len()).
		Bool("discovery", s.Discovery != nil).
		Msg("Bridge services started")
	return nil
}

func (s *Services) startMQTT() error {
	client, err := mqtt.Connect(s.cfg.MQTT)
	if err != nil {
		return err
	}
	s.MQTT = client

	bridge := mqtt.NewBridge(client.Topics(), client, s.Dispatcher)
	if err := client.Subscribe(client.Topics().AllLightSets(), bridge.HandleSet); err != nil {
		return err
	}
	s.Bus.Subscribe(eventbus.EventTypeLightChanged, bridge.HandleEvent)
	return nil
}

func (s *Services) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

// ready reports whether every enabled listener is up.
func (s *Services) ready() bool {
	if s.Discovery != nil && s.Discovery.State() != ssdp.StateListening {
		return false
	}
	return s.MQTT == nil || s.MQTT.IsConnected()
}

// Stop waits for the background services, which exit once the context
// passed to Start is cancelled, and releases all resources.
func (s *Services) Stop() error {
	s.wg.Wait()
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.GetShutdownTimeout())
		s.Bus.Close(ctx)
		cancel()
	}
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.Lua != nil {
		s.Lua.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
