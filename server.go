package orbyte

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"orbyte.systems/orbyte/core"
	"orbyte.systems/orbyte/httpapi"
	"orbyte.systems/orbyte/internal/activity"
	"orbyte.systems/orbyte/internal/eventbus"
	"orbyte.systems/orbyte/internal/panelconfig"
	"orbyte.systems/orbyte/internal/scriptexec"
	"orbyte.systems/orbyte/internal/scriptstore"
	"orbyte.systems/orbyte/internal/tokenstore"
	"orbyte.systems/orbyte/schema"
	"pkt.systems/pslog"
)

// Server composes the core service with the execution engine and the
// panel HTTP API. Subscribe exposes the event stream for embedding
// shells that sit next to the HTTP transport.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	Subscribe() (<-chan eventbus.Event, func())
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Service         schema.ServiceConfig
	HTTP            httpapi.Config
	Exec            scriptexec.Config
	HubHistory      int
	PanelConfigPath string
	TokenDir        string
	ActivityLogPath string
}

// ServerDeps captures dependencies required to build the server. A nil
// Bridge is replaced with a filesystem store rooted at the configured
// scripts directory; a nil Executor with the embedded engine.
type ServerDeps struct {
	ServiceDeps core.ServiceDeps
}

// New constructs an orbyte server.
func New(cfg ServerConfig, deps ServerDeps) (Server, error) {
	normalized, err := schema.NormalizeServiceConfig(cfg.Service)
	if err != nil {
		return nil, err
	}
	cfg.Service = normalized
	if cfg.PanelConfigPath == "" {
		cfg.PanelConfigPath = filepath.Join(cfg.Service.StateDir, "panel.json")
	}
	if cfg.TokenDir == "" {
		cfg.TokenDir = filepath.Join(cfg.Service.StateDir, "token")
	}
	if cfg.ActivityLogPath == "" {
		cfg.ActivityLogPath = filepath.Join(cfg.Service.StateDir, "activity.jsonl")
	}

	logger := deps.ServiceDeps.Logger
	serviceDeps := deps.ServiceDeps

	if serviceDeps.Bridge == nil {
		store, err := scriptstore.New(cfg.Service.ScriptsRoot, cfg.Service.ScriptExt, logger)
		if err != nil {
			return nil, err
		}
		serviceDeps.Bridge = store
	}

	hub := httpapi.NewHub(cfg.HubHistory)
	bus := eventbus.New(logger)
	sinks := make([]core.EventSink, 0, 3)
	if serviceDeps.EventSink != nil {
		sinks = append(sinks, serviceDeps.EventSink)
	}
	sinks = append(sinks, hub, bus)
	serviceDeps.EventSink = eventFanout{sinks: sinks}

	relay := &execRelay{}
	var engine *scriptexec.Engine
	if serviceDeps.Executor == nil {
		engine = scriptexec.New(cfg.Exec, relay.notify, logger)
		serviceDeps.Executor = engine
	}

	service, err := core.NewService(cfg.Service, serviceDeps)
	if err != nil {
		return nil, err
	}
	relay.bind(service)

	panelCfg, err := panelconfig.NewManager(cfg.PanelConfigPath, logger)
	if err != nil {
		return nil, err
	}
	tokens, err := tokenstore.NewStoreWithLogger(cfg.TokenDir, logger)
	if err != nil {
		return nil, err
	}
	activityLog, err := activity.NewLogWithLogger(cfg.ActivityLogPath, logger)
	if err != nil {
		return nil, err
	}

	httpSrv := httpapi.NewServer(cfg.HTTP, service, panelCfg, tokens, activityLog, hub)

	return &compositeServer{
		cfg:     cfg,
		httpSrv: httpSrv,
		engine:  engine,
		bus:     bus,
	}, nil
}

// execRelay forwards engine notifications to the service once both
// exist. The engine is constructed before the service because the
// service owns the engine as its executor.
type execRelay struct {
	mu      sync.Mutex
	service core.Service
}

func (r *execRelay) bind(service core.Service) {
	r.mu.Lock()
	r.service = service
	r.mu.Unlock()
}

func (r *execRelay) notify(event schema.ExecEvent) {
	r.mu.Lock()
	service := r.service
	r.mu.Unlock()
	if service == nil {
		return
	}
	service.HandleExecEvent(context.Background(), event)
}

type compositeServer struct {
	cfg     ServerConfig
	httpSrv *httpapi.Server
	engine  *scriptexec.Engine
	bus     *eventbus.Bus
	logger  pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"http_addr", s.cfg.HTTP.Addr,
		"http_base_path", s.cfg.HTTP.BasePath,
		"scripts_root", s.cfg.Service.ScriptsRoot,
	)
	go func() {
		if err := httpapi.ListenAndServe(s.ctx, s.cfg.HTTP.Addr, s.httpSrv.Handler()); err != nil {
			log.Error("http server failed", "err", err)
			s.errCh <- err
		}
	}()
	return nil
}

func (s *compositeServer) Subscribe() (<-chan eventbus.Event, func()) {
	return s.bus.Subscribe()
}

func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *compositeServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	log := s.logger
	s.mu.Unlock()
	if !started {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if s.engine != nil {
		s.engine.StopAll()
		log.Info("server exec engine stopped")
	}
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		log.Info("server stop completed")
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-s.ctx.Done():
		log.Info("server stopped")
		return nil
	}
}
