package modules

import (
	"context"

	"github.com/riverqueue/river"

	"collabhub.io/realtime/internal/api/handlers"
	"collabhub.io/realtime/internal/gateway"
	"collabhub.io/realtime/internal/realtime"
)

// RealtimeModule wires presence, the pending queue, the dispatcher and the
// websocket gateway.
type RealtimeModule struct {
	dispatcher *realtime.Dispatcher
	manager    *gateway.Manager
}

// NewRealtimeModule creates the realtime module.
func NewRealtimeModule(infra *Infrastructure) *RealtimeModule {
	cfg := infra.Config.Realtime

	dispatcher := realtime.NewDispatcher(
		realtime.NewRegistry(),
		realtime.NewQueue(cfg.QueueCapacity),
		infra.Store,
	)
	manager := gateway.NewManager(gateway.Config{
		HeartbeatInterval: cfg.HeartbeatInterval,
		PingInterval:      cfg.PingInterval,
		PongTimeout:       cfg.PongTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		SendBuffer:        cfg.SendBuffer,
		MaxMessageSize:    cfg.MaxMessageSize,
		AllowQueryToken:   cfg.AllowQueryToken,
		AllowedOrigins:    infra.Config.Server.EffectiveOrigins(),
	}, infra.Verifier, infra.Store, infra.Store, dispatcher, infra.Pools)

	return &RealtimeModule{dispatcher: dispatcher, manager: manager}
}

// Dispatcher returns the delivery dispatcher shared with the notification module.
func (m *RealtimeModule) Dispatcher() *realtime.Dispatcher { return m.dispatcher }

func (m *RealtimeModule) Name() string { return "realtime" }

func (m *RealtimeModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Dispatcher = m.dispatcher
	deps.WebSocket = m.manager
}

func (m *RealtimeModule) RegisterWorkers(*river.Workers) {}

func (m *RealtimeModule) Start(context.Context) error {
	return m.manager.StartHeartbeat()
}

func (m *RealtimeModule) Shutdown(context.Context) error { return nil }
