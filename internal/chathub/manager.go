package chathub

import (
	"context"
	"sync"

	"crmchat/backend/internal/localization"
	"crmchat/backend/internal/models"
	"crmchat/backend/internal/storage"

	"go.uber.org/zap"
)

// ManagerService is the realtime hub. It owns the live connections, the
// presence and group registries, the upload sessions and the notifier, and
// routes every inbound event to its handler.
type ManagerService struct {
	Storage  storage.Storage
	Presence *PresenceRegistry
	Groups   *GroupRegistry
	Uploads  *UploadManager
	Notifier *Notifier

	// Texts renders notification strings in Lang.
	Texts *localization.Localizer
	Lang  string

	channels *channelHub
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	clients map[string]Client
	closing bool
}

// NewManagerService wires the hub around s. Uploaded files land in uploadDir.
func NewManagerService(s storage.Storage, uploadDir string, log *zap.Logger) (*ManagerService, error) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &ManagerService{
		Storage:  s,
		Presence: NewPresenceRegistry(),
		Groups:   NewGroupRegistry(),
		Texts:    localization.Default(),
		Lang:     localization.DefaultLanguage,
		channels: newChannelHub(),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[string]Client),
	}
	uploads, err := NewUploadManager(ctx, uploadDir, log.Named("upload"), m.completeUpload)
	if err != nil {
		cancel()
		return nil, err
	}
	m.Uploads = uploads
	m.Notifier = NewNotifier(s, m, log.Named("notify"))
	return m, nil
}

// Context is cancelled once Shutdown has finished.
func (m *ManagerService) Context() context.Context { return m.ctx }

// Register adds a freshly connected client. It does not bind an identity;
// that happens when the client sends a register event.
func (m *ManagerService) Register(c Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closing {
		return ErrShuttingDown
	}
	m.clients[c.GetConnID()] = c
	m.log.Debug("client connected", zap.String("conn_id", c.GetConnID()))
	return nil
}

// Unregister tears down everything bound to c: its open upload, its channel
// subscriptions and its presence entry. Group membership is left in place.
func (m *ManagerService) Unregister(c Client) {
	connID := c.GetConnID()
	m.mu.Lock()
	_, ok := m.clients[connID]
	delete(m.clients, connID)
	m.mu.Unlock()
	if !ok {
		return
	}

	m.Uploads.Abort(connID, ErrConnectionClosed)
	m.channels.leaveAll(connID)
	if identity, ok := m.Presence.Unregister(connID); ok {
		if err := m.Storage.SetOffline(m.ctx, identity); err != nil {
			m.log.Warn("presence mirror update failed", zap.String("identity", identity), zap.Error(err))
		}
		m.log.Info("user offline", zap.String("identity", identity), zap.String("conn_id", connID))
	}
	c.Close()
}

// ConnectionCount returns the number of live connections.
func (m *ManagerService) ConnectionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// EmitTo delivers ev once to every connection subscribed to any of channels.
func (m *ManagerService) EmitTo(ev models.OutboundEvent, channels ...string) {
	for _, c := range m.channels.members(channels...) {
		m.send(c, ev)
	}
}

// emitExcept delivers ev to channel subscribers other than except.
func (m *ManagerService) emitExcept(ev models.OutboundEvent, channel string, except Client) {
	for _, c := range m.channels.members(channel) {
		if c.GetConnID() == except.GetConnID() {
			continue
		}
		m.send(c, ev)
	}
}

func (m *ManagerService) send(c Client, ev models.OutboundEvent) {
	if !c.Send(ev) {
		m.log.Warn("dropped event for slow or closed client",
			zap.String("conn_id", c.GetConnID()),
			zap.String("event", ev.Event))
	}
}

// Shutdown stops accepting connections, aborts in-flight uploads, waits for
// finalizing ones to persist and closes every connection.
func (m *ManagerService) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closing = true
	clients := make([]Client, 0, len(m.clients))
	for _, c := range m.clients {
		clients = append(clients, c)
	}
	m.mu.Unlock()

	err := m.Uploads.Shutdown(ctx)
	for _, c := range clients {
		m.Unregister(c)
	}
	m.cancel()
	m.log.Info("hub stopped", zap.Int("closed_connections", len(clients)))
	return err
}
