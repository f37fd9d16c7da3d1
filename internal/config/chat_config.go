package config

import "time"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	// Websocket keepalive
	WriteWait  = 10 * time.Second
	PongWait   = 60 * time.Second
	PingPeriod = (PongWait * 9) / 10

	// SendBufferSize is the per-connection outbound queue length.
	SendBufferSize = 256

	// UploadsURLPrefix is the prefix of every persisted file reference.
	UploadsURLPrefix = "uploads"

	// NotificationFanOutLimit caps concurrent notification writes for one group event.
	NotificationFanOutLimit = 8

	// OnlineSetKey is the Redis set mirroring the presence registry.
	OnlineSetKey = "chat:online"
)
