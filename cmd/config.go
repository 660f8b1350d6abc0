package main

import (
	"strings"
	"time"
)

type Config struct {
	Host           string `env:"HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,default=3000"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	UploadDir      string `env:"UPLOAD_DIR,default=public/uploaded"`

	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	// MessagesToLoad is the number of recent messages attached to a room
	// on join and in the subscription snapshot.
	MessagesToLoad int `env:"MESSAGES_TO_LOAD,default=20"`

	BufferSize           int           `env:"BUFFER_SIZE,default=256"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=64"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=30s"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,default=200ms"`

	MaxAvatarKB int64 `env:"MAX_AVATAR_KB,default=512"`
	// Space-separated allow-list, each entry with its leading dot.
	AvatarExtensions string `env:"AVATAR_EXTENSIONS,default=.png .jpg .jpeg .gif"`
}

func (c Config) ExtensionList() []string {
	return strings.Fields(c.AvatarExtensions)
}

// MaxFrameSize bounds a single WebSocket frame: the avatar limit plus
// slack for JSON framing.
func (c Config) MaxFrameSize() int64 {
	return c.MaxAvatarKB*1024 + 64*1024
}
