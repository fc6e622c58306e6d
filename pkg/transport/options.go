package transport

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Option keys understood by HTTPEngine.
const (
	OptionListeningPort      = "listening_port"
	OptionDocumentRoot       = "document_root"
	OptionEnableKeepAlive    = "enable_keep_alive"
	OptionMaxConnections     = "max_connections"
	OptionEnableH2C          = "enable_h2c"
	OptionMaxRequestSize     = "max_request_size"
	OptionReadTimeout        = "read_timeout"
	OptionWriteTimeout       = "write_timeout"
	OptionWebSocketOrigins   = "websocket_origins"
	OptionWebSocketReadLimit = "websocket_read_limit"
	OptionWebSocketSendQueue = "websocket_send_queue"
)

// DefaultMaxRequestSize caps request bodies when max_request_size is unset.
const DefaultMaxRequestSize = 10 << 20

// DefaultSendQueue is how many outbound frames a WebSocket may have waiting
// before its peer is treated as too slow and disconnected.
const DefaultSendQueue = 64

// httpSettings is the parsed form of an option map.
type httpSettings struct {
	addr           string
	documentRoot   string
	keepAlive      bool
	maxConnections int
	h2c            bool
	maxRequestSize int64
	readTimeout    time.Duration
	writeTimeout   time.Duration
	origins        []string
	readLimit      int64
	sendQueue      int
}

func parseSettings(opts map[string]string) (httpSettings, error) {
	s := httpSettings{
		addr:           ListenAddr(opts[OptionListeningPort]),
		documentRoot:   opts[OptionDocumentRoot],
		keepAlive:      true,
		maxRequestSize: DefaultMaxRequestSize,
		sendQueue:      DefaultSendQueue,
	}

	var err error
	if v, ok := opts[OptionEnableKeepAlive]; ok {
		if s.keepAlive, err = ParseBool(v); err != nil {
			return s, fmt.Errorf("%s: %w", OptionEnableKeepAlive, err)
		}
	}
	if v, ok := opts[OptionEnableH2C]; ok {
		if s.h2c, err = ParseBool(v); err != nil {
			return s, fmt.Errorf("%s: %w", OptionEnableH2C, err)
		}
	}
	if v := opts[OptionMaxConnections]; v != "" {
		if s.maxConnections, err = strconv.Atoi(v); err != nil || s.maxConnections < 0 {
			return s, fmt.Errorf("%s: invalid value %q", OptionMaxConnections, v)
		}
	}
	if v := opts[OptionMaxRequestSize]; v != "" {
		if s.maxRequestSize, err = strconv.ParseInt(v, 10, 64); err != nil || s.maxRequestSize <= 0 {
			return s, fmt.Errorf("%s: invalid value %q", OptionMaxRequestSize, v)
		}
	}
	if v := opts[OptionWebSocketReadLimit]; v != "" {
		if s.readLimit, err = strconv.ParseInt(v, 10, 64); err != nil || s.readLimit <= 0 {
			return s, fmt.Errorf("%s: invalid value %q", OptionWebSocketReadLimit, v)
		}
	}
	if v := opts[OptionWebSocketSendQueue]; v != "" {
		if s.sendQueue, err = strconv.Atoi(v); err != nil || s.sendQueue <= 0 {
			return s, fmt.Errorf("%s: invalid value %q", OptionWebSocketSendQueue, v)
		}
	}
	if v := opts[OptionReadTimeout]; v != "" {
		if s.readTimeout, err = time.ParseDuration(v); err != nil {
			return s, fmt.Errorf("%s: %w", OptionReadTimeout, err)
		}
	}
	if v := opts[OptionWriteTimeout]; v != "" {
		if s.writeTimeout, err = time.ParseDuration(v); err != nil {
			return s, fmt.Errorf("%s: %w", OptionWriteTimeout, err)
		}
	}
	for _, o := range strings.Split(opts[OptionWebSocketOrigins], ",") {
		if o = strings.TrimSpace(o); o != "" {
			s.origins = append(s.origins, o)
		}
	}
	return s, nil
}

// ListenAddr turns a listening_port value into a listen address. A bare
// port listens on all interfaces; "host:port" is used as is.
func ListenAddr(port string) string {
	port = strings.TrimSpace(port)
	switch {
	case port == "":
		return ":8080"
	case strings.Contains(port, ":"):
		return port
	default:
		return ":" + port
	}
}

// ParseBool accepts the yes/no spelling used by engine options as well as
// anything strconv.ParseBool understands.
func ParseBool(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	return strconv.ParseBool(v)
}

// FormatBool renders b the way engine options spell it.
func FormatBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
