package doubaotts

import (
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultURL is the bidirectional TTS endpoint.
	DefaultURL = "wss://openspeech.bytedance.com/api/v3/tts/bidirection"

	// DefaultResourceID is the resource the bidirectional endpoint is billed against.
	DefaultResourceID = "volc.service_type.10029"

	// DefaultAudioFormat and DefaultSampleRate describe the audio requested
	// when no WithAudioFormat or WithSampleRate option is given: 16-bit mono
	// PCM at 24 kHz.
	DefaultAudioFormat = "pcm"
	DefaultSampleRate  = 24000

	defaultHandshakeTimeout = 5 * time.Second
	defaultReadLimit        = 100 << 20 // 100 MiB
	defaultUserID           = "default_user"
)

// clientConfig represents client configuration
type clientConfig struct {
	appID      string
	accessKey  string // X-Api-Access-Key
	resourceID string // X-Api-Resource-Id
	url        string
	userID     string
	speaker    string
	audio      AudioParams

	handshakeTimeout time.Duration
	readLimit        int64

	dialer         Dialer
	callback       Callback
	logger         *slog.Logger
	metrics        *Metrics
	tracerProvider trace.TracerProvider
}

func newClientConfig(appID string, opts []Option) *clientConfig {
	config := &clientConfig{
		appID:            appID,
		resourceID:       DefaultResourceID,
		url:              DefaultURL,
		userID:           defaultUserID,
		audio:            AudioParams{Format: DefaultAudioFormat, SampleRate: DefaultSampleRate},
		handshakeTimeout: defaultHandshakeTimeout,
		readLimit:        defaultReadLimit,
	}
	for _, opt := range opts {
		opt(config)
	}
	return config
}

// Option represents configuration option function
type Option func(*clientConfig)

// WithAccessKey sets the access token sent as X-Api-Access-Key.
func WithAccessKey(accessKey string) Option {
	return func(c *clientConfig) {
		c.accessKey = accessKey
	}
}

// WithResourceID sets X-Api-Resource-Id.
//
// Default: volc.service_type.10029
func WithResourceID(resourceID string) Option {
	return func(c *clientConfig) {
		c.resourceID = resourceID
	}
}

// WithURL sets the WebSocket endpoint.
//
// Default: wss://openspeech.bytedance.com/api/v3/tts/bidirection
func WithURL(url string) Option {
	return func(c *clientConfig) {
		c.url = url
	}
}

// WithUserID sets the uid sent in every request payload.
func WithUserID(userID string) Option {
	return func(c *clientConfig) {
		c.userID = userID
	}
}

// WithSpeaker sets the voice, e.g. zh_female_wanwanxiaohe_moon_bigtts.
func WithSpeaker(speaker string) Option {
	return func(c *clientConfig) {
		c.speaker = speaker
	}
}

// WithAudioFormat sets the output encoding: pcm (default), mp3 or ogg_opus.
func WithAudioFormat(format string) Option {
	return func(c *clientConfig) {
		c.audio.Format = format
	}
}

// WithSampleRate sets the output sample rate. Default: 24000.
func WithSampleRate(rate int) Option {
	return func(c *clientConfig) {
		c.audio.SampleRate = rate
	}
}

// WithHandshakeTimeout bounds each of the connection and session handshakes.
// Default: 5s.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.handshakeTimeout = d
	}
}

// WithReadLimit sets the maximum inbound message size. Default: 100 MiB.
func WithReadLimit(n int64) Option {
	return func(c *clientConfig) {
		c.readLimit = n
	}
}

// WithDialer replaces the WebSocket dialer, e.g. to reuse a connection
// established elsewhere or to inject a test double.
func WithDialer(d Dialer) Option {
	return func(c *clientConfig) {
		c.dialer = d
	}
}

// WithCallback sets the receiver of session notifications.
func WithCallback(cb Callback) Option {
	return func(c *clientConfig) {
		c.callback = cb
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithMetrics records client activity in m.
func WithMetrics(m *Metrics) Option {
	return func(c *clientConfig) {
		c.metrics = m
	}
}

// Client drives one bidirectional TTS stream: connection handshake, session
// handshake, incremental text submission and teardown. It owns exactly one
// session; construct a new Client for every stream. Client is not designed
// for concurrent callers.
type Client struct {
	config  *clientConfig
	builder *requestBuilder
	cb      Callback
	log     *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer

	mu           sync.Mutex
	state        State
	conn         Conn
	connectionID string
	sessionID    string
	failure      error
	closeCalled  bool
	loopDone     chan struct{}

	// sendMu serializes every write to conn.
	sendMu sync.Mutex

	connectionReady *signal
	sessionReady    *signal
	complete        *signal // first TTSSentenceEnd
	finished        *signal // server confirmed our FinishSession or FinishConnection
}

// NewClient creates a bidirectional TTS client.
//
// appID is the application ID from the Volcano Engine console, sent as
// X-Api-App-Key. No connection is made until Start or the first StreamingCall.
func NewClient(appID string, opts ...Option) *Client {
	config := newClientConfig(appID, opts)
	if config.dialer == nil {
		config.dialer = config.websocketDialer()
	}
	if config.callback == nil {
		config.callback = NopCallback{}
	}
	if config.logger == nil {
		config.logger = slog.Default()
	}

	return &Client{
		config: config,
		builder: &requestBuilder{
			uid:     config.userID,
			speaker: config.speaker,
			audio:   config.audio,
		},
		cb:              config.callback,
		log:             config.logger,
		metrics:         config.metrics,
		tracer:          newTracer(config.tracerProvider),
		connectionReady: newSignal(),
		sessionReady:    newSignal(),
		complete:        newSignal(),
		finished:        newSignal(),
	}
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionID returns the id of the current session, or "" before the
// session handshake.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// ConnectionID returns the id the server assigned in ConnectionStarted.
func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// setStateLocked moves to s and keeps the active-session gauge in step.
// c.mu must be held.
func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	if c.state == StateSessionActive {
		c.metrics.sessionClosed()
	}
	if s == StateSessionActive {
		c.metrics.sessionOpened()
	}
	c.state = s
}
