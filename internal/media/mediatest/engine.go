// Package mediatest provides a deterministic in-memory media.Engine for
// tests. Transports never carry traffic; their lifecycle and identity
// behave like the real engine's, and state changes can be forced.
package mediatest

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/atriumspace/atrium/internal/media"
)

type Engine struct {
	mu            sync.Mutex
	transports    map[string]*Transport
	dataProducers map[string]*DataProducer
	producers     map[string]*Producer

	// FailNextCreate makes the next CreateTransport return an error.
	FailNextCreate bool
}

func NewEngine() *Engine {
	return &Engine{
		transports:    make(map[string]*Transport),
		dataProducers: make(map[string]*DataProducer),
		producers:     make(map[string]*Producer),
	}
}

func (e *Engine) RtpCapabilities() webrtc.RTPCapabilities {
	return webrtc.RTPCapabilities{Codecs: []webrtc.RTPCodecCapability{
		{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
	}}
}

func (e *Engine) CreateTransport(_ context.Context, dir media.Direction) (media.Transport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailNextCreate {
		e.FailNextCreate = false
		return nil, errors.New("mediatest: transport creation failed")
	}
	t := &Transport{
		engine: e,
		id:     uuid.NewString(),
		dir:    dir,
	}
	e.transports[t.id] = t
	return t, nil
}

func (e *Engine) CanConsume(producerID string, caps webrtc.RTPCapabilities) bool {
	p, ok := e.liveProducer(producerID)
	if !ok {
		return false
	}
	return media.CapabilitiesCompatible(p.rtp, caps)
}

// liveDataProducer resolves a producer id, evicting closed entries the
// way the real engine does.
func (e *Engine) liveDataProducer(id string) (*DataProducer, bool) {
	e.mu.Lock()
	dp, ok := e.dataProducers[id]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	if dp.Closed() {
		e.mu.Lock()
		delete(e.dataProducers, id)
		e.mu.Unlock()
		return nil, false
	}
	return dp, true
}

func (e *Engine) liveProducer(id string) (*Producer, bool) {
	e.mu.Lock()
	p, ok := e.producers[id]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	if p.Closed() {
		e.mu.Lock()
		delete(e.producers, id)
		e.mu.Unlock()
		return nil, false
	}
	return p, true
}

type Transport struct {
	engine *Engine
	id     string
	dir    media.Direction

	mu        sync.Mutex
	closed    bool
	connected bool
	onIce     func(webrtc.ICETransportState)
	onDtls    func(webrtc.DTLSTransportState)
}

func (t *Transport) ID() string                 { return t.id }
func (t *Transport) Direction() media.Direction { return t.dir }

func (t *Transport) Info() media.TransportInfo {
	return media.TransportInfo{
		ID:            t.id,
		IceParameters: webrtc.ICEParameters{UsernameFragment: "ufrag-" + t.id[:8], Password: "pwd-" + t.id[:8]},
		DtlsParameters: webrtc.DTLSParameters{
			Role:         webrtc.DTLSRoleServer,
			Fingerprints: []webrtc.DTLSFingerprint{{Algorithm: "sha-256", Value: "00:11:22"}},
		},
		SctpParameters: webrtc.SCTPCapabilities{MaxMessageSize: 262144},
	}
}

func (t *Transport) Connect(_ context.Context, _ webrtc.DTLSParameters) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return errors.New("mediatest: transport closed")
	}
	if t.connected {
		return errors.New("mediatest: transport already connected")
	}
	t.connected = true
	return nil
}

func (t *Transport) RestartIce(_ context.Context) (webrtc.ICEParameters, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return webrtc.ICEParameters{}, errors.New("mediatest: transport closed")
	}
	return webrtc.ICEParameters{
		UsernameFragment: "ufrag-" + uuid.NewString()[:8],
		Password:         "pwd-" + uuid.NewString()[:8],
	}, nil
}

func (t *Transport) ProduceData(_ context.Context, params media.SCTPStreamParameters, label, protocol string) (media.DataProducer, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.New("mediatest: transport closed")
	}
	t.mu.Unlock()

	dp := &DataProducer{id: uuid.NewString(), transport: t, params: params, label: label, protocol: protocol}
	t.engine.mu.Lock()
	t.engine.dataProducers[dp.id] = dp
	t.engine.mu.Unlock()
	return dp, nil
}

func (t *Transport) ConsumeData(_ context.Context, producerID string) (media.DataConsumer, error) {
	dp, ok := t.engine.liveDataProducer(producerID)
	if !ok {
		return nil, errors.New("mediatest: data producer not found")
	}
	return &DataConsumer{id: uuid.NewString(), producer: dp}, nil
}

func (t *Transport) Produce(_ context.Context, kind media.Kind, rtp media.RTPParameters) (media.Producer, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil, errors.New("mediatest: transport closed")
	}
	t.mu.Unlock()

	p := &Producer{id: uuid.NewString(), transport: t, kind: kind, rtp: rtp}
	t.engine.mu.Lock()
	t.engine.producers[p.id] = p
	t.engine.mu.Unlock()
	return p, nil
}

func (t *Transport) Consume(_ context.Context, producerID string, caps webrtc.RTPCapabilities) (media.Consumer, error) {
	p, ok := t.engine.liveProducer(producerID)
	if !ok {
		return nil, errors.New("mediatest: producer not found")
	}
	if !media.CapabilitiesCompatible(p.rtp, caps) {
		return nil, errors.New("mediatest: incompatible capabilities")
	}
	return &Consumer{id: uuid.NewString(), producer: p, rtp: media.ConsumerParameters(p.rtp, caps)}, nil
}

func (t *Transport) OnIceStateChange(fn func(webrtc.ICETransportState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onIce = fn
}

func (t *Transport) OnDtlsStateChange(fn func(webrtc.DTLSTransportState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDtls = fn
}

// FireIceState invokes the registered ICE-state callback, simulating a
// connectivity event from the engine.
func (t *Transport) FireIceState(s webrtc.ICETransportState) {
	t.mu.Lock()
	fn := t.onIce
	t.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

// FireDtlsState invokes the registered DTLS-state callback.
func (t *Transport) FireDtlsState(s webrtc.DTLSTransportState) {
	t.mu.Lock()
	fn := t.onDtls
	t.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
}

type DataProducer struct {
	id        string
	transport *Transport
	params    media.SCTPStreamParameters
	label     string
	protocol  string

	mu     sync.Mutex
	closed bool
}

func (p *DataProducer) ID() string                                   { return p.id }
func (p *DataProducer) Label() string                                { return p.label }
func (p *DataProducer) Protocol() string                             { return p.protocol }
func (p *DataProducer) StreamParameters() media.SCTPStreamParameters { return p.params }

func (p *DataProducer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed || p.transport.Closed()
}

func (p *DataProducer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.transport.engine.mu.Lock()
	delete(p.transport.engine.dataProducers, p.id)
	p.transport.engine.mu.Unlock()
}

type DataConsumer struct {
	id       string
	producer *DataProducer

	mu     sync.Mutex
	closed bool
}

func (c *DataConsumer) ID() string                                   { return c.id }
func (c *DataConsumer) ProducerID() string                           { return c.producer.id }
func (c *DataConsumer) Label() string                                { return c.producer.label }
func (c *DataConsumer) Protocol() string                             { return c.producer.protocol }
func (c *DataConsumer) StreamParameters() media.SCTPStreamParameters { return c.producer.params }

func (c *DataConsumer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

type Producer struct {
	id        string
	transport *Transport
	kind      media.Kind
	rtp       media.RTPParameters

	mu     sync.Mutex
	closed bool
}

func (p *Producer) ID() string                         { return p.id }
func (p *Producer) Kind() media.Kind                   { return p.kind }
func (p *Producer) RtpParameters() media.RTPParameters { return p.rtp }

func (p *Producer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed || p.transport.Closed()
}

func (p *Producer) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.transport.engine.mu.Lock()
	delete(p.transport.engine.producers, p.id)
	p.transport.engine.mu.Unlock()
}

type Consumer struct {
	id       string
	producer *Producer
	rtp      media.RTPParameters

	mu     sync.Mutex
	closed bool
}

func (c *Consumer) ID() string                         { return c.id }
func (c *Consumer) ProducerID() string                 { return c.producer.id }
func (c *Consumer) Kind() media.Kind                   { return c.producer.kind }
func (c *Consumer) RtpParameters() media.RTPParameters { return c.rtp }

func (c *Consumer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
