package ortc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/media"
)

// dataProducer wraps the inbound data channel and fans its messages out
// to every subscribed consumer channel.
type dataProducer struct {
	id        string
	transport *Transport
	dc        *webrtc.DataChannel
	params    media.SCTPStreamParameters
	label     string
	protocol  string

	mu          sync.RWMutex
	closed      bool
	subscribers map[string]*dataConsumer
}

func (t *Transport) ProduceData(_ context.Context, params media.SCTPStreamParameters, label, protocol string) (media.DataProducer, error) {
	if t.Closed() {
		return nil, errors.New("transport closed")
	}

	streamID := params.StreamID
	dc, err := t.engine.api.NewDataChannel(t.sctp, &webrtc.DataChannelParameters{
		Label: label,
		ID:    &streamID,
	})
	if err != nil {
		return nil, fmt.Errorf("new data channel: %w", err)
	}

	dp := &dataProducer{
		id:          uuid.NewString(),
		transport:   t,
		dc:          dc,
		params:      params,
		label:       label,
		protocol:    protocol,
		subscribers: make(map[string]*dataConsumer),
	}
	dc.OnClose(func() {
		dp.mu.Lock()
		dp.closed = true
		dp.mu.Unlock()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		dp.fanOut(msg)
	})

	t.engine.registerDataProducer(dp)
	log.Info().Str("module", "media.ortc").Str("producer", dp.id).Str("label", label).Msg("data producer created")
	return dp, nil
}

func (t *Transport) ConsumeData(_ context.Context, producerID string) (media.DataConsumer, error) {
	if t.Closed() {
		return nil, errors.New("transport closed")
	}
	dp, ok := t.engine.dataProducer(producerID)
	if !ok {
		return nil, errors.New("data producer not found")
	}

	streamID := t.allocStreamID()
	dc, err := t.engine.api.NewDataChannel(t.sctp, &webrtc.DataChannelParameters{
		Label: dp.label,
		ID:    &streamID,
	})
	if err != nil {
		return nil, fmt.Errorf("new data channel: %w", err)
	}

	c := &dataConsumer{
		id:       uuid.NewString(),
		producer: dp,
		dc:       dc,
		params: media.SCTPStreamParameters{
			StreamID: streamID,
			Ordered:  dp.params.Ordered,
		},
	}
	dp.subscribe(c)
	log.Info().Str("module", "media.ortc").Str("consumer", c.id).Str("producer", dp.id).Msg("data consumer created")
	return c, nil
}

func (p *dataProducer) fanOut(msg webrtc.DataChannelMessage) {
	p.mu.RLock()
	subs := make([]*dataConsumer, 0, len(p.subscribers))
	for _, c := range p.subscribers {
		subs = append(subs, c)
	}
	p.mu.RUnlock()

	var dead []string
	for _, c := range subs {
		var err error
		if msg.IsString {
			err = c.dc.SendText(string(msg.Data))
		} else {
			err = c.dc.Send(msg.Data)
		}
		if err != nil {
			log.Debug().Err(err).Str("module", "media.ortc").Str("consumer", c.id).Msg("data forward failed, dropping subscriber")
			dead = append(dead, c.id)
		}
	}
	if len(dead) > 0 {
		p.mu.Lock()
		for _, id := range dead {
			delete(p.subscribers, id)
		}
		p.mu.Unlock()
	}
}

func (p *dataProducer) subscribe(c *dataConsumer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers[c.id] = c
}

func (p *dataProducer) unsubscribe(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.subscribers, id)
}

func (p *dataProducer) ID() string                                   { return p.id }
func (p *dataProducer) Label() string                                { return p.label }
func (p *dataProducer) Protocol() string                             { return p.protocol }
func (p *dataProducer) StreamParameters() media.SCTPStreamParameters { return p.params }

func (p *dataProducer) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed || p.transport.Closed()
}

func (p *dataProducer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.transport.engine.unregisterDataProducer(p.id)
	if err := p.dc.Close(); err != nil {
		log.Debug().Err(err).Str("module", "media.ortc").Str("producer", p.id).Msg("data channel close")
	}
}

type dataConsumer struct {
	id       string
	producer *dataProducer
	dc       *webrtc.DataChannel
	params   media.SCTPStreamParameters
}

func (c *dataConsumer) ID() string                                   { return c.id }
func (c *dataConsumer) ProducerID() string                           { return c.producer.id }
func (c *dataConsumer) Label() string                                { return c.producer.label }
func (c *dataConsumer) Protocol() string                             { return c.producer.protocol }
func (c *dataConsumer) StreamParameters() media.SCTPStreamParameters { return c.params }

func (c *dataConsumer) Close() {
	c.producer.unsubscribe(c.id)
	if err := c.dc.Close(); err != nil {
		log.Debug().Err(err).Str("module", "media.ortc").Str("consumer", c.id).Msg("data channel close")
	}
}
