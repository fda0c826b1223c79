package ortc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/atriumspace/atrium/internal/media"
)

type outTrackState int32

const (
	outTrackOk outTrackState = iota
	outTrackDelete
)

// outTrack is one outgoing RTP leg to a consumer.
type outTrack struct {
	track *webrtc.TrackLocalStaticRTP
	state atomic.Int32
}

func (ot *outTrack) markDelete() { ot.state.Store(int32(outTrackDelete)) }

// producer owns the inbound RTP receiver and the relay loop that fans
// packets out to consumer tracks.
type producer struct {
	id        string
	transport *Transport
	kind      media.Kind
	rtp       media.RTPParameters
	receiver  *webrtc.RTPReceiver
	cancel    context.CancelFunc

	mu        sync.RWMutex
	closed    bool
	outTracks map[string]*outTrack
}

func (t *Transport) Produce(_ context.Context, kind media.Kind, params media.RTPParameters) (media.Producer, error) {
	if t.Closed() {
		return nil, errors.New("transport closed")
	}
	if len(params.Codecs) == 0 {
		return nil, errors.New("no codecs in rtp parameters")
	}

	receiver, err := t.engine.api.NewRTPReceiver(webrtc.NewRTPCodecType(string(kind)), t.dtls)
	if err != nil {
		return nil, fmt.Errorf("new rtp receiver: %w", err)
	}

	var enc webrtc.RTPCodingParameters
	if len(params.Encodings) > 0 {
		enc = params.Encodings[0]
	}
	if err := receiver.Receive(webrtc.RTPReceiveParameters{
		Encodings: []webrtc.RTPDecodingParameters{{RTPCodingParameters: enc}},
	}); err != nil {
		return nil, fmt.Errorf("receive: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &producer{
		id:        uuid.NewString(),
		transport: t,
		kind:      kind,
		rtp:       params,
		receiver:  receiver,
		cancel:    cancel,
		outTracks: make(map[string]*outTrack),
	}
	t.engine.registerProducer(p)

	go p.loop(ctx)
	log.Info().Str("module", "media.ortc").Str("producer", p.id).Str("kind", string(kind)).Msg("media producer created")
	return p, nil
}

func (t *Transport) Consume(_ context.Context, producerID string, caps webrtc.RTPCapabilities) (media.Consumer, error) {
	if t.Closed() {
		return nil, errors.New("transport closed")
	}
	p, ok := t.engine.producer(producerID)
	if !ok {
		return nil, errors.New("producer not found")
	}
	consumerParams := media.ConsumerParameters(p.rtp, caps)
	if len(consumerParams.Codecs) == 0 {
		return nil, errors.New("incompatible rtp capabilities")
	}

	id := uuid.NewString()
	track, err := webrtc.NewTrackLocalStaticRTP(consumerParams.Codecs[0].RTPCodecCapability, "consumer-"+id[:8], "atrium")
	if err != nil {
		return nil, fmt.Errorf("new local track: %w", err)
	}
	sender, err := t.engine.api.NewRTPSender(track, t.dtls)
	if err != nil {
		return nil, fmt.Errorf("new rtp sender: %w", err)
	}
	if err := sender.Send(sender.GetParameters()); err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	c := &consumer{
		id:       id,
		producer: p,
		sender:   sender,
		rtp:      consumerParams,
	}
	p.addOutTrack(id, &outTrack{track: track})
	log.Info().Str("module", "media.ortc").Str("consumer", c.id).Str("producer", p.id).Msg("media consumer created")
	return c, nil
}

// loop reads RTP from the source track and forwards it to every live
// out track, pruning the ones whose writes fail.
func (p *producer) loop(ctx context.Context) {
	src := p.receiver.Track()
	if src == nil {
		log.Debug().Str("module", "media.ortc").Str("producer", p.id).Msg("no source track, relay not started")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		pkt, _, err := src.ReadRTP()
		if err != nil {
			log.Debug().Err(err).Str("module", "media.ortc").Str("producer", p.id).Msg("relay read error, stopping")
			return
		}
		p.forward(pkt)
	}
}

func (p *producer) forward(pkt *rtp.Packet) {
	p.mu.RLock()
	snapshot := make(map[string]*outTrack, len(p.outTracks))
	for id, ot := range p.outTracks {
		snapshot[id] = ot
	}
	p.mu.RUnlock()

	var dirty []string
	for id, ot := range snapshot {
		if outTrackState(ot.state.Load()) == outTrackDelete {
			dirty = append(dirty, id)
			continue
		}
		if err := ot.track.WriteRTP(pkt); err != nil {
			log.Debug().Err(err).Str("module", "media.ortc").Str("consumer", id).Msg("relay write error, dropping leg")
			ot.markDelete()
			dirty = append(dirty, id)
		}
	}

	if len(dirty) > 0 {
		p.mu.Lock()
		for _, id := range dirty {
			delete(p.outTracks, id)
		}
		p.mu.Unlock()
	}
}

func (p *producer) addOutTrack(id string, ot *outTrack) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outTracks[id] = ot
}

func (p *producer) dropOutTrack(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ot, ok := p.outTracks[id]; ok {
		ot.markDelete()
		delete(p.outTracks, id)
	}
}

func (p *producer) ID() string                         { return p.id }
func (p *producer) Kind() media.Kind                   { return p.kind }
func (p *producer) RtpParameters() media.RTPParameters { return p.rtp }

func (p *producer) Closed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed || p.transport.Closed()
}

func (p *producer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, ot := range p.outTracks {
		ot.markDelete()
	}
	p.mu.Unlock()

	p.transport.engine.unregisterProducer(p.id)
	p.cancel()
	if err := p.receiver.Stop(); err != nil {
		log.Debug().Err(err).Str("module", "media.ortc").Str("producer", p.id).Msg("receiver stop")
	}
}

type consumer struct {
	id       string
	producer *producer
	sender   *webrtc.RTPSender
	rtp      media.RTPParameters
}

func (c *consumer) ID() string                         { return c.id }
func (c *consumer) ProducerID() string                 { return c.producer.id }
func (c *consumer) Kind() media.Kind                   { return c.producer.kind }
func (c *consumer) RtpParameters() media.RTPParameters { return c.rtp }

func (c *consumer) Close() {
	c.producer.dropOutTrack(c.id)
	if err := c.sender.Stop(); err != nil {
		log.Debug().Err(err).Str("module", "media.ortc").Str("consumer", c.id).Msg("sender stop")
	}
}
