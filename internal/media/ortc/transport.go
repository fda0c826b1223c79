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

// Transport is one ICE+DTLS+SCTP stack. The transport id is stable for
// its whole life, ICE restarts included.
type Transport struct {
	engine *Engine
	id     string
	dir    media.Direction

	gatherer *webrtc.ICEGatherer
	ice      *webrtc.ICETransport
	dtls     *webrtc.DTLSTransport
	sctp     *webrtc.SCTPTransport

	mu           sync.Mutex
	info         media.TransportInfo
	closed       bool
	connected    bool
	onIce        func(webrtc.ICETransportState)
	onDtls       func(webrtc.DTLSTransportState)
	nextStreamID uint16
}

func newTransport(ctx context.Context, e *Engine, dir media.Direction) (*Transport, error) {
	gatherer, err := e.api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: e.iceServers})
	if err != nil {
		return nil, fmt.Errorf("new ice gatherer: %w", err)
	}
	ice := e.api.NewICETransport(gatherer)
	dtls, err := e.api.NewDTLSTransport(ice, nil)
	if err != nil {
		return nil, fmt.Errorf("new dtls transport: %w", err)
	}
	sctp := e.api.NewSCTPTransport(dtls)

	iceParams, candidates, err := gatherLocal(ctx, gatherer)
	if err != nil {
		return nil, err
	}
	dtlsParams, err := dtls.GetLocalParameters()
	if err != nil {
		return nil, fmt.Errorf("dtls local parameters: %w", err)
	}

	t := &Transport{
		engine:       e,
		id:           uuid.NewString(),
		dir:          dir,
		gatherer:     gatherer,
		ice:          ice,
		dtls:         dtls,
		sctp:         sctp,
		nextStreamID: 2,
	}
	t.info = media.TransportInfo{
		ID:             t.id,
		IceParameters:  iceParams,
		IceCandidates:  candidates,
		DtlsParameters: dtlsParams,
		SctpParameters: sctp.GetCapabilities(),
	}

	ice.OnConnectionStateChange(func(s webrtc.ICETransportState) {
		t.mu.Lock()
		fn := t.onIce
		t.mu.Unlock()
		if fn != nil {
			fn(s)
		}
	})
	dtls.OnStateChange(func(s webrtc.DTLSTransportState) {
		t.mu.Lock()
		fn := t.onDtls
		t.mu.Unlock()
		if fn != nil {
			fn(s)
		}
	})

	log.Info().Str("module", "media.ortc").Str("transport", t.id).Str("dir", string(dir)).Msg("transport created")
	return t, nil
}

func gatherLocal(ctx context.Context, gatherer *webrtc.ICEGatherer) (webrtc.ICEParameters, []webrtc.ICECandidate, error) {
	done := make(chan struct{})
	gatherer.OnLocalCandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			close(done)
		}
	})
	if err := gatherer.Gather(); err != nil {
		return webrtc.ICEParameters{}, nil, fmt.Errorf("gather: %w", err)
	}
	select {
	case <-done:
	case <-ctx.Done():
		return webrtc.ICEParameters{}, nil, ctx.Err()
	}

	params, err := gatherer.GetLocalParameters()
	if err != nil {
		return webrtc.ICEParameters{}, nil, fmt.Errorf("ice local parameters: %w", err)
	}
	candidates, err := gatherer.GetLocalCandidates()
	if err != nil {
		return webrtc.ICEParameters{}, nil, fmt.Errorf("ice local candidates: %w", err)
	}
	return params, candidates, nil
}

func (t *Transport) ID() string                 { return t.id }
func (t *Transport) Direction() media.Direction { return t.dir }

func (t *Transport) Info() media.TransportInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info
}

// Connect starts the ICE/DTLS/SCTP stack with the client's DTLS
// parameters. The client drives connectivity checks against our
// gathered candidates; the server side stays in the controlled role.
func (t *Transport) Connect(_ context.Context, remoteDtls webrtc.DTLSParameters) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return errors.New("transport closed")
	}
	if t.connected {
		t.mu.Unlock()
		return errors.New("transport already connected")
	}
	t.connected = true
	t.mu.Unlock()

	role := webrtc.ICERoleControlled
	if err := t.ice.Start(nil, webrtc.ICEParameters{}, &role); err != nil {
		return fmt.Errorf("ice start: %w", err)
	}
	if err := t.dtls.Start(remoteDtls); err != nil {
		return fmt.Errorf("dtls start: %w", err)
	}
	if err := t.sctp.Start(webrtc.SCTPCapabilities{MaxMessageSize: 65536}); err != nil {
		return fmt.Errorf("sctp start: %w", err)
	}
	log.Info().Str("module", "media.ortc").Str("transport", t.id).Msg("transport connected")
	return nil
}

// RestartIce gathers fresh candidates and credentials for the same
// transport id. The previous gatherer is closed; the client reconnects
// against the new parameters.
func (t *Transport) RestartIce(ctx context.Context) (webrtc.ICEParameters, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return webrtc.ICEParameters{}, errors.New("transport closed")
	}
	t.mu.Unlock()

	gatherer, err := t.engine.api.NewICEGatherer(webrtc.ICEGatherOptions{ICEServers: t.engine.iceServers})
	if err != nil {
		return webrtc.ICEParameters{}, fmt.Errorf("new ice gatherer: %w", err)
	}
	params, candidates, err := gatherLocal(ctx, gatherer)
	if err != nil {
		return webrtc.ICEParameters{}, err
	}

	t.mu.Lock()
	old := t.gatherer
	t.gatherer = gatherer
	t.info.IceParameters = params
	t.info.IceCandidates = candidates
	t.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	log.Info().Str("module", "media.ortc").Str("transport", t.id).Msg("ICE restarted")
	return params, nil
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

func (t *Transport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	t.mu.Unlock()

	if err := t.sctp.Stop(); err != nil {
		log.Debug().Err(err).Str("module", "media.ortc").Str("transport", t.id).Msg("sctp stop")
	}
	if err := t.dtls.Stop(); err != nil {
		log.Debug().Err(err).Str("module", "media.ortc").Str("transport", t.id).Msg("dtls stop")
	}
	if err := t.ice.Stop(); err != nil {
		log.Debug().Err(err).Str("module", "media.ortc").Str("transport", t.id).Msg("ice stop")
	}
	log.Info().Str("module", "media.ortc").Str("transport", t.id).Msg("transport closed")
}

// allocStreamID hands out SCTP stream ids for server-created channels.
func (t *Transport) allocStreamID() uint16 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextStreamID
	t.nextStreamID += 2
	return id
}
