/*
NAME
  pipeline.go

DESCRIPTION
  pipeline.go wires the Stream Demuxer, Frame Decoder, Visual Odometry,
  Obstacle Analyzer, Balance/Tau estimators and Autopilot Controller into
  the two-thread concurrency model the specification requires: a receiver
  goroutine that owns the stream connection and pushes into a single-slot,
  overwrite-on-full mailbox, and a consumer goroutine that drains it without
  blocking the receiver.

AUTHORS
  Vision Core Team

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package pipeline assembles the vision navigation core's components into
// a running two-thread pipeline: a receiver that demuxes and decodes, and
// a consumer that runs the VO/obstacle/balance/autopilot analysis chain
// against the latest available frame.
package pipeline

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ausocean/utils/logging"
	"github.com/pkg/errors"

	"github.com/corvidflight/visionpilot/autopilot"
	"github.com/corvidflight/visionpilot/codec"
	"github.com/corvidflight/visionpilot/nav"
	"github.com/corvidflight/visionpilot/obstacle"
	"github.com/corvidflight/visionpilot/pipeline/config"
	"github.com/corvidflight/visionpilot/stream"
	"github.com/corvidflight/visionpilot/vo"
)

// mailbox is the single-slot, overwrite-on-full handoff between the
// receiver and consumer goroutines: a mutex-guarded swap of a single frame
// slot rather than an unbounded queue.
type mailbox struct {
	mu    sync.Mutex
	frame *codec.Frame
}

func (m *mailbox) put(f codec.Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frame = &f
}

// take returns the latest frame and clears the slot, or ok=false if none is
// available.
func (m *mailbox) take() (codec.Frame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame == nil {
		return codec.Frame{}, false
	}
	f := *m.frame
	m.frame = nil
	return f, true
}

// VOComponent is the capability the pipeline needs from the VO package: a
// decoded frame goes in, a per-frame Update comes out. The concrete,
// gocv-backed *vo.Detector satisfies this signature directly (see
// vo/detect_withcv.go); tests may substitute a stub.
type VOComponent interface {
	Process(f codec.Frame) vo.Update
}

// ObstacleComponent turns a decoded frame into an ObstacleResult, plus the
// flow magnitude map the balance/tau estimators need. Kept as an interface
// so the pipeline itself never imports gocv directly; obstacle.DenseComponent
// and obstacle.SparseComponent (both withcv-tagged) wrap *DenseAnalyzer and
// *SparseAnalyzer to satisfy it.
type ObstacleComponent interface {
	Analyze(f codec.Frame) (obstacle.ObstacleResult, [][]float64, error)
}

// Pipeline owns the full analysis chain and the receiver/consumer threads.
type Pipeline struct {
	cfg config.Config
	log logging.Logger

	source  stream.Source
	demuxer *stream.Demuxer
	decoder *codec.Decoder

	box mailbox

	vo         VOComponent
	obstacle   ObstacleComponent
	balancer   *nav.Balancer
	tau        *nav.TauEstimator
	controller *autopilot.Controller

	running int32 // atomic: 1 while receiver/consumer loops should keep going

	wg sync.WaitGroup

	lastCommand autopilot.Command
	cmdMu       sync.Mutex
}

// New returns a Pipeline wired from cfg. vo and obs are supplied by the
// caller (main/cmd layer) since their concrete implementations depend on
// the withcv build tag; New itself has no gocv dependency. Either may be
// nil, in which case that stage of analysis is skipped for every frame.
func New(cfg config.Config, src stream.Source, dec *codec.Decoder, vo VOComponent, obs ObstacleComponent, log logging.Logger) *Pipeline {
	cfg.Validate()
	return &Pipeline{
		cfg:        cfg,
		log:        log,
		source:     src,
		demuxer:    stream.New(cfg.MaxUnitSize),
		decoder:    dec,
		vo:         vo,
		obstacle:   obs,
		balancer:   nav.NewBalancer(cfg),
		tau:        nav.NewTauEstimator(cfg),
		controller: autopilot.NewController(cfg, log),
	}
}

// Start launches the receiver and consumer goroutines. Start returns
// immediately; callers observe termination via Wait.
func (p *Pipeline) Start() {
	atomic.StoreInt32(&p.running, 1)
	p.wg.Add(2)
	go p.receiveLoop()
	go p.consumeLoop()
}

// Stop signals both loops to terminate. Loops observe this within one
// frame interval, per the specification's cancellation contract. Stopping
// the pipeline does not clear a sticky EMERGENCY autopilot state; call
// ResetEmergency explicitly to do that.
func (p *Pipeline) Stop() {
	atomic.StoreInt32(&p.running, 0)
}

// Wait blocks until both the receiver and consumer loops have exited.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) isRunning() bool {
	return atomic.LoadInt32(&p.running) == 1
}

// receiveLoop owns the stream connection and runs Demuxer + Decoder,
// pushing each decoded frame into the mailbox. A disconnect or read error
// is a transport error: it stops the pipeline and transitions the
// autopilot to DISABLED with an implicit stop, per the error taxonomy.
func (p *Pipeline) receiveLoop() {
	defer p.wg.Done()
	for p.isRunning() {
		msg, err := p.source.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.log.Info("stream source closed normally")
			} else {
				p.log.Error("transport error", "error", err.Error())
			}
			p.controller.Disable()
			p.Stop()
			return
		}

		units := p.demuxer.Demux(msg)
		for _, u := range units {
			frames := p.decoder.Decode(codec.CompressedUnit{Data: u.Data})
			for _, f := range frames {
				p.box.put(f)
			}
		}
	}
}

// consumeLoop reads the mailbox and runs the fixed-sequence analysis chain
// (VO, Obstacle, Balance/Tau, Autopilot) against the latest frame, without
// blocking the receiver. The mailbox may drop intermediate frames under a
// slow consumer without correctness loss: VO depends on the previous frame
// it saw, not on wall-clock adjacency.
func (p *Pipeline) consumeLoop() {
	defer p.wg.Done()
	for p.isRunning() {
		f, ok := p.box.take()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		p.processFrame(f)
	}
}

// tauSweepInterval is how often (in frames) the tau estimator's stale-region
// GC runs, per the specification's "sweep on a schedule, not on every
// insert" re-architecture note.
const tauSweepInterval = 30

// processFrame runs the fixed per-frame sequence: VO, Obstacle, Balance/Tau,
// Autopilot. No reordering is permitted, since pose integration depends on
// consecutive frames.
func (p *Pipeline) processFrame(f codec.Frame) {
	if p.vo != nil {
		upd := p.vo.Process(f)
		p.log.Debug("vo update", "state", upd.State.String(), "inliers", upd.Inliers)
	}

	var obsResult obstacle.ObstacleResult
	var magnitude [][]float64
	if p.obstacle != nil {
		r, mag, err := p.obstacle.Analyze(f)
		if err != nil {
			p.log.Warning("obstacle analysis error", "error", err.Error())
		} else {
			obsResult, magnitude = r, mag
		}
	}

	balance := p.balancer.Analyze(magnitude)

	avgFlow := meanMagnitude(magnitude)

	// Each grid zone is tracked as its own tau region: the zone's average
	// flow magnitude stands in for Lee's "apparent size" (it grows as an
	// obstacle closes in the same way angular size does), keyed by the
	// zone's row-column position so history survives across frames as long
	// as the grid geometry is stable.
	danger := obstacle.NormalizeDangerLevel(obsResult.RawDangerLevel)
	for r, row := range obsResult.Zones {
		for c, z := range row {
			regionID := fmt.Sprintf("%d-%d", r, c)
			tr, ok := p.tau.Update(regionID, z.AvgMagnitude, f.Timestamp)
			if !ok {
				continue
			}
			if rank := tauDangerRank(tr.Level); rank > danger {
				danger = rank
			}
		}
	}
	if f.Index%tauSweepInterval == 0 {
		p.tau.Sweep()
	}

	vr := autopilot.VisionResult{
		Balance: &balance,
		Flow:    avgFlow,
		Danger:  danger,
		Safe:    obsResult.Safe,
	}

	cmd, emitted := p.controller.Synthesize(vr, now())
	if emitted {
		p.cmdMu.Lock()
		p.lastCommand = cmd
		p.cmdMu.Unlock()
	}
}

// tauDangerRank maps a tau danger classification onto the same 0..3 scale
// obstacle.NormalizeDangerLevel produces, so the two can be combined with a
// simple max.
func tauDangerRank(l nav.DangerLevel) int {
	switch l {
	case nav.Danger:
		return 3
	case nav.Warning:
		return 2
	case nav.Caution:
		return 1
	default:
		return 0
	}
}

func meanMagnitude(m [][]float64) float64 {
	var sum float64
	var n int
	for _, row := range m {
		for _, v := range row {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// LastCommand returns the most recently emitted autopilot command, for the
// consumer-side (HTTP/viewer) query interface.
func (p *Pipeline) LastCommand() autopilot.Command {
	p.cmdMu.Lock()
	defer p.cmdMu.Unlock()
	return p.lastCommand
}

// Enable transitions the autopilot to ENABLED.
func (p *Pipeline) Enable() { p.controller.Enable() }

// Disable transitions the autopilot to DISABLED. It has no effect while the
// autopilot is in EMERGENCY.
func (p *Pipeline) Disable() { p.controller.Disable() }

// ResetEmergency explicitly clears a sticky EMERGENCY state.
func (p *Pipeline) ResetEmergency() { p.controller.ResetEmergency() }

// Confirm marks the current tick confirmed, for deployments running with
// RequireConfirmation.
func (p *Pipeline) Confirm() { p.controller.Confirm() }

var now = func() time.Time { return time.Now() }
