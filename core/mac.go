package core

import (
	"math/rand/v2"
	"time"

	"github.com/signalsfoundry/wlan-hidden-sim/internal/sched"
	"github.com/signalsfoundry/wlan-hidden-sim/model"
)

// BackoffObserver is notified of every backoff draw. The Prometheus
// collector implements it.
type BackoffObserver interface {
	ObserveBackoff(slots int)
}

type macState int

const (
	macIdle macState = iota
	macBackoff
	macWaitCTS
	// macTransmitting covers the SIFS gap between CTS and Data.
	macTransmitting
	macWaitAck
)

func (s macState) String() string {
	switch s {
	case macIdle:
		return "idle"
	case macBackoff:
		return "backoff"
	case macWaitCTS:
		return "wait_cts"
	case macTransmitting:
		return "transmitting"
	case macWaitAck:
		return "wait_ack"
	default:
		return "unknown"
	}
}

// MacStats counts MAC-level activity of one device.
type MacStats struct {
	DataAttempts uint64
	RTSAttempts  uint64
	CTSTimeouts  uint64
	AckTimeouts  uint64
	Retries      uint64
	QueueDrops   uint64
	// Responses counts CTS, Ack and BlockAck frames sent by the AP.
	Responses uint64
	// Duplicates counts retransmitted MPDUs the AP had already delivered.
	Duplicates uint64
}

// macEnv holds what every MAC of one simulation shares.
type macEnv struct {
	queue   *sched.EventQueue
	channel *Channel
	timing  PhyTiming
	cfg     MacConfig
	payload int
	// maxDelay is the worst-case one-way propagation delay.
	maxDelay time.Duration
	flows    *FlowMonitor
	backoff  BackoffObserver
	fail     func(error)
}

type dupKey struct {
	source model.NodeID
	seq    uint32
}

// Mac is the CSMA/CA contention state machine of one device. Stations
// contend for the medium to send queued packets to the AP; the AP answers
// RTS with CTS and Data with Ack or BlockAck. All state is mutated only from
// this device's own event handlers.
type Mac struct {
	env  *macEnv
	id   model.NodeID
	ap   model.NodeID
	isAP bool
	rng  *rand.Rand

	txq     []model.Packet
	state   macState
	cw      int
	retries int
	// slots is the remaining backoff counter, or -1 when none is drawn.
	slots int

	busyUntil time.Duration
	navUntil  time.Duration
	txUntil   time.Duration

	countStart    time.Duration
	access        sched.EventID
	accessPending bool
	timeout       sched.EventID

	ppdu     []model.Packet
	lastData *model.Frame

	// AP side.
	seen    map[dupKey]struct{}
	deliver func(model.Packet)

	stats MacStats
}

func newMac(env *macEnv, id, ap model.NodeID, isAP bool, rng *rand.Rand) *Mac {
	m := &Mac{
		env:   env,
		id:    id,
		ap:    ap,
		isAP:  isAP,
		rng:   rng,
		cw:    env.cfg.CwMin,
		slots: -1,
	}
	if isAP {
		m.seen = make(map[dupKey]struct{})
	}
	return m
}

// Stats returns a snapshot of the MAC counters.
func (m *Mac) Stats() MacStats { return m.stats }

// QueueLen returns the number of packets waiting, including those of the
// exchange in progress.
func (m *Mac) QueueLen() int { return len(m.txq) }

// Enqueue admits a packet into the drop-tail transmit queue.
func (m *Mac) Enqueue(p model.Packet) {
	if len(m.txq) >= m.env.cfg.QueueSize {
		m.stats.QueueDrops++
		m.env.flows.PacketQueueDropped(p)
		return
	}
	m.txq = append(m.txq, p)
	m.env.flows.PacketSent(p)
	m.requestAccess()
}

// MediumBusy implements MediumListener.
func (m *Mac) MediumBusy(until time.Duration) {
	if until > m.busyUntil {
		m.busyUntil = until
		m.mediumChanged()
	}
}

// FrameReceived implements MediumListener.
func (m *Mac) FrameReceived(f *model.Frame) {
	if f.Dest != m.id {
		// Virtual carrier sense.
		if end := m.env.queue.Now() + f.NAV; f.NAV > 0 && end > m.navUntil {
			m.navUntil = end
			m.mediumChanged()
		}
		return
	}

	switch f.Kind {
	case model.FrameRTS:
		if m.isAP {
			m.respondCTS(f)
		}
	case model.FrameData:
		if m.isAP {
			m.acceptData(f)
		}
	case model.FrameCTS:
		if m.state == macWaitCTS && f.Source == m.ap {
			m.onCTS()
		}
	case model.FrameAck, model.FrameBlockAck:
		if m.state == macWaitAck && f.Source == m.ap {
			m.onAck()
		}
	}
}

func (m *Mac) requestAccess() {
	if m.isAP || m.state != macIdle || len(m.txq) == 0 {
		return
	}
	if m.slots < 0 {
		m.slots = m.rng.IntN(m.cw + 1)
		if m.env.backoff != nil {
			m.env.backoff.ObserveBackoff(m.slots)
		}
	}
	m.state = macBackoff
	m.scheduleAccess()
}

// scheduleAccess (re)computes when the backoff expires: DIFS after the
// medium goes idle, then one slot per remaining counter value.
func (m *Mac) scheduleAccess() {
	if m.accessPending {
		m.env.queue.Cancel(m.access)
	}
	idle := max(m.env.queue.Now(), m.busyUntil, m.navUntil)
	m.countStart = idle + DIFS
	at := m.countStart + time.Duration(m.slots)*SlotTime
	m.access = m.env.queue.MustSchedule(at, m.accessGranted)
	m.accessPending = true
}

// mediumChanged freezes the backoff counter at the slots consumed so far
// and defers the rest until the medium is idle again.
func (m *Mac) mediumChanged() {
	if m.state != macBackoff || !m.accessPending {
		return
	}
	now := m.env.queue.Now()
	if now > m.countStart {
		elapsed := int((now - m.countStart) / SlotTime)
		m.slots = max(m.slots-elapsed, 0)
	}
	m.scheduleAccess()
}

func (m *Mac) accessGranted() {
	m.accessPending = false
	if now := m.env.queue.Now(); now < m.busyUntil || now < m.navUntil {
		m.scheduleAccess()
		return
	}
	m.slots = -1

	n := min(len(m.txq), AmpduLimit(m.env.cfg.NMpdus, m.env.payload))
	m.ppdu = append(m.ppdu[:0], m.txq[:n]...)
	if m.env.cfg.EnableRts {
		m.sendRTS()
		return
	}
	m.sendData()
}

func (m *Mac) dataDuration() time.Duration {
	return m.env.timing.DataDuration(PsduBytes(len(m.ppdu), m.env.payload))
}

func (m *Mac) responseDuration() time.Duration {
	if len(m.ppdu) > 1 {
		return m.env.timing.ControlDuration(BlockAckBytes)
	}
	return m.env.timing.ControlDuration(AckBytes)
}

// responseTimeout is how long after the end of a frame the sender waits
// for the response to start arriving and complete.
func (m *Mac) responseTimeout(resp time.Duration) time.Duration {
	return SIFS + SlotTime + resp + 2*m.env.maxDelay
}

func (m *Mac) sendRTS() {
	t := m.env.timing
	cts := t.ControlDuration(CTSBytes)
	f := &model.Frame{
		Source:    m.id,
		Dest:      m.ap,
		Kind:      model.FrameRTS,
		SizeBytes: RTSBytes,
		Duration:  t.ControlDuration(RTSBytes),
		NAV:       SIFS + cts + SIFS + m.dataDuration() + SIFS + m.responseDuration(),
	}
	m.lastData = nil
	m.stats.RTSAttempts++
	m.state = macWaitCTS
	m.transmit(f)
	m.armTimeout(f.End()+m.responseTimeout(cts), model.FrameRTS)
}

func (m *Mac) sendData() {
	resp := m.responseDuration()
	n := len(m.ppdu)
	f := &model.Frame{
		Source:    m.id,
		Dest:      m.ap,
		Kind:      model.FrameData,
		SizeBytes: PsduBytes(n, m.env.payload),
		Duration:  m.dataDuration(),
		NAV:       SIFS + resp,
		Packets:   append([]model.Packet(nil), m.ppdu...),
	}
	m.lastData = f
	m.stats.DataAttempts++
	m.state = macWaitAck
	m.transmit(f)
	m.armTimeout(f.End()+m.responseTimeout(resp), model.FrameData)
}

func (m *Mac) armTimeout(at time.Duration, kind model.FrameKind) {
	m.timeout = m.env.queue.MustSchedule(at, func() { m.onTimeout(kind) })
}

func (m *Mac) transmit(f *model.Frame) {
	now := m.env.queue.Now()
	f.Start = now
	m.txUntil = max(m.txUntil, f.End())
	m.busyUntil = max(m.busyUntil, f.End())
	if err := m.env.channel.Transmit(f); err != nil && m.env.fail != nil {
		m.env.fail(err)
	}
}

func (m *Mac) onCTS() {
	m.env.queue.Cancel(m.timeout)
	m.state = macTransmitting
	m.env.queue.MustSchedule(m.env.queue.Now()+SIFS, m.sendData)
}

func (m *Mac) onAck() {
	m.env.queue.Cancel(m.timeout)
	m.txq = m.txq[len(m.ppdu):]
	m.finishExchange()
	m.cw = m.env.cfg.CwMin
	m.retries = 0
	m.requestAccess()
}

func (m *Mac) onTimeout(kind model.FrameKind) {
	if kind == model.FrameRTS {
		m.stats.CTSTimeouts++
	} else {
		m.stats.AckTimeouts++
	}
	collided := m.lastData != nil && m.lastData.Collided

	m.retries++
	if m.retries > m.env.cfg.RetryLimit {
		reason := model.DropRetryExhausted
		if collided {
			reason = model.DropCollision
		}
		for _, p := range m.ppdu {
			m.env.flows.PacketDropped(p, reason)
		}
		m.txq = m.txq[len(m.ppdu):]
		m.cw = m.env.cfg.CwMin
		m.retries = 0
	} else {
		m.stats.Retries++
		m.cw = min(2*m.cw+1, m.env.cfg.CwMax)
	}
	m.finishExchange()
	m.requestAccess()
}

func (m *Mac) finishExchange() {
	m.ppdu = m.ppdu[:0]
	m.lastData = nil
	m.state = macIdle
	m.slots = -1
}

func (m *Mac) respondCTS(rts *model.Frame) {
	now := m.env.queue.Now()
	if m.navUntil > now {
		return
	}
	cts := m.env.timing.ControlDuration(CTSBytes)
	nav := max(rts.NAV-SIFS-cts, 0)
	m.scheduleResponse(&model.Frame{
		Source:    m.id,
		Dest:      rts.Source,
		Kind:      model.FrameCTS,
		SizeBytes: CTSBytes,
		Duration:  cts,
		NAV:       nav,
	})
}

func (m *Mac) acceptData(f *model.Frame) {
	for _, p := range f.Packets {
		key := dupKey{source: p.Source, seq: p.Seq}
		if _, dup := m.seen[key]; dup {
			m.stats.Duplicates++
			continue
		}
		m.seen[key] = struct{}{}
		if m.deliver != nil {
			m.deliver(p)
		}
	}

	kind, size := model.FrameAck, AckBytes
	if len(f.Packets) > 1 {
		kind, size = model.FrameBlockAck, BlockAckBytes
	}
	m.scheduleResponse(&model.Frame{
		Source:    m.id,
		Dest:      f.Source,
		Kind:      kind,
		SizeBytes: size,
		Duration:  m.env.timing.ControlDuration(size),
	})
}

func (m *Mac) scheduleResponse(f *model.Frame) {
	m.env.queue.MustSchedule(m.env.queue.Now()+SIFS, func() {
		// Half duplex: a response that would overlap our own transmission
		// is skipped and the peer times out.
		if m.txUntil > m.env.queue.Now() {
			return
		}
		m.stats.Responses++
		m.transmit(f)
	})
}
