package analyzer

import "math"

// ring is a fixed-size circular buffer of float64 values
type ring struct {
	data  []float64
	front int
	size  int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{data: make([]float64, capacity)}
}

// push appends v and returns the evicted value, if any
func (r *ring) push(v float64) (evicted float64, full bool) {
	if r.size == len(r.data) {
		evicted = r.data[r.front]
		r.data[r.front] = v
		r.front = (r.front + 1) % len(r.data)
		return evicted, true
	}
	r.data[(r.front+r.size)%len(r.data)] = v
	r.size++
	return 0, false
}

// back returns the value pushed i steps ago (0 = newest)
func (r *ring) back(i int) float64 {
	return r.data[(r.front+r.size-1-i)%len(r.data)]
}

func (r *ring) len() int { return r.size }

func (r *ring) full() bool { return r.size == len(r.data) }

// rollingMean is a trailing mean over a fixed window with O(1) updates.
// The mean is NaN until the window fills and while it holds a NaN.
type rollingMean struct {
	buf     *ring
	sum     float64
	nans    int
	nonzero int
}

func newRollingMean(window int) *rollingMean {
	return &rollingMean{buf: newRing(window)}
}

func (m *rollingMean) push(v float64) {
	if old, evicted := m.buf.push(v); evicted {
		m.remove(old)
	}
	m.add(v)
}

func (m *rollingMean) add(v float64) {
	switch {
	case math.IsNaN(v):
		m.nans++
	case v != 0:
		m.nonzero++
		m.sum += v
	}
}

func (m *rollingMean) remove(v float64) {
	switch {
	case math.IsNaN(v):
		m.nans--
	case v != 0:
		m.nonzero--
		m.sum -= v
	}
	// running sums drift; an all-zero window must read exactly zero
	if m.nonzero == 0 {
		m.sum = 0
	}
}

func (m *rollingMean) value() float64 {
	if !m.buf.full() || m.nans > 0 {
		return math.NaN()
	}
	return m.sum / float64(m.buf.len())
}

// rsiState feeds closes one at a time and yields the simple-average RSI
type rsiState struct {
	prev    float64
	started bool
	gains   *rollingMean
	losses  *rollingMean
}

func newRSIState(period int) *rsiState {
	return &rsiState{
		gains:  newRollingMean(period),
		losses: newRollingMean(period),
	}
}

func (s *rsiState) next(close float64) float64 {
	if !s.started {
		s.prev = close
		s.started = true
		return math.NaN()
	}

	change := close - s.prev
	s.prev = close

	gain, loss := math.NaN(), math.NaN()
	if !math.IsNaN(change) {
		gain = math.Max(change, 0)
		loss = math.Max(-change, 0)
	}
	s.gains.push(gain)
	s.losses.push(loss)

	avgGain := s.gains.value()
	avgLoss := s.losses.value()
	if math.IsNaN(avgGain) || math.IsNaN(avgLoss) {
		return math.NaN()
	}
	return rsiFromAverages(avgGain, avgLoss)
}

// rsiFromAverages saturates at 100 when there were no losses in the window
func rsiFromAverages(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// lagState yields close[t] - close[t-period]
type lagState struct {
	period int
	buf    *ring
}

func newLagState(period int) *lagState {
	return &lagState{period: period, buf: newRing(period + 1)}
}

func (s *lagState) next(close float64) float64 {
	s.buf.push(close)
	if s.buf.len() <= s.period {
		return math.NaN()
	}
	return close - s.buf.back(s.period)
}
