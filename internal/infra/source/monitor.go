package source

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Status represents the observed health of a source.
type Status string

const (
	StatusHealthy   Status = "healthy"   // working normally
	StatusDegraded  Status = "degraded"  // slow or failing often
	StatusThrottled Status = "throttled" // answering 429
	StatusBlocked   Status = "blocked"   // answering 403
)

// MonitorStats holds monitoring statistics for a source.
type MonitorStats struct {
	Status           Status        `json:"status"`
	AverageLatency   time.Duration `json:"average_latency"`
	ThrottleCount429 int           `json:"throttle_count_429"`
	ThrottleCount403 int           `json:"throttle_count_403"`
	Requests         int           `json:"requests"`
	Failures         int           `json:"failures"`
	RequestsLastHour int           `json:"requests_last_hour"`
	RetryAfter       time.Duration `json:"retry_after"`
	LastSuccessAt    time.Time     `json:"last_success_at"`
	LastFailureAt    time.Time     `json:"last_failure_at"`
}

// Monitor tracks latency, failures and throttling of one source.
type Monitor struct {
	mu  sync.RWMutex
	now func() time.Time

	recentLatencies  []time.Duration
	maxLatencyWindow int

	requests      int
	failures      int
	lastSuccessAt time.Time
	lastFailureAt time.Time

	status429Count     int
	status403Count     int
	throttlePatterns   []string
	lastThrottleTime   time.Time
	retryAfterDuration time.Duration

	requestTimestamps []time.Time
	windowDuration    time.Duration

	slowResponseThreshold time.Duration
	degradedThreshold     float64
}

// NewMonitor creates a monitor with default thresholds.
func NewMonitor() *Monitor {
	return &Monitor{
		now:              time.Now,
		recentLatencies:  make([]time.Duration, 0, 100),
		maxLatencyWindow: 100,
		throttlePatterns: []string{
			"rate limit exceeded",
			"too many requests",
			"daily request count exceeded",
			"quota exceeded",
		},
		windowDuration:        time.Hour,
		slowResponseThreshold: 3 * time.Second,
		degradedThreshold:     0.3, // 30% error rate
	}
}

// SetClock overrides the time source.
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// RecordSuccess records a successful request with its latency.
func (m *Monitor) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.requests++
	m.lastSuccessAt = now

	m.recentLatencies = append(m.recentLatencies, latency)
	if len(m.recentLatencies) > m.maxLatencyWindow {
		m.recentLatencies = m.recentLatencies[1:]
	}
	m.trackLocked(now)
}

// RecordFailure records a failed request.
func (m *Monitor) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.requests++
	m.failures++
	m.lastFailureAt = now
	m.trackLocked(now)
}

// RecordThrottle records a rate limiting or blocking response.
func (m *Monitor) RecordThrottle(statusCode int, retryAfter string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastThrottleTime = m.now()

	switch statusCode {
	case 429:
		m.status429Count++
		m.retryAfterDuration = parseRetryAfter(retryAfter, time.Minute)
	case 403:
		m.status403Count++
		m.retryAfterDuration = 10 * time.Minute // longer for IP block
	}
}

// DetectThrottlePattern checks if a message contains throttle patterns.
func (m *Monitor) DetectThrottlePattern(message string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lowerMsg := strings.ToLower(message)
	for _, pattern := range m.throttlePatterns {
		if strings.Contains(lowerMsg, pattern) {
			return true
		}
	}
	return false
}

// Status returns the current status of the source.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

// RetryAfter returns the remaining time before the source should be tried again.
func (m *Monitor) RetryAfter() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.retryAfterLocked()
}

// Stats returns current monitoring statistics.
func (m *Monitor) Stats() MonitorStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := m.now().Add(-time.Hour)
	lastHour := 0
	for _, t := range m.requestTimestamps {
		if t.After(cutoff) {
			lastHour++
		}
	}

	return MonitorStats{
		Status:           m.statusLocked(),
		AverageLatency:   m.averageLatencyLocked(),
		ThrottleCount429: m.status429Count,
		ThrottleCount403: m.status403Count,
		Requests:         m.requests,
		Failures:         m.failures,
		RequestsLastHour: lastHour,
		RetryAfter:       m.retryAfterLocked(),
		LastSuccessAt:    m.lastSuccessAt,
		LastFailureAt:    m.lastFailureAt,
	}
}

func (m *Monitor) statusLocked() Status {
	throttled := m.retryAfterLocked() > 0

	if m.status403Count > 0 && throttled {
		return StatusBlocked
	}
	if m.status429Count > 0 && throttled {
		return StatusThrottled
	}
	if len(m.recentLatencies) > 10 && m.averageLatencyLocked() > m.slowResponseThreshold {
		return StatusDegraded
	}
	if m.requests >= 10 && float64(m.failures)/float64(m.requests) > m.degradedThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

func (m *Monitor) retryAfterLocked() time.Duration {
	if m.retryAfterDuration <= 0 {
		return 0
	}
	remaining := m.retryAfterDuration - m.now().Sub(m.lastThrottleTime)
	if remaining > 0 {
		return remaining
	}
	return 0
}

func (m *Monitor) averageLatencyLocked() time.Duration {
	if len(m.recentLatencies) == 0 {
		return 0
	}
	var total time.Duration
	for _, lat := range m.recentLatencies {
		total += lat
	}
	return total / time.Duration(len(m.recentLatencies))
}

// trackLocked appends a request timestamp and drops those outside the window.
func (m *Monitor) trackLocked(now time.Time) {
	m.requestTimestamps = append(m.requestTimestamps, now)

	cutoff := now.Add(-m.windowDuration)
	i := 0
	for i < len(m.requestTimestamps) && !m.requestTimestamps[i].After(cutoff) {
		i++
	}
	m.requestTimestamps = m.requestTimestamps[i:]
}

// parseRetryAfter understands the delta-seconds form of Retry-After.
func parseRetryAfter(v string, def time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}
