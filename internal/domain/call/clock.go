package call

import "time"

// Clock abstracts time so entity timestamps are testable.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a fixed, manually advanced clock for tests.
type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time {
	return m.CurrentTime
}

func (m *MockClock) Advance(d time.Duration) {
	m.CurrentTime = m.CurrentTime.Add(d)
}

var clock Clock = RealClock{}

// SetClock allows tests to inject a mock clock.
func SetClock(c Clock) {
	clock = c
}

// ResetClock restores the real clock.
func ResetClock() {
	clock = RealClock{}
}
