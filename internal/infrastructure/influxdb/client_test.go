package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/climate-core/internal/infrastructure/config"
)

// fakeWriter records points instead of sending them.
type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	f.points = append(f.points, p)
	f.mu.Unlock()
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	f.flushes++
	f.mu.Unlock()
}

func (f *fakeWriter) lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.points))
	for i, p := range f.points {
		out[i] = strings.TrimSpace(write.PointToLineProtocol(p, time.Second))
	}
	return out
}

func newTestClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	return &Client{writeAPI: w, connected: true}, w
}

func ptr(v float64) *float64 { return &v }

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{
		Enabled: true,
		URL:     "http://127.0.0.1:1",
		Token:   "t",
		Org:     "o",
		Bucket:  "b",
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteSample(t *testing.T) {
	c, w := newTestClient()
	at := time.Unix(1700000000, 0)

	c.WriteSample(3, "North", ptr(21.5), ptr(40), true, at)

	lines := w.lines()
	if len(lines) != 1 {
		t.Fatalf("points = %d, want 1", len(lines))
	}
	for _, want := range []string{
		"unit_climate,", "unit_id=3", "unit_name=North",
		"actuator_on=true", "humidity=40", "temperature=21.5", " 1700000000",
	} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestWriteSample_MissingReadings(t *testing.T) {
	c, w := newTestClient()

	c.WriteSample(7, "", nil, nil, false, time.Unix(1700000000, 0))

	lines := w.lines()
	if len(lines) != 1 {
		t.Fatalf("points = %d, want 1", len(lines))
	}
	if strings.Contains(lines[0], "temperature") || strings.Contains(lines[0], "humidity") {
		t.Errorf("line %q carries absent readings", lines[0])
	}
	if strings.Contains(lines[0], "unit_name") {
		t.Errorf("line %q carries an empty unit_name tag", lines[0])
	}
}

func TestWriteAlert(t *testing.T) {
	c, w := newTestClient()

	c.WriteAlert(3, 45, time.Unix(1700000000, 0))

	lines := w.lines()
	if len(lines) != 1 {
		t.Fatalf("points = %d, want 1", len(lines))
	}
	if !strings.HasPrefix(lines[0], "unit_alert,unit_id=3 ") || !strings.Contains(lines[0], "temperature=45") {
		t.Errorf("line = %q", lines[0])
	}
}

func TestWrites_DroppedWhenDisconnected(t *testing.T) {
	c, w := newTestClient()
	c.connected = false

	c.WriteSample(1, "A", ptr(20), ptr(30), false, time.Now())
	c.WriteAlert(1, 50, time.Now())
	c.Flush()

	if len(w.lines()) != 0 || w.flushes != 0 {
		t.Errorf("writes after disconnect: points=%d flushes=%d", len(w.lines()), w.flushes)
	}
}

func TestClose_FlushesOnce(t *testing.T) {
	c, w := newTestClient()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}

	c.Flush()
	if w.flushes != 1 {
		t.Error("Flush() after Close reached the writer")
	}
}

func TestClose_Nil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on empty client error = %v", err)
	}
}

func TestHealthCheck_NotConnected(t *testing.T) {
	c, _ := newTestClient()
	c.connected = false

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c, _ := newTestClient()

	var got []error
	var mu sync.Mutex
	c.SetOnError(func(err error) {
		mu.Lock()
		got = append(got, err)
		mu.Unlock()
	})

	ch := make(chan error, 2)
	ch <- errors.New("write failed")
	ch <- errors.New("bucket missing")
	close(ch)
	c.handleWriteErrors(ch)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Errorf("callback invoked %d times, want 2", len(got))
	}
}
