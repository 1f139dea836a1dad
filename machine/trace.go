package machine

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// tracer emits port I/O and interrupt delivery records through logrus. The
// timer alone produces thousands of events per simulated second, so the
// stream is rate limited and the number of suppressed records is carried in
// the next event that gets through.
type tracer struct {
	log     logrus.FieldLogger
	limiter *rate.Limiter
	dropped uint64
}

const (
	traceEventsPerSec = 500
	traceBurst        = 100
)

// newTracer returns nil when tracing is off; every method is safe to call on
// a nil receiver.
func newTracer(log logrus.FieldLogger, enabled bool) *tracer {
	if !enabled || log == nil {
		return nil
	}
	return &tracer{
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(traceEventsPerSec), traceBurst),
	}
}

func (t *tracer) emit(event string, fields logrus.Fields) {
	if t == nil {
		return
	}
	if !t.limiter.Allow() {
		t.dropped++
		return
	}
	if t.dropped != 0 {
		fields["suppressed"] = t.dropped
		t.dropped = 0
	}
	t.log.WithFields(fields).Debug(event)
}

func (t *tracer) portRead(port uint16, val uint8) {
	t.emit("port read", logrus.Fields{"port": port, "val": val})
}

func (t *tracer) portWrite(port uint16, val uint8) {
	t.emit("port write", logrus.Fields{"port": port, "val": val})
}

func (t *tracer) irq(line uint8, vector uint8) {
	t.emit("irq delivered", logrus.Fields{"line": line, "vector": vector})
}
