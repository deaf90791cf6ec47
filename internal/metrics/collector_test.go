package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/sirupsen/logrus"

	"github.com/tristanseifert/lichtenstein-client/internal/backend"
	"github.com/tristanseifert/lichtenstein-client/internal/node"
	"github.com/tristanseifert/lichtenstein-client/internal/output"
)

func TestCollectorReportsCounters(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	state := node.New()
	state.IncBadCRC()
	worker := output.New(256, backend.NewMock(), noopSink{}, 4, log.WithField("test", true))

	c := New(state, worker, nil)

	descs := make(chan *prometheus.Desc, 16)
	c.Describe(descs)
	close(descs)
	descCount := 0
	for range descs {
		descCount++
	}
	if descCount != 8 {
		t.Fatalf("Describe() sent %d descs, want 8", descCount)
	}

	metricsCh := make(chan prometheus.Metric, 16)
	c.Collect(metricsCh)
	close(metricsCh)

	found := false
	for m := range metricsCh {
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		if pb.Counter != nil && pb.Counter.GetValue() == 1 {
			found = true
		}
	}
	if !found {
		t.Fatal("expected bad_crc_total metric with value 1")
	}
}

type noopSink struct{}

func (noopSink) Ack(frame *output.OutputFrame, nack bool, cause error) {}
