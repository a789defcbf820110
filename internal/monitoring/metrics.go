package monitoring

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics surfaced to the monitoring API
// and provides a ready-made /metrics handler. All methods are nil-safe so a
// disabled monitoring endpoint costs nothing at the call sites.
type Collector struct {
	gatherer prometheus.Gatherer

	State  prometheus.Gauge
	CINRdB prometheus.Gauge

	ChannelMCS  *prometheus.GaugeVec
	ChannelBLER *prometheus.GaugeVec
	ChannelBER  *prometheus.GaugeVec
}

// NewCollector registers modem metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	state, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modem_receiver_state",
		Help: "Current acquisition state: 0 searching, 1 syncing, 2 processing.",
	}), "modem_receiver_state")
	if err != nil {
		return nil, err
	}

	cinr, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modem_cinr_db",
		Help: "Mean channel quality estimate in dB over the recent window.",
	}), "modem_cinr_db")
	if err != nil {
		return nil, err
	}

	mcs := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "modem_channel_mcs",
		Help: "Last observed modulation and coding scheme index per logical channel.",
	}, []string{"channel"})
	if mcs, err = registerGaugeVec(reg, mcs, "modem_channel_mcs"); err != nil {
		return nil, err
	}

	bler := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "modem_channel_bler",
		Help: "Block error ratio per logical channel.",
	}, []string{"channel"})
	if bler, err = registerGaugeVec(reg, bler, "modem_channel_bler"); err != nil {
		return nil, err
	}

	ber := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "modem_channel_ber",
		Help: "Bit error rate per logical channel.",
	}, []string{"channel"})
	if ber, err = registerGaugeVec(reg, ber, "modem_channel_ber"); err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:    gatherer,
		State:       state,
		CINRdB:      cinr,
		ChannelMCS:  mcs,
		ChannelBLER: bler,
		ChannelBER:  ber,
	}, nil
}

// SetState publishes the receiver state as a numeric gauge.
func (c *Collector) SetState(state int) {
	if c == nil {
		return
	}
	c.State.Set(float64(state))
}

// Update publishes a counter snapshot.
func (c *Collector) Update(s Snapshot) {
	if c == nil {
		return
	}

	c.CINRdB.Set(s.CINRdB)
	c.setChannel("pdsch", s.PDSCH)
	c.setChannel("mcch", s.MCCH)
	for i, m := range s.MCH {
		c.setChannel("mch"+strconv.Itoa(i), m.ChannelStats)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) setChannel(name string, s ChannelStats) {
	c.ChannelMCS.WithLabelValues(name).Set(float64(s.MCS))
	c.ChannelBLER.WithLabelValues(name).Set(s.BLER())
	c.ChannelBER.WithLabelValues(name).Set(s.BER)
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
