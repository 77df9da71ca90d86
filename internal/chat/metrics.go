package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates sync-engine counters. A nil *Metrics is valid and
// records nothing, so tests can pass nil.
type Metrics struct {
	listFetches     prometheus.Counter
	listCacheHits   prometheus.Counter
	refreshNoops    prometheus.Counter
	messagesSent    prometheus.Counter
	decryptFailures prometheus.Counter
	invitesSent     prometheus.Counter
	sessionOpen     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		listFetches: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerchat_chat_list_fetches_total",
			Help: "Chat list fetches that went to the ledger.",
		}),
		listCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerchat_chat_list_cache_hits_total",
			Help: "Chat list requests answered from the freshness-window cache.",
		}),
		refreshNoops: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerchat_refresh_noops_total",
			Help: "Refreshes skipped because the message count did not grow.",
		}),
		messagesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerchat_messages_sent_total",
			Help: "Messages encrypted and posted to the ledger.",
		}),
		decryptFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerchat_decrypt_failures_total",
			Help: "Message records that failed authenticated decryption.",
		}),
		invitesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "ledgerchat_invites_sent_total",
			Help: "Participants added to chats.",
		}),
		sessionOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ledgerchat_session_open",
			Help: "1 while a chat session is open, 0 otherwise.",
		}),
	}
}

func (m *Metrics) listFetch() {
	if m != nil {
		m.listFetches.Inc()
	}
}

func (m *Metrics) listCacheHit() {
	if m != nil {
		m.listCacheHits.Inc()
	}
}

func (m *Metrics) refreshNoop() {
	if m != nil {
		m.refreshNoops.Inc()
	}
}

func (m *Metrics) messageSent() {
	if m != nil {
		m.messagesSent.Inc()
	}
}

func (m *Metrics) decryptFailure() {
	if m != nil {
		m.decryptFailures.Inc()
	}
}

func (m *Metrics) inviteSent() {
	if m != nil {
		m.invitesSent.Inc()
	}
}

func (m *Metrics) setSessionOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.sessionOpen.Set(1)
	} else {
		m.sessionOpen.Set(0)
	}
}
