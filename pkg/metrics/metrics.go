package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesAppended counts messages written to the store, labelled by
	// origin ("user" or "assistant").
	MessagesAppended = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatcore_messages_appended_total",
		Help: "Messages appended to conversation logs.",
	}, []string{"origin"})

	// SummaryUpdates counts conversation summary upserts that actually
	// advanced the last-message pointer.
	SummaryUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_summary_updates_total",
		Help: "Conversation summary advances.",
	})

	// AssistantRequests counts completion-service roundtrips by outcome
	// ("ok", "empty", "unavailable").
	AssistantRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatcore_assistant_requests_total",
		Help: "Completion service requests by outcome.",
	}, []string{"outcome"})

	// AssistantLatency observes completion roundtrip duration in seconds.
	AssistantLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatcore_assistant_latency_seconds",
		Help:    "Completion service roundtrip latency.",
		Buckets: prometheus.DefBuckets,
	})

	// TurnsDropped counts submissions rejected because a conversation queue
	// was full.
	TurnsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_turns_dropped_total",
		Help: "Submissions rejected due to a full conversation queue.",
	})
)
