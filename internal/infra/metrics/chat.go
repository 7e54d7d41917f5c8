package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(chatMessagesTotal, chatFailuresTotal, moderationChecksTotal, knowledgeFetchErrors)
}

var (
	chatMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Chat turns by outcome (ok/moderated/rate_limited/invalid/failed).",
		},
		[]string{"outcome"},
	)

	chatFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_failures_total",
			Help: "Failed chat turns by user-facing category.",
		},
		[]string{"category"},
	)

	moderationChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_checks_total",
			Help: "Moderation classifier calls by result (pass/flagged/error).",
		},
		[]string{"result"},
	)

	knowledgeFetchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "knowledge_fetch_errors_total",
			Help: "Knowledge snapshot sections that degraded to empty.",
		},
		[]string{"section"},
	)
)

func IncChatOutcome(outcome string) { chatMessagesTotal.WithLabelValues(norm(outcome)).Inc() }
func IncChatFailure(category string) { chatFailuresTotal.WithLabelValues(norm(category)).Inc() }
func IncModerationCheck(result string) { moderationChecksTotal.WithLabelValues(norm(result)).Inc() }
func IncKnowledgeFetchError(sec string) { knowledgeFetchErrors.WithLabelValues(norm(sec)).Inc() }
