package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connected - принят ли логин сервером (1) или нет (0).
	Connected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_connected",
		Help: "Whether the chat login was accepted (1) or not (0)",
	})

	// CurrentChannel - канал из последнего подтверждения JOIN.
	CurrentChannel = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_current_channel",
			Help: "Channel confirmed by the last JOIN echo (value is always 1)",
		},
		[]string{"channel"},
	)

	// LinesReceived - входящие строки протокола по типу.
	LinesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_lines_received_total",
			Help: "Inbound protocol lines by kind",
		},
		[]string{"kind"},
	)

	// LinesSent - исходящие строки по очереди (login, join, control, throttled).
	LinesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_lines_sent_total",
			Help: "Outbound protocol lines by lane",
		},
		[]string{"lane"},
	)

	// SendErrors - ошибки записи в сокет.
	SendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_send_errors_total",
		Help: "Failed socket writes",
	})

	// QueueDepth - длина очереди исходящих сообщений.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_outbound_queue_depth",
		Help: "Lines waiting in the throttled outbound queue",
	})

	// Reconnects - попытки переподключения по результату.
	Reconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_reconnects_total",
			Help: "Reconnect attempts by result",
		},
		[]string{"result"},
	)

	// MessagesRead - сообщения, переданные на озвучку, и пропущенные фильтрами.
	MessagesRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reader_messages_total",
			Help: "Chat messages handled by the reader by outcome",
		},
		[]string{"outcome"},
	)

	// FeedClients - подключенные websocket клиенты.
	FeedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feed_clients",
		Help: "Connected websocket feed clients",
	})

	// PollDuration - время одного цикла poll.
	PollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_poll_duration_seconds",
			Help:    "Time spent in one poll cycle",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 16),
		},
	)
)

func BoolValue(b bool) float64 {
	return map[bool]float64{true: 1, false: 0}[b]
}
