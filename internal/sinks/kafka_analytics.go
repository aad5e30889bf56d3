package sinks

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lusotown-monitoring/internal/metrics"
	"lusotown-monitoring/pkg/types"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// KafkaAnalyticsSink publica eventos de analytics num tópico Kafka através
// de um producer assíncrono. TrackEvent nunca bloqueia: com o buffer do
// producer cheio o evento é descartado e contabilizado.
type KafkaAnalyticsSink struct {
	config   types.AnalyticsSinkConfig
	logger   *logrus.Logger
	producer sarama.AsyncProducer

	isRunning bool
	mutex     sync.Mutex
	wg        sync.WaitGroup

	droppedCount int64
}

// analyticsPayload formato do evento publicado no tópico
type analyticsPayload struct {
	Event      string                 `json:"event"`
	Properties map[string]interface{} `json:"properties"`
	Timestamp  time.Time              `json:"timestamp"`
	Source     string                 `json:"source"`
}

// NewKafkaAnalyticsSink cria o sink conectando ao cluster configurado
func NewKafkaAnalyticsSink(config types.AnalyticsSinkConfig, logger *logrus.Logger) (*KafkaAnalyticsSink, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("analytics sink: no brokers configured")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("analytics sink: no topic configured")
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = false
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = sarama.RequiredAcks(config.RequiredAcks)

	switch strings.ToLower(config.Compression) {
	case "gzip":
		saramaConfig.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		saramaConfig.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		saramaConfig.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		saramaConfig.Producer.Compression = sarama.CompressionZSTD
	default:
		saramaConfig.Producer.Compression = sarama.CompressionNone
	}

	if config.BatchSize > 0 {
		saramaConfig.Producer.Flush.Messages = config.BatchSize
	}
	if config.BatchTimeout != "" {
		if timeout, err := time.ParseDuration(config.BatchTimeout); err == nil {
			saramaConfig.Producer.Flush.Frequency = timeout
		}
	}
	if config.RetryMax > 0 {
		saramaConfig.Producer.Retry.Max = config.RetryMax
	}
	if config.Timeout != "" {
		if timeout, err := time.ParseDuration(config.Timeout); err == nil {
			saramaConfig.Net.DialTimeout = timeout
			saramaConfig.Net.ReadTimeout = timeout
			saramaConfig.Net.WriteTimeout = timeout
		}
	}

	producer, err := sarama.NewAsyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("analytics sink: failed to create producer: %w", err)
	}

	return newKafkaAnalyticsSink(config, logger, producer), nil
}

// newKafkaAnalyticsSink monta o sink sobre um producer já construído
// (injetável em testes via sarama/mocks)
func newKafkaAnalyticsSink(config types.AnalyticsSinkConfig, logger *logrus.Logger, producer sarama.AsyncProducer) *KafkaAnalyticsSink {
	return &KafkaAnalyticsSink{
		config:   config,
		logger:   logger,
		producer: producer,
	}
}

// Start inicia o drain de erros do producer
func (ks *KafkaAnalyticsSink) Start() {
	ks.mutex.Lock()
	defer ks.mutex.Unlock()
	if ks.isRunning {
		return
	}
	ks.isRunning = true

	ks.wg.Add(1)
	go func() {
		defer ks.wg.Done()
		// AsyncClose fecha Errors() só depois de entregar os resultados
		// pendentes; o drain lê até o canal fechar
		for err := range ks.producer.Errors() {
			ks.logger.WithError(err.Err).Debug("Analytics event delivery failed")
			metrics.RecordSinkError("analytics_sink", "produce_failed")
		}
	}()

	ks.logger.WithFields(logrus.Fields{
		"brokers": ks.config.Brokers,
		"topic":   ks.config.Topic,
	}).Info("Kafka analytics sink started")
}

// Stop fecha o producer e encerra o drain. Idempotente.
func (ks *KafkaAnalyticsSink) Stop() {
	ks.mutex.Lock()
	if !ks.isRunning {
		ks.mutex.Unlock()
		return
	}
	ks.isRunning = false
	ks.mutex.Unlock()

	ks.producer.AsyncClose()
	ks.wg.Wait()
}

// TrackEvent publica um evento de analytics. Nunca bloqueia e nunca retorna
// erro: falha de serialização ou buffer cheio descartam o evento.
func (ks *KafkaAnalyticsSink) TrackEvent(name string, props types.Context) {
	if name == "" {
		return
	}

	payload := analyticsPayload{
		Event:      name,
		Properties: props.Flatten(),
		Timestamp:  time.Now(),
		Source:     "lusotown-monitoring",
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		ks.logger.WithError(err).Debug("Failed to encode analytics event")
		metrics.RecordSinkError("analytics_sink", "encode_failed")
		return
	}

	message := &sarama.ProducerMessage{
		Topic: ks.config.Topic,
		Key:   sarama.StringEncoder(name),
		Value: sarama.ByteEncoder(encoded),
	}

	select {
	case ks.producer.Input() <- message:
		metrics.AnalyticsEventsTotal.WithLabelValues(name).Inc()
	default:
		atomic.AddInt64(&ks.droppedCount, 1)
		ks.logger.WithField("event", name).Debug("Analytics producer buffer full, dropping event")
		metrics.RecordSinkError("analytics_sink", "buffer_full")
	}
}

// Dropped retorna o total de eventos descartados por buffer cheio
func (ks *KafkaAnalyticsSink) Dropped() int64 {
	return atomic.LoadInt64(&ks.droppedCount)
}
