package pushworker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/mq"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/utils"
)

const (
	inputChanSize     = 256              // inputChan 缓冲大小
	sendBatchSize     = 128              // 每次批量发送的消息条数上限
	kafkaBatchTimeout = 10 * time.Second // Kafka 批量发送超时时间
)

const (
	envelopeKindTransaction = "transaction"
	envelopeKindStats       = "stats"
)

// Envelope 推送消息信封
type Envelope struct {
	Kind   string `json:"kind"`
	Key    string `json:"key,omitempty"` // 交易事件为签名，用于分区
	Data   any    `json:"data"`
	SentAt int64  `json:"sent_at"` // Unix 毫秒
}

// KafkaPushWorker 将交易事件与统计快照以 JSON 信封推送到单个 topic。
// 下游消费不影响本地仪表盘，队列打满时丢弃并限频告警。
type KafkaPushWorker struct {
	producer   *kafka.Producer
	inputChan  chan *Envelope
	ctx        context.Context
	cancel     context.CancelFunc
	topic      string
	partitions int

	isPaused        atomic.Bool
	lastSendLogTime atomic.Int64
}

func NewKafkaPushWorker(config *mq.KafkaProducerConf) (*KafkaPushWorker, error) {
	if len(config.Topics) != 1 {
		return nil, fmt.Errorf("kafka config must have exactly 1 topic, got %d", len(config.Topics))
	}

	producer, err := mq.NewKafkaProducer(config)
	if err != nil {
		logger.Errorf("[KafkaPushWorker] failed to create producer for topic %v: %v", config.Topics, err)
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	worker := &KafkaPushWorker{
		producer:   producer,
		inputChan:  make(chan *Envelope, inputChanSize),
		ctx:        ctx,
		cancel:     cancel,
		topic:      config.Topics[0].Topic,
		partitions: config.Topics[0].Partitions,
	}
	worker.isPaused.Store(true)
	return worker, nil
}

// Start 启动处理循环
func (w *KafkaPushWorker) Start() {
	w.loop()
}

// Stop 停止 worker
func (w *KafkaPushWorker) Stop() {
	w.isPaused.Store(true)
	w.cancel()
	w.producer.Close()
}

// Resume 恢复
func (w *KafkaPushWorker) Resume() {
	w.isPaused.Store(false)
}

// Pause 暂停
func (w *KafkaPushWorker) Pause() {
	w.isPaused.Store(true)
}

// AddTransaction 入队一条交易事件
func (w *KafkaPushWorker) AddTransaction(ev types.TransactionEvent) {
	w.add(&Envelope{
		Kind:   envelopeKindTransaction,
		Key:    ev.Signature,
		Data:   ev,
		SentAt: time.Now().UnixMilli(),
	})
}

// AddStats 入队一条统计快照
func (w *KafkaPushWorker) AddStats(snap types.StatsSnapshot) {
	w.add(&Envelope{
		Kind:   envelopeKindStats,
		Data:   snap,
		SentAt: time.Now().UnixMilli(),
	})
}

func (w *KafkaPushWorker) add(env *Envelope) {
	if w.isPaused.Load() {
		return
	}

	select {
	case w.inputChan <- env:
	default:
		if utils.ThrottleLog(&w.lastSendLogTime, 3*time.Second) {
			logger.Warnf("[KafkaPushWorker] inputChan full (%d), dropping %s message", len(w.inputChan), env.Kind)
		}
	}
}

func (w *KafkaPushWorker) loop() {
	batch := make([]*Envelope, 0, sendBatchSize)
	for {
		select {
		case <-w.ctx.Done():
			return

		case env := <-w.inputChan:
			batch = append(batch, env)
			batch = w.collectBatch(batch)

			if !w.isPaused.Load() {
				w.sendBatch(batch)
			}
			utils.ClearSlice(&batch) // 置空引用，底层数组跨批复用
		}
	}
}

// collectBatch 非阻塞地收集积压消息
func (w *KafkaPushWorker) collectBatch(batch []*Envelope) []*Envelope {
	for len(batch) < sendBatchSize {
		select {
		case env := <-w.inputChan:
			batch = append(batch, env)
		default:
			return batch
		}
	}
	return batch
}

func (w *KafkaPushWorker) sendBatch(batch []*Envelope) {
	messages := make([]*kafka.Message, 0, len(batch))
	for _, env := range batch {
		if msg := w.toKafkaMessage(env); msg != nil {
			messages = append(messages, msg)
		}
	}

	results := mq.SendKafkaMessagesBatch(w.ctx, w.producer, messages, kafkaBatchTimeout)

	failed := 0
	for _, item := range results {
		if !item.Success {
			failed++
		}
	}
	if failed > 0 && utils.ThrottleLog(&w.lastSendLogTime, 3*time.Second) {
		logger.Warnf("[KafkaPushWorker] batch send: %d/%d messages failed", failed, len(results))
	}
}

func (w *KafkaPushWorker) toKafkaMessage(env *Envelope) *kafka.Message {
	data, err := json.Marshal(env)
	if err != nil {
		logger.Warnf("[KafkaPushWorker] marshal %s envelope failed: %v", env.Kind, err)
		return nil
	}

	partition := kafka.PartitionAny
	if w.partitions > 1 && env.Key != "" {
		partition = int32(xxhash.Sum64String(env.Key) % uint64(w.partitions))
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &w.topic,
			Partition: partition,
		},
		Key:   []byte(env.Key),
		Value: data,
	}
}
