package mq

import (
	"context"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
)

// KafkaTopicConf 单个 topic 配置
type KafkaTopicConf struct {
	Topic      string `json:"topic" yaml:"topic"`           // topic 名称
	Partitions int    `json:"partitions" yaml:"partitions"` // 分区数，>1 时按 key 哈希分区
}

// KafkaProducerConf 定义 Kafka 生产者配置
// 所有时间相关参数单位均为毫秒
type KafkaProducerConf struct {
	Brokers         []string         `json:"brokers" yaml:"brokers"`                   // Kafka 集群 broker 地址列表
	Topics          []KafkaTopicConf `json:"topics" yaml:"topics"`                     // 生产的 topic 列表
	LingerMs        int              `json:"linger_ms" yaml:"linger_ms"`               // 批量攒批等待时间（ms）
	CompressionType string           `json:"compression_type" yaml:"compression_type"` // 压缩算法，空值表示不压缩
}

// NewKafkaProducer 创建并初始化 Kafka 生产者
func NewKafkaProducer(config *KafkaProducerConf) (*kafka.Producer, error) {
	kafkaConfig := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(config.Brokers, ","),
		"acks":              "all",
		"linger.ms":         config.LingerMs,
	}
	if config.CompressionType != "" {
		_ = kafkaConfig.SetKey("compression.type", config.CompressionType)
	}

	producer, err := kafka.NewProducer(kafkaConfig)
	if err != nil {
		return nil, err
	}

	logger.Infof("[KafkaProducer] New: brokers=%v, topics=%+v", config.Brokers, config.Topics)
	return producer, nil
}

// SendResult 单条消息的发送结果
type SendResult struct {
	Msg       *kafka.Message
	Success   bool // 收到成功回执
	Completed bool // 收到明确回执（成功或失败），消息缓冲可以复用
}

// SendKafkaMessagesBatch 批量发送消息并等待回执，超时或 ctx 取消时
// 未回执的消息保持 Completed=false 返回
func SendKafkaMessagesBatch(ctx context.Context, producer *kafka.Producer, messages []*kafka.Message, timeout time.Duration) []SendResult {
	results := make([]SendResult, len(messages))
	if len(messages) == 0 {
		return results
	}

	deliveryChan := make(chan kafka.Event, len(messages))
	index := make(map[*kafka.Message]int, len(messages))

	pending := 0
	for i, msg := range messages {
		results[i].Msg = msg
		index[msg] = i
		if err := producer.Produce(msg, deliveryChan); err != nil {
			// 入队即失败，算作已回执
			results[i].Completed = true
			logger.Warnf("[KafkaProducer] produce failed: %v", err)
			continue
		}
		pending++
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for pending > 0 {
		select {
		case <-ctx.Done():
			return results
		case <-timer.C:
			return results
		case ev := <-deliveryChan:
			m, ok := ev.(*kafka.Message)
			if !ok {
				continue
			}
			if i, exists := index[m]; exists {
				results[i].Completed = true
				results[i].Success = m.TopicPartition.Error == nil
			}
			pending--
		}
	}
	return results
}
