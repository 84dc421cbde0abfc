package ingest

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"

	"github.com/KatriaDopex/jestermaxxing/internal/feed/metrics"
	"github.com/KatriaDopex/jestermaxxing/internal/feed/types"
	"github.com/KatriaDopex/jestermaxxing/internal/pkg/logger"
)

// Subscriber 是推送通道：通过 WS logsSubscribe 订阅提及代币铸币地址的交易。
// 断线后按指数退避重连，重试耗尽后降级为仅轮询并退出。
type Subscriber struct {
	endpoint string
	mint     solana.PublicKey
	pipeline *Pipeline
	status   *StatusManager
	backoff  BackoffPolicy
}

func NewSubscriber(endpoint string, mint solana.PublicKey, pipeline *Pipeline, status *StatusManager) *Subscriber {
	return &Subscriber{
		endpoint: endpoint,
		mint:     mint,
		pipeline: pipeline,
		status:   status,
		backoff:  DefaultBackoffPolicy(),
	}
}

// Run 维持订阅直到 ctx 取消或重试耗尽
func (s *Subscriber) Run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		s.status.Set(types.StatusConnecting)
		wentLive, err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if wentLive {
			// 成功建立过订阅，重连计数从头算
			attempt = 0
		}

		attempt++
		metrics.WsReconnectsTotal.Inc()
		if s.backoff.Exhausted(attempt) {
			logger.Errorf("[Subscriber] giving up after %d reconnect attempts, polling only: %v", attempt, err)
			s.status.Set(types.StatusPollingOnly)
			return
		}

		delay := s.backoff.Delay(attempt)
		logger.Warnf("[Subscriber] connection lost (attempt %d), retrying in %s: %v", attempt, delay, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// runOnce 建立一次订阅并消费消息，返回是否成功进入 Live 以及导致断开的错误
func (s *Subscriber) runOnce(ctx context.Context) (bool, error) {
	client, err := ws.Connect(ctx, s.endpoint)
	if err != nil {
		return false, err
	}
	defer client.Close()

	sub, err := client.LogsSubscribeMentions(s.mint, rpc.CommitmentConfirmed)
	if err != nil {
		return false, err
	}
	defer sub.Unsubscribe()

	// ctx 取消时关闭连接，让阻塞中的 Recv 立即返回
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-connCtx.Done()
		client.Close()
	}()

	s.status.Set(types.StatusLive)
	logger.Infof("[Subscriber] live: subscribed to logs mentioning %s", s.mint)

	for {
		got, err := sub.Recv()
		if err != nil {
			return true, err
		}
		if got == nil {
			continue
		}
		s.pipeline.Submit(got.Value.Signature.String(), got.Value.Err != nil)
	}
}
