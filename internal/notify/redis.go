package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisNotifier 通过 Redis Pub/Sub 向账户持有者推送操作结果
// 纯单向投递：没有订阅者、发布失败都只记日志，绝不影响账本操作
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Notify 发布人类可读的结果文本到该账户的通知频道
func (n *RedisNotifier) Notify(ctx context.Context, ownerID, message string) {
	// 带超时的派生上下文，慢 Redis 不拖住调用方
	pubCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	channel := ChannelFor(ownerID)
	if err := n.client.Publish(pubCtx, channel, message).Err(); err != nil {
		log.Printf("[Notify] 发布通知失败 channel=%s: %v", channel, err)
	}
}

// ChannelFor 账户通知频道名
func ChannelFor(ownerID string) string {
	return fmt.Sprintf("ledger:notify:%s", ownerID)
}
