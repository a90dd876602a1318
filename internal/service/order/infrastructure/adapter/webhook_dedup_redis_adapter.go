package adapter

import (
	"context"
	"fmt"
	"time"

	"freshdrop/internal/pkg/redis"
)

const (
	releaseScriptName  = "webhook_dedup_release"
	completeScriptName = "webhook_dedup_complete"
)

// 只删除自己持有的占位，避免误删其他实例在 TTL 过期后重新占用的 key
var releaseScript = `
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`

// 占位仍归自己或已过期时写入去重记录；已被其他实例重新占用则不覆盖
var completeScript = `
local holder = redis.call('get', KEYS[1])
if holder == ARGV[1] or holder == false then
    redis.call('set', KEYS[1], ARGV[1], 'PX', ARGV[2])
    return 1
end
return 0
`

// WebhookDedupRedisAdapter 实现了 port.WebhookDeduplicator 接口。
type WebhookDedupRedisAdapter struct {
	redisClient *redis.Client
	owner       string // 本实例标识，写入占位 value
}

func NewWebhookDedupRedisAdapter(redisClient *redis.Client, owner string) (*WebhookDedupRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(releaseScriptName, releaseScript); err != nil {
		return nil, fmt.Errorf("failed to load dedup release script: %w", err)
	}
	if err := redisClient.LoadScriptFromContent(completeScriptName, completeScript); err != nil {
		return nil, fmt.Errorf("failed to load dedup complete script: %w", err)
	}
	return &WebhookDedupRedisAdapter{redisClient: redisClient, owner: owner}, nil
}

func dedupKey(eventID string) string {
	return fmt.Sprintf("webhook:event:{%s}", eventID)
}

func (a *WebhookDedupRedisAdapter) Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	ok, err := a.redisClient.SetNX(ctx, dedupKey(eventID), a.owner, ttl)
	if err != nil {
		return false, fmt.Errorf("dedup claim %s: %w", eventID, err)
	}
	return ok, nil
}

func (a *WebhookDedupRedisAdapter) Complete(ctx context.Context, eventID string, ttl time.Duration) error {
	if _, err := a.redisClient.RunScript(ctx, completeScriptName, []string{dedupKey(eventID)}, a.owner, ttl.Milliseconds()); err != nil {
		return fmt.Errorf("dedup complete %s: %w", eventID, err)
	}
	return nil
}

func (a *WebhookDedupRedisAdapter) Release(ctx context.Context, eventID string) error {
	if _, err := a.redisClient.RunScript(ctx, releaseScriptName, []string{dedupKey(eventID)}, a.owner); err != nil {
		return fmt.Errorf("dedup release %s: %w", eventID, err)
	}
	return nil
}
