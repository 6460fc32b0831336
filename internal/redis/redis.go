// Package redis wraps the optional redis connection used for token revocation
// and live activity fan-out.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/mentorbook/internal/application"
)

const (
	blacklistPrefix = "mentorbook:token:blacklist:"
	activityPrefix  = "mentorbook:activities:"
)

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client implements token.Blacklist and application.ActivityPublisher.
type Client struct {
	rdb    goredis.UniversalClient
	logger *zap.Logger
}

// NewClient connects and pings the server.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}

	logger.Info("redis connected", zap.String("addr", opts.Addr))
	return &Client{rdb: rdb, logger: logger}, nil
}

// Wrap builds a Client around an existing connection.
func Wrap(rdb goredis.UniversalClient, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{rdb: rdb, logger: logger}
}

// BlacklistToken stores jti for ttl. Expired tokens are not stored.
func (c *Client) BlacklistToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, blacklistPrefix+jti, "1", ttl).Err()
}

func (c *Client) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := c.rdb.Exists(ctx, blacklistPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ActivityChannel names the pub/sub channel carrying userID's feed.
func ActivityChannel(userID string) string {
	return activityPrefix + userID
}

type activityMessage struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Content       string    `json:"content"`
	RelatedUserID string    `json:"related_user_id,omitempty"`
	SessionID     string    `json:"session_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// PublishActivity sends a JSON copy of activity to its owner's channel.
func (c *Client) PublishActivity(ctx context.Context, activity application.Activity) error {
	payload, err := json.Marshal(activityMessage{
		ID:            activity.ID,
		Type:          string(activity.Type),
		Content:       activity.Content,
		RelatedUserID: activity.RelatedUserID,
		SessionID:     activity.SessionID,
		CreatedAt:     activity.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode activity: %w", err)
	}
	receivers, err := c.rdb.Publish(ctx, ActivityChannel(activity.UserID), payload).Result()
	if err != nil {
		return fmt.Errorf("publish activity: %w", err)
	}
	c.logger.Debug("activity published", zap.String("activity_id", activity.ID), zap.Int64("receivers", receivers))
	return nil
}

// Ping reports whether the server answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
