package push

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrMissingVAPIDKeys VAPID 密钥未配置
var ErrMissingVAPIDKeys = errors.New("vapid keys are not configured")

// Subscription 浏览器推送订阅端点
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Config web push 发送配置
type Config struct {
	HTTPClient      *http.Client
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subscriber 推送服务联系人，mailto: 或 https: URL
	Subscriber string
	TTL        time.Duration
}

// Sender 通过 VAPID 签名的 web push 协议发送加密通知
type Sender struct {
	opts webpush.Options
}

func NewSender(cfg Config) (*Sender, error) {
	if cfg.VAPIDPublicKey == "" || cfg.VAPIDPrivateKey == "" {
		return nil, ErrMissingVAPIDKeys
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	ttl := int(cfg.TTL / time.Second)
	if ttl <= 0 {
		ttl = 3600
	}

	return &Sender{
		opts: webpush.Options{
			HTTPClient:      client,
			Subscriber:      cfg.Subscriber,
			TTL:             ttl,
			Urgency:         webpush.UrgencyNormal,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		},
	}, nil
}

// Send 发送一条通知，返回推送服务的 HTTP 状态码
// 非 2xx 状态码同时返回错误，调用方可据此判断端点是否失效
func (s *Sender) Send(ctx context.Context, sub Subscription, message []byte) (int, error) {
	opts := s.opts
	resp, err := webpush.SendNotificationWithContext(ctx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			Auth:   sub.Auth,
			P256dh: sub.P256dh,
		},
	}, &opts)
	if err != nil {
		return 0, fmt.Errorf("failed to send web push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("push service responded %d: %s", resp.StatusCode, body)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
