package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mautops/promotion-vote/internal/config"
	"github.com/mautops/promotion-vote/internal/model"
	"github.com/mautops/promotion-vote/internal/repository"
	"github.com/sirupsen/logrus"
)

// 事件投递状态
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Subscriber 进程内事件订阅者
type Subscriber func(ctx context.Context, evt *model.DomainEvent) error

// queuedEvent 待投递事件
type queuedEvent struct {
	eventID string
	evt     *model.DomainEvent
}

// EventHandler 基于发件箱的领域事件发布者
// 事件先落库,再由 worker 异步推送给订阅者和 Webhook
type EventHandler struct {
	eventRepo   repository.EventRepository
	webhooks    []config.WebhookConfig
	httpClient  *http.Client
	logger      *logrus.Logger
	queue       chan *queuedEvent
	workers     int
	maxRetries  int
	backoff     time.Duration
	stop        chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	subscribers []Subscriber
	stopOnce    sync.Once
}

// Option 事件处理器选项
type Option func(*EventHandler)

// WithHTTPClient 指定 Webhook 使用的 HTTP 客户端
func WithHTTPClient(client *http.Client) Option {
	return func(h *EventHandler) {
		h.httpClient = client
	}
}

// WithRetryBackoff 指定首次重试前的等待时间,之后指数退避
func WithRetryBackoff(backoff time.Duration) Option {
	return func(h *EventHandler) {
		h.backoff = backoff
	}
}

// NewEventHandler 创建事件处理器并启动 worker
func NewEventHandler(eventRepo repository.EventRepository, cfg config.NotifierConfig, logger *logrus.Logger, opts ...Option) *EventHandler {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	h := &EventHandler{
		eventRepo:  eventRepo,
		webhooks:   cfg.Webhooks,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
		queue:      make(chan *queuedEvent, queueSize),
		workers:    workers,
		maxRetries: 3,
		backoff:    time.Second,
		stop:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}

	for i := 0; i < workers; i++ {
		h.wg.Add(1)
		go h.worker()
	}

	return h
}

// Subscribe 注册进程内订阅者
func (h *EventHandler) Subscribe(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers = append(h.subscribers, sub)
}

// Publish 持久化事件并异步投递
func (h *EventHandler) Publish(ctx context.Context, evt *model.DomainEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	now := time.Now().UTC()
	eventModel := &model.EventModel{
		ID:          evt.ID,
		AggregateID: evt.AggregateID,
		Type:        evt.Type,
		Data:        data,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.eventRepo.Save(ctx, eventModel); err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}

	h.enqueue(&queuedEvent{eventID: eventModel.ID, evt: evt})
	return nil
}

// Replay 重新投递库中仍为 pending 的事件,用于进程重启后恢复
func (h *EventHandler) Replay(ctx context.Context) (int, error) {
	pending, err := h.eventRepo.FindPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to find pending events: %w", err)
	}

	for _, em := range pending {
		var evt model.DomainEvent
		if err := json.Unmarshal(em.Data, &evt); err != nil {
			h.logger.WithField("event_id", em.ID).WithError(err).Error("failed to decode stored event")
			_ = h.eventRepo.UpdateStatus(ctx, em.ID, StatusFailed, em.RetryCount)
			continue
		}
		h.enqueue(&queuedEvent{eventID: em.ID, evt: &evt})
	}
	return len(pending), nil
}

// Stop 停止 worker,已入队未处理的事件留在库中等待 Replay
func (h *EventHandler) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
	h.wg.Wait()
}

func (h *EventHandler) enqueue(item *queuedEvent) {
	select {
	case h.queue <- item:
	default:
		// 队列满时不阻塞业务写入,事件保持 pending
		h.logger.WithFields(logrus.Fields{
			"event_id":   item.eventID,
			"event_type": item.evt.Type,
		}).Warn("event queue full, event left pending")
	}
}

// worker 事件处理 worker
func (h *EventHandler) worker() {
	defer h.wg.Done()
	for {
		select {
		case item := <-h.queue:
			h.deliver(item)
		case <-h.stop:
			return
		}
	}
}

// deliver 通知订阅者并推送 Webhook,Webhook 失败时指数退避重试
func (h *EventHandler) deliver(item *queuedEvent) {
	ctx := context.Background()
	entry := h.logger.WithFields(logrus.Fields{
		"event_id":     item.eventID,
		"event_type":   item.evt.Type,
		"aggregate_id": item.evt.AggregateID,
	})

	h.mu.RLock()
	subscribers := append([]Subscriber(nil), h.subscribers...)
	h.mu.RUnlock()
	for _, sub := range subscribers {
		if err := sub(ctx, item.evt); err != nil {
			entry.WithError(err).Warn("event subscriber failed")
		}
	}

	webhooks := h.webhooksFor(item.evt.Type)
	if len(webhooks) == 0 {
		h.updateStatus(ctx, entry, item.eventID, StatusSuccess, 0)
		return
	}

	backoff := h.backoff
	retries := 0
	for i := 0; i < h.maxRetries; i++ {
		success := true
		for _, webhook := range webhooks {
			if err := h.sendWebhookRequest(ctx, webhook, item.evt); err != nil {
				success = false
				entry.WithField("url", webhook.URL).WithError(err).Warn("failed to send webhook request")
			}
		}

		if success {
			h.updateStatus(ctx, entry, item.eventID, StatusSuccess, retries)
			return
		}

		retries++
		h.updateStatus(ctx, entry, item.eventID, StatusPending, retries)

		if i < h.maxRetries-1 {
			select {
			case <-time.After(backoff):
			case <-h.stop:
				return
			}
			backoff *= 2
		}
	}

	entry.WithField("retries", retries).Error("event delivery failed")
	h.updateStatus(ctx, entry, item.eventID, StatusFailed, retries)
}

func (h *EventHandler) updateStatus(ctx context.Context, entry *logrus.Entry, id, status string, retries int) {
	if err := h.eventRepo.UpdateStatus(ctx, id, status, retries); err != nil {
		entry.WithError(err).Error("failed to update event status")
	}
}

// webhooksFor 返回订阅了该事件类型的 Webhook
func (h *EventHandler) webhooksFor(eventType model.EventType) []config.WebhookConfig {
	var matched []config.WebhookConfig
	for _, webhook := range h.webhooks {
		if len(webhook.Events) == 0 {
			matched = append(matched, webhook)
			continue
		}
		for _, e := range webhook.Events {
			if e == string(eventType) {
				matched = append(matched, webhook)
				break
			}
		}
	}
	return matched
}

// sendWebhookRequest 发送 Webhook 请求
func (h *EventHandler) sendWebhookRequest(ctx context.Context, webhook config.WebhookConfig, evt *model.DomainEvent) error {
	eventData, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	method := webhook.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, webhook.URL, bytes.NewBuffer(eventData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Event-Type", string(evt.Type))
	for key, value := range webhook.Headers {
		req.Header.Set(key, value)
	}

	if webhook.Auth != nil {
		switch webhook.Auth.Type {
		case "bearer":
			req.Header.Set("Authorization", "Bearer "+webhook.Auth.Token)
		case "basic":
			req.SetBasicAuth(webhook.Auth.Key, webhook.Auth.Token)
		case "header":
			req.Header.Set(webhook.Auth.Key, webhook.Auth.Token)
		}
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status code: %d", resp.StatusCode)
	}

	return nil
}
