package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/blockbase/internal/logging"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// NATSInvalidator реализует CacheInvalidator используя NATS Pub/Sub.
// Узлы, обслуживающие один мир, узнают об изменении варианта позиции
// и выбрасывают свой экземпляр поведения.
//
// Особенности:
// - Автоматическое переподключение при сбоях
// - Повторная доставка одного сообщения (узел + seq) отбрасывается
// - Собственные сообщения узла игнорируются
//
// Каждое изменение позиции публикуется отдельно: получатель перечитывает
// вариант из хранилища, поэтому схлопывать разные изменения одного ключа нельзя.
type NATSInvalidator struct {
	conn    *nats.Conn
	config  *InvalidatorConfig
	subject string
	nodeID  string
	logger  *logging.Logger

	// Подписки
	subMu        sync.Mutex
	subscription *nats.Subscription
	handler      InvalidationHandler

	// Graceful shutdown
	stopCh chan struct{}
	wg     sync.WaitGroup

	// Порядковый номер исходящих сообщений
	seq uint64

	// Дедупликация повторных доставок
	recentKeys map[string]time.Time
	keysMutex  sync.RWMutex

	// Метрики (используем atomic для thread safety)
	publishedCount int64
	receivedCount  int64
	errorsCount    int64
}

// InvalidatorConfig содержит конфигурацию для NATS invalidator.
type InvalidatorConfig struct {
	// NATS подключение
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`

	// Retry настройки
	MaxReconnects int           `yaml:"max_reconnects"`
	ReconnectWait time.Duration `yaml:"reconnect_wait"`

	// Сколько помнить уже обработанные сообщения
	DedupeWindow time.Duration `yaml:"dedupe_window"`

	// Timeouts
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

// applyDefaults заполняет незаданные поля
func (c *InvalidatorConfig) applyDefaults() {
	if c.Subject == "" {
		c.Subject = "blockbase.variants.invalidation"
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 10
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.DedupeWindow == 0 {
		c.DedupeWindow = 5 * time.Second
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = 5 * time.Second
	}
}

// NewNATSInvalidator создаёт новый NATS invalidator.
//
// Параметры:
//
//	config - конфигурация NATS соединения
//	nodeID - уникальный идентификатор узла; пустой - случайный UUID
//	logger - логгер компонента
func NewNATSInvalidator(config *InvalidatorConfig, nodeID string, logger *logging.Logger) (*NATSInvalidator, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	config.applyDefaults()

	opts := []nats.Option{
		nats.Name("blockbase-" + nodeID),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	conn, err := nats.Connect(config.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	invalidator := newInvalidator(conn, config, nodeID, logger)
	invalidator.startDedupeCleanup()

	logger.Info("NATS invalidator initialized: %s (subject: %s, node: %s)", config.NATSURL, config.Subject, invalidator.nodeID)
	return invalidator, nil
}

// newInvalidator собирает invalidator без подключения (conn может быть nil в тестах)
func newInvalidator(conn *nats.Conn, config *InvalidatorConfig, nodeID string, logger *logging.Logger) *NATSInvalidator {
	config.applyDefaults()
	if nodeID == "" {
		nodeID = uuid.NewString()
	}
	return &NATSInvalidator{
		conn:       conn,
		config:     config,
		subject:    config.Subject,
		nodeID:     nodeID,
		logger:     logger,
		stopCh:     make(chan struct{}),
		recentKeys: make(map[string]time.Time),
	}
}

// NodeID возвращает идентификатор узла
func (n *NATSInvalidator) NodeID() string {
	return n.nodeID
}

// PublishInvalidation отправляет уведомление об инвалидации ключа.
func (n *NATSInvalidator) PublishInvalidation(ctx context.Context, key string) error {
	data, err := n.encode(key)
	if err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return err
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		n.logger.Error("Failed to publish invalidation for key %s: %v", key, err)
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}

	// Публикуем с timeout
	ctx, cancel := context.WithTimeout(ctx, n.config.PublishTimeout)
	defer cancel()
	if err := n.conn.FlushWithContext(ctx); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		return fmt.Errorf("failed to flush invalidation: %w", err)
	}

	atomic.AddInt64(&n.publishedCount, 1)

	n.logger.Debug("Published invalidation for key: %s", key)
	return nil
}

func (n *NATSInvalidator) encode(key string) ([]byte, error) {
	msg := &InvalidationMessage{
		Key:       key,
		Timestamp: time.Now(),
		NodeID:    n.nodeID,
		Seq:       atomic.AddUint64(&n.seq, 1),
		Reason:    "variant_changed",
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal invalidation message: %w", err)
	}
	return data, nil
}

// SubscribeInvalidations подписывается на уведомления об инвалидации.
func (n *NATSInvalidator) SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	if n.subscription != nil {
		return fmt.Errorf("already subscribed to invalidations")
	}

	n.handler = handler

	sub, err := n.conn.Subscribe(n.subject, func(msg *nats.Msg) {
		n.handleInvalidation(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to invalidations: %w", err)
	}

	n.subscription = sub

	// Запускаем мониторинг контекста для graceful shutdown
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		select {
		case <-ctx.Done():
			n.unsubscribe()
		case <-n.stopCh:
			n.unsubscribe()
		}
	}()

	n.logger.Info("Subscribed to cache invalidations on subject: %s", n.subject)
	return nil
}

// Close закрывает соединение с NATS.
func (n *NATSInvalidator) Close() error {
	close(n.stopCh)
	n.wg.Wait()
	n.unsubscribe()

	if n.conn != nil {
		n.conn.Close()
	}
	n.logger.Info("NATS invalidator closed")
	return nil
}

// GetMetrics возвращает метрики invalidator.
func (n *NATSInvalidator) GetMetrics() map[string]interface{} {
	m := map[string]interface{}{
		"published_count": atomic.LoadInt64(&n.publishedCount),
		"received_count":  atomic.LoadInt64(&n.receivedCount),
		"errors_count":    atomic.LoadInt64(&n.errorsCount),
		"node_id":         n.nodeID,
	}
	if n.conn != nil {
		m["connected"] = n.conn.IsConnected()
		m["status"] = n.conn.Status().String()
	}
	return m
}

// handleInvalidation обрабатывает входящие сообщения об инвалидации.
func (n *NATSInvalidator) handleInvalidation(data []byte) {
	atomic.AddInt64(&n.receivedCount, 1)

	var msg InvalidationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		atomic.AddInt64(&n.errorsCount, 1)
		n.logger.Error("Failed to unmarshal invalidation message: %v", err)
		return
	}

	// Проверяем что это не наше собственное сообщение
	if msg.NodeID == n.nodeID {
		n.logger.Debug("Ignoring own invalidation message for key: %s", msg.Key)
		return
	}

	if msg.Seq != 0 {
		id := deliveryKey(msg)
		if n.isDuplicate(id) {
			n.logger.Debug("Ignoring redelivered invalidation %s for key: %s", id, msg.Key)
			return
		}
		n.recordKey(id)
	}

	if n.handler != nil {
		if err := n.handler(msg.Key); err != nil {
			atomic.AddInt64(&n.errorsCount, 1)
			n.logger.Error("Invalidation handler failed for key %s: %v", msg.Key, err)
		} else {
			n.logger.Debug("Processed invalidation for key: %s", msg.Key)
		}
	}
}

// unsubscribe отписывается от уведомлений.
func (n *NATSInvalidator) unsubscribe() {
	n.subMu.Lock()
	defer n.subMu.Unlock()
	if n.subscription != nil {
		if err := n.subscription.Unsubscribe(); err != nil {
			n.logger.Error("Failed to unsubscribe from invalidations: %v", err)
		} else {
			n.logger.Info("Unsubscribed from cache invalidations")
		}
		n.subscription = nil
	}
}

// deliveryKey идентифицирует конкретное сообщение, а не позицию
func deliveryKey(msg InvalidationMessage) string {
	return fmt.Sprintf("%s/%d", msg.NodeID, msg.Seq)
}

// isDuplicate проверяет, видели ли это сообщение недавно.
func (n *NATSInvalidator) isDuplicate(key string) bool {
	n.keysMutex.RLock()
	defer n.keysMutex.RUnlock()

	lastSeen, exists := n.recentKeys[key]
	if !exists {
		return false
	}
	return time.Since(lastSeen) < n.config.DedupeWindow
}

// recordKey записывает ключ в дедупликацию.
func (n *NATSInvalidator) recordKey(key string) {
	n.keysMutex.Lock()
	defer n.keysMutex.Unlock()

	n.recentKeys[key] = time.Now()
}

// startDedupeCleanup запускает периодическую очистку дедупликации.
func (n *NATSInvalidator) startDedupeCleanup() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ticker := time.NewTicker(n.config.DedupeWindow)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				n.cleanupDedupe()
			case <-n.stopCh:
				return
			}
		}
	}()
}

// cleanupDedupe удаляет старые записи из дедупликации.
func (n *NATSInvalidator) cleanupDedupe() {
	n.keysMutex.Lock()
	defer n.keysMutex.Unlock()

	now := time.Now()
	for key, timestamp := range n.recentKeys {
		if now.Sub(timestamp) > n.config.DedupeWindow {
			delete(n.recentKeys, key)
		}
	}
}
