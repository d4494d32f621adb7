/*
 * @Description: 一个带固定Worker池的异步事件总线
 * @Author: 安知鱼
 * @Date: 2025-07-10 19:06:12
 * @LastEditTime: 2025-11-02 11:02:15
 * @LastEditors: 安知鱼
 */
package event

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// 定义事件类型
type Topic string

const (
	// MediaOrphanFailed 在孤儿对象删除失败时发布，负载为 OrphanFailedPayload
	MediaOrphanFailed Topic = "media:orphan_failed"
	// DocumentDeleted 在文档删除后发布，负载为 DocumentDeletedPayload
	DocumentDeleted Topic = "document:deleted"
)

// DocumentDeletedPayload 是 DocumentDeleted 事件的负载
type DocumentDeletedPayload struct {
	Collection string
	ID         string
	// Images 是文档删除前持有的图片数量
	Images int
}

// OrphanFailedPayload 是 MediaOrphanFailed 事件的负载
type OrphanFailedPayload struct {
	Key     string
	OwnerID string
	Field   string
	Err     error
}

// 事件处理器函数类型
type Handler func(payload interface{})

// Event 是在通道中传递的事件结构
type Event struct {
	Topic   Topic
	Payload interface{}
}

// EventBus 实现了基于Worker池的异步事件总线
type EventBus struct {
	mu        sync.RWMutex
	handlers  map[Topic][]Handler
	eventChan chan Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// 定义Worker池和通道的配置
const (
	DefaultWorkerCount = 4
	DefaultChannelSize = 1024
)

// NewEventBus 创建并启动一个新的事件总线
func NewEventBus() *EventBus {
	bus := &EventBus{
		handlers:  make(map[Topic][]Handler),
		eventChan: make(chan Event, DefaultChannelSize),
	}
	bus.startWorkers(DefaultWorkerCount)
	return bus
}

func (b *EventBus) startWorkers(count int) {
	for i := 0; i < count; i++ {
		b.wg.Add(1)
		go b.worker(i + 1)
	}
}

// worker 是消费者，不断从通道中读取并处理事件
func (b *EventBus) worker(workerID int) {
	defer b.wg.Done()
	logger := log.With().Str("component", "event_bus").Int("worker", workerID).Logger()
	logger.Debug().Msg("worker started")

	for event := range b.eventChan {
		b.mu.RLock()
		handlers := b.handlers[event.Topic]
		b.mu.RUnlock()
		for _, handler := range handlers {
			b.dispatch(handler, event)
		}
	}
	logger.Debug().Msg("worker stopped")
}

// dispatch 执行单个处理器，处理器 panic 不会拖垮 worker
func (b *EventBus) dispatch(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("component", "event_bus").Str("topic", string(event.Topic)).
				Interface("panic", r).Msg("事件处理器发生 panic")
		}
	}()
	handler(event.Payload)
}

// Subscribe 订阅一个事件
func (b *EventBus) Subscribe(topic Topic, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish 发布一个事件，非阻塞；通道已满时丢弃并告警
func (b *EventBus) Publish(topic Topic, payload interface{}) {
	select {
	case b.eventChan <- Event{Topic: topic, Payload: payload}:
	default:
		log.Warn().Str("component", "event_bus").Str("topic", string(topic)).Msg("事件通道已满，丢弃事件")
	}
}

// Shutdown 优雅地关闭事件总线，等待已入队的事件处理完毕
func (b *EventBus) Shutdown() {
	b.closeOnce.Do(func() {
		close(b.eventChan)
		b.wg.Wait()
		log.Info().Str("component", "event_bus").Msg("所有 worker 已停止")
	})
}
