package eventbus

import (
	"sync"

	"blog-image-server/internal/platform/logging"

	evbus "github.com/asaskevich/EventBus"
)

// AsyncEventBus 异步事件总线
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	pending   sync.WaitGroup
	mu        sync.RWMutex
	stopped   bool
	logger    *logging.Logger
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

// NewAsyncEventBus 创建异步事件总线
func NewAsyncEventBus(workerNum int, logger *logging.Logger) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = 4
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}

	return &AsyncEventBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, 1000),
		stopChan:  make(chan struct{}),
		logger:    logger,
	}
}

// Start 启动异步处理
func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop drains queued events, then stops the workers.
func (aeb *AsyncEventBus) Stop() {
	aeb.stopOnce.Do(func() {
		aeb.mu.Lock()
		aeb.stopped = true
		aeb.mu.Unlock()

		aeb.pending.Wait()
		close(aeb.stopChan)
		aeb.wg.Wait()
	})
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			return
		case event := <-aeb.workChan:
			aeb.dispatch(event)
		}
	}
}

func (aeb *AsyncEventBus) dispatch(event asyncEvent) {
	defer aeb.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			aeb.logger.ErrorTag("EVENT", "handler panic on %s: %v", event.topic, r)
		}
	}()
	aeb.bus.Publish(event.topic, event.args...)
}

// Publish 发布事件（同步）
func (aeb *AsyncEventBus) Publish(topic string, args ...interface{}) {
	aeb.bus.Publish(topic, args...)
}

// PublishAsync queues the event. It is dropped with a warning when the queue
// is full or the bus has been stopped.
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) {
	aeb.mu.RLock()
	defer aeb.mu.RUnlock()
	if aeb.stopped {
		aeb.logger.WarnTag("EVENT", "bus stopped, dropped %s", topic)
		return
	}

	aeb.pending.Add(1)
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		aeb.pending.Done()
		aeb.logger.WarnTag("EVENT", "queue full, dropped %s", topic)
	}
}

// Subscribe 订阅事件
func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

// Unsubscribe 取消订阅
func (aeb *AsyncEventBus) Unsubscribe(topic string, handler interface{}) error {
	return aeb.bus.Unsubscribe(topic, handler)
}

// HasCallback 检查是否有订阅者
func (aeb *AsyncEventBus) HasCallback(topic string) bool {
	return aeb.bus.HasCallback(topic)
}

// WaitAsync blocks until every queued event has been dispatched.
func (aeb *AsyncEventBus) WaitAsync() {
	aeb.pending.Wait()
}
