package session

import (
	"sync"

	"agrarkarte/internal/logger"
)

// EventType：状态变化事件类型
type EventType string

const (
	EventLayers       EventType = "layers"
	EventEdit         EventType = "edit"
	EventBuffers      EventType = "buffers"
	EventParameters   EventType = "parameters"
	EventZoneProgress EventType = "zone_progress"
	EventZoneResults  EventType = "zone_results"
	EventNotice       EventType = "notice"
	EventCleared      EventType = "cleared"
)

// Event：推送给订阅方的状态变化
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// Notice：面向用户的提示（例如被拒绝的编辑）
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// 文档注释：进程内事件分发
// 背景：状态变化以事件形式发布，由 websocket 等订阅方消费；不在发布路径上做任何重计算。
// 约束：发布不阻塞，订阅方缓冲满时丢弃该事件并记录日志。
type Broker struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func NewBroker() *Broker { return &Broker{subs: make(map[int]chan Event)} }

// Subscribe：注册订阅，返回事件通道与取消函数（取消后通道关闭）
func (b *Broker) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broker) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			logger.L().Debug("event_dropped", "subscriber", id, "type", e.Type)
		}
	}
}

// Subscribers：当前订阅数
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
