package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// AuditLog appends delivered messages to the customer's conversation history.
type AuditLog interface {
	Append(ctx context.Context, customerID, body, providerMessageID string) error
}

// Outcome pairs a message with its delivery result.
type Outcome struct {
	Message Message
	Result  Result
}

// Async delivers messages on a small worker pool. Enqueue never blocks:
// when the queue is full the message is dropped and logged.
type Async struct {
	sender Sender
	audit  AuditLog
	log    *zap.Logger

	workers int
	queue   chan Message
	results chan Outcome

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewAsync(sender Sender, audit AuditLog, log *zap.Logger, workers, queue int) *Async {
	if workers <= 0 {
		workers = 1
	}
	if queue <= 0 {
		queue = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Async{
		sender:  sender,
		audit:   audit,
		log:     log,
		workers: workers,
		queue:   make(chan Message, queue),
		results: make(chan Outcome, queue),
	}
}

// Start launches the workers. They stop after Close drains the queue.
func (a *Async) Start(ctx context.Context) {
	for i := 0; i < a.workers; i++ {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			for m := range a.queue {
				res := Deliver(context.WithoutCancel(ctx), a.sender, a.audit, a.log, m)
				select {
				case a.results <- Outcome{Message: m, Result: res}:
				default:
				}
			}
		}()
	}
}

func (a *Async) Enqueue(_ context.Context, m Message) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.log.Warn("notification dropped: dispatcher closed", zap.String("kind", string(m.Kind)), zap.String("order_id", m.OrderID))
		return false
	}
	select {
	case a.queue <- m:
		return true
	default:
		a.log.Warn("notification dropped: queue full", zap.String("kind", string(m.Kind)), zap.String("order_id", m.OrderID))
		return false
	}
}

// Results exposes delivery outcomes. Outcomes nobody reads are discarded
// once the buffer is full. The channel is closed by Close.
func (a *Async) Results() <-chan Outcome { return a.results }

// Close stops accepting messages, waits for queued ones to be delivered and
// then closes Results.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()
	a.wg.Wait()
	close(a.results)
}

// Deliver sends m and records it in the audit log on success.
func Deliver(ctx context.Context, sender Sender, audit AuditLog, log *zap.Logger, m Message) Result {
	res := sender.Send(ctx, m)
	fields := []zap.Field{
		zap.String("kind", string(m.Kind)),
		zap.String("order_id", m.OrderID),
		zap.String("to", m.To),
	}
	if !res.Success {
		log.Warn("notification failed", append(fields, zap.String("error", res.Error))...)
		return res
	}
	log.Info("notification sent", append(fields, zap.String("message_id", res.ID))...)

	if audit != nil && m.CustomerID != "" {
		if err := audit.Append(ctx, m.CustomerID, m.Body, res.ID); err != nil {
			log.Warn("conversation log append failed", append(fields, zap.Error(err))...)
		}
	}
	return res
}
