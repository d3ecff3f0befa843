package report

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/vk/modanalysis/internal/batch"
	"github.com/vk/modanalysis/internal/ctxlog"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Events emitted by a Publisher.
const (
	EventModuleResult  = "module_result"
	EventBatchComplete = "batch_complete"
)

// Publisher forwards results to a live listener while a batch runs.
type Publisher interface {
	PublishModule(ctx context.Context, runID string, o batch.Outcome) error
	PublishBatch(ctx context.Context, doc Document) error
	Close() error
}

// NopPublisher discards everything.
type NopPublisher struct{}

func (NopPublisher) PublishModule(context.Context, string, batch.Outcome) error { return nil }
func (NopPublisher) PublishBatch(context.Context, Document) error { return nil }
func (NopPublisher) Close() error { return nil }

// ModuleEvent is the payload of a module_result event.
type ModuleEvent struct {
	RunID       string         `json:"run_id"`
	Module      string         `json:"module"`
	Description string         `json:"module_description"`
	Status      string         `json:"status"`
	Error       *string        `json:"error"`
	Result      map[string]any `json:"result"`
	DurationMS  int64          `json:"duration_ms"`
}

// emitter is the part of a socket.io client the publisher needs.
type emitter interface {
	Emit(ev string, args ...any) error
}

// SocketIOPublisher emits results over a socket.io connection.
type SocketIOPublisher struct {
	client     emitter
	disconnect func()
}

// PublishOptions configures DialSocketIO.
type PublishOptions struct {
	URL                string
	Namespace          string
	InsecureSkipVerify bool
	ConnectTimeout     time.Duration
}

// DialSocketIO connects to a socket.io server and returns a publisher bound
// to the connection.
func DialSocketIO(ctx context.Context, o PublishOptions) (*SocketIOPublisher, error) {
	logger := ctxlog.FromContext(ctx).With("publisher", "socketio", "url", o.URL)
	logger.Info("Connecting result publisher...")

	parsedURL, err := url.Parse(o.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse publish URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("publish URL %q must include scheme and host", o.URL)
	}
	timeout := o.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	namespace := o.Namespace
	if namespace == "" {
		namespace = "/"
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" {
		opts.SetPath(parsedURL.Path)
	}
	if o.InsecureSkipVerify {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	connectChan := make(chan error, 1)
	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	io.Once(types.EventName("connect"), func(...any) {
		logger.Info("Result publisher connected", "sid", io.Id())
		connectChan <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := fmt.Errorf("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		connectChan <- err
	})

	io.Connect()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &SocketIOPublisher{client: io, disconnect: func() { io.Disconnect() }}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("context cancelled while waiting for socket.io connection")
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %v waiting for socket.io connection", timeout)
	}
}

// PublishModule emits a module_result event for o.
func (p *SocketIOPublisher) PublishModule(ctx context.Context, runID string, o batch.Outcome) error {
	entry := Entry(o)
	event := ModuleEvent{
		RunID:       runID,
		Module:      o.Module,
		Description: o.Description,
		Status:      entry.Status,
		Error:       entry.Error,
		Result:      entry.Result,
		DurationMS:  o.Duration.Milliseconds(),
	}
	ctxlog.FromContext(ctx).Debug("Emitting event", "event", EventModuleResult, "module", o.Module)
	if err := p.client.Emit(EventModuleResult, event); err != nil {
		return fmt.Errorf("failed to emit %s for module %q: %w", EventModuleResult, o.Module, err)
	}
	return nil
}

// PublishBatch emits a batch_complete event carrying the full document.
func (p *SocketIOPublisher) PublishBatch(ctx context.Context, doc Document) error {
	ctxlog.FromContext(ctx).Debug("Emitting event", "event", EventBatchComplete, "run_id", doc.Metadata.RunID)
	if err := p.client.Emit(EventBatchComplete, doc); err != nil {
		return fmt.Errorf("failed to emit %s: %w", EventBatchComplete, err)
	}
	return nil
}

// Close disconnects from the server.
func (p *SocketIOPublisher) Close() error {
	if p.disconnect != nil {
		p.disconnect()
	}
	return nil
}
