package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"basegraph.app/dispatch/internal/domain"
)

// ErrUnknownPlatform is returned by the Registry for an unregistered provider name.
var ErrUnknownPlatform = errors.New("unknown platform")

// Adapter translates between one provider's wire format and the normalized model.
type Adapter interface {
	Name() string

	// SignatureHeader names the request header carrying the webhook signature.
	SignatureHeader() string
	// Verify authenticates a raw webhook body. With no secret configured it returns true.
	Verify(body []byte, signature string) bool
	// Parse returns nil, nil for payloads that are recognised but not handled.
	// Errors are reserved for malformed input.
	Parse(body []byte) (*domain.NormalizedEvent, error)
	// ShouldProcess must reject events raised by bots.
	ShouldProcess(event domain.NormalizedEvent) bool

	Respond(ctx context.Context, sc domain.SessionContext, text string) error
	GetIssue(ctx context.Context, issueID string) (*domain.NormalizedIssue, error)
	// GetConversationHistory returns messages sorted by timestamp ascending.
	GetConversationHistory(ctx context.Context, issueID string) ([]domain.ConversationMessage, error)
}

// ActivityReporter is implemented by adapters that can show run progress.
type ActivityReporter interface {
	ReportActivity(ctx context.Context, sc domain.SessionContext, activity domain.Activity) error
}

// DeliveryIdentifier is implemented by adapters whose provider stamps webhook deliveries with an id.
type DeliveryIdentifier interface {
	DeliveryID(header http.Header) string
}

// ReportActivity relays an activity when the adapter supports it and is a no-op otherwise.
func ReportActivity(ctx context.Context, a Adapter, sc domain.SessionContext, activity domain.Activity) error {
	reporter, ok := a.(ActivityReporter)
	if !ok {
		return nil
	}
	return reporter.ReportActivity(ctx, sc, activity)
}

// DeliveryID extracts the provider delivery id, or "" when the adapter has none.
func DeliveryID(a Adapter, header http.Header) string {
	identifier, ok := a.(DeliveryIdentifier)
	if !ok {
		return ""
	}
	return identifier.DeliveryID(header)
}

// Registry resolves adapters by the name used in webhook paths.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, name)
	}
	return a, nil
}

// Names lists registered adapters in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
