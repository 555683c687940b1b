package cqrs

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// NameProvider is an interface for both Command and Query types
// that provides a way to get the name of the message.
type NameProvider interface {
	// Name returns the name of the message (command or query).
	Name() string
}

// ActionProvider defines the handler registration and lifecycle surface shared by both buses.
type ActionProvider interface {
	// Register registers a handler for the message type of its Handle method.
	Register(handler interface{}) error

	// Shutdown initiates a graceful shutdown of the bus.
	// New messages will be rejected, but existing ones will be allowed to complete.
	Shutdown()

	// WaitForCompletion waits for all active messages to complete.
	WaitForCompletion()
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Bus is a generic implementation that can be used by both command and query buses.
type Bus struct {
	handlers       map[string]interface{}
	mutex          sync.RWMutex
	isShuttingDown bool
	activeMessages sync.WaitGroup
	busType        string // "command" or "query"
	numOut         int
}

// NewBus creates a new Bus with the specified type. numOut is the number of
// values a handler's Handle method must return.
func NewBus(busType string, numOut int) *Bus {
	return &Bus{
		handlers: make(map[string]interface{}),
		busType:  busType,
		numOut:   numOut,
	}
}

// Register registers a handler. The handler must be a pointer with a method
// Handle(context.Context, M) whose last result is an error, where M
// implements NameProvider.
func (b *Bus) Register(handler interface{}) error {
	handlerType := reflect.TypeOf(handler)
	if handlerType == nil || handlerType.Kind() != reflect.Ptr {
		return fmt.Errorf("handler must be a pointer to a struct, got %T", handler)
	}

	handleMethod, exists := handlerType.MethodByName("Handle")
	if !exists {
		return fmt.Errorf("handler %T does not implement Handle method", handler)
	}

	methodType := handleMethod.Type
	if methodType.NumIn() != 3 { // receiver + ctx + message
		return fmt.Errorf("Handle method must take a context and the %s", b.busType)
	}
	if methodType.In(1) != contextType {
		return fmt.Errorf("first parameter of %T.Handle must be context.Context", handler)
	}
	if methodType.NumOut() != b.numOut || methodType.Out(b.numOut-1) != errorType {
		return fmt.Errorf("%T.Handle must return %d values ending with error", handler, b.numOut)
	}

	msgInstance := reflect.New(methodType.In(2)).Elem().Interface()
	msg, ok := msgInstance.(NameProvider)
	if !ok {
		return fmt.Errorf("parameter type %s does not implement the %s interface", methodType.In(2), b.busType)
	}

	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.handlers[msg.Name()]; exists {
		return fmt.Errorf("handler for %s %s already registered", b.busType, msg.Name())
	}
	b.handlers[msg.Name()] = handler
	return nil
}

// call invokes the registered handler for msg and returns its raw results.
func (b *Bus) call(ctx context.Context, msg NameProvider) ([]reflect.Value, error) {
	b.mutex.RLock()
	if b.isShuttingDown {
		b.mutex.RUnlock()
		return nil, fmt.Errorf("%s bus is shutting down", b.busType)
	}
	handler, exists := b.handlers[msg.Name()]
	if exists {
		b.activeMessages.Add(1)
	}
	b.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no handler registered for %s %s", b.busType, msg.Name())
	}
	defer b.activeMessages.Done()

	handleMethod := reflect.ValueOf(handler).MethodByName("Handle")
	return handleMethod.Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(msg)}), nil
}

// Shutdown initiates a graceful shutdown of the bus.
func (b *Bus) Shutdown() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.isShuttingDown = true
}

// WaitForCompletion waits for all active messages to complete.
func (b *Bus) WaitForCompletion() {
	b.activeMessages.Wait()
}

// IsShuttingDown returns true if the bus is shutting down.
func (b *Bus) IsShuttingDown() bool {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return b.isShuttingDown
}

func errorResult(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}
