// Package memory provides an in-process implementation of the storage
// gateway with the same conditional-write semantics as the DynamoDB one.
// It backs local development and service tests.
package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"wedding-backend/application/ports"
	"wedding-backend/domain/core/entities"
	"wedding-backend/domain/events"
	"wedding-backend/domain/keys"
	"wedding-backend/infrastructure/stream"
	pkgerrors "wedding-backend/pkg/errors"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// ChangeListener receives a change event after each tracked write commits.
type ChangeListener func(events.ChangeEvent)

type injected struct {
	err        error
	afterApply bool
	remaining  int // <= 0 means every call
}

// Store is an in-memory ports.Store.
type Store struct {
	mu        sync.Mutex
	items     map[string]ports.Item
	listeners []ChangeListener
	feed      []events.ChangeEvent

	// For testing error scenarios
	failures map[string]*injected
	hooks    map[string]func()
}

var _ ports.Store = (*Store)(nil)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		items:    make(map[string]ports.Item),
		failures: make(map[string]*injected),
		hooks:    make(map[string]func()),
	}
}

// Subscribe registers l for change events of future writes.
func (s *Store) Subscribe(l ChangeListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Changes returns every change event emitted so far.
func (s *Store) Changes() []events.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.ChangeEvent(nil), s.feed...)
}

// SetError makes method fail with err. With afterApply the write is
// committed before err is returned, which models a timed-out write that
// actually succeeded. times <= 0 fails every call.
func (s *Store) SetError(method string, err error, afterApply bool, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = &injected{err: err, afterApply: afterApply, remaining: times}
}

// SetHook runs fn before every call of method, outside the store lock.
func (s *Store) SetHook(method string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[method] = fn
}

// ClearErrors removes injected errors and hooks.
func (s *Store) ClearErrors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]*injected)
	s.hooks = make(map[string]func())
}

func (s *Store) before(method string) {
	s.mu.Lock()
	hook := s.hooks[method]
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// takeFailure must be called with the lock held.
func (s *Store) takeFailure(method string) *injected {
	f, ok := s.failures[method]
	if !ok {
		return nil
	}
	if f.remaining > 0 {
		f.remaining--
		if f.remaining == 0 {
			delete(s.failures, method)
		}
	}
	return f
}

// GetItem returns a copy of the row at key.
func (s *Store) GetItem(ctx context.Context, key keys.Key) (ports.Item, error) {
	s.before("GetItem")
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewTimeoutError("GetItem").WithCause(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.takeFailure("GetItem"); f != nil {
		return nil, f.err
	}
	item, ok := s.items[key.String()]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("item " + key.String())
	}
	return copyItem(item), nil
}

// Query scans the in-memory rows matching in.
func (s *Store) Query(ctx context.Context, in ports.QueryInput) ([]ports.Item, error) {
	s.before("Query")
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewTimeoutError("Query").WithCause(err)
	}
	pkAttr, skAttr := keys.AttrPK, keys.AttrSK
	if in.Index != nil {
		pkAttr, skAttr = in.Index.PartitionAttr, in.Index.SortAttr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.takeFailure("Query"); f != nil {
		return nil, f.err
	}
	var out []ports.Item
	for _, item := range s.items {
		if entities.StringAttr(item, pkAttr) != in.PartitionKey {
			continue
		}
		sk, ok := item[skAttr].(*types.AttributeValueMemberS)
		if !ok {
			continue
		}
		switch {
		case in.SortKeyPrefix != "":
			if !strings.HasPrefix(sk.Value, in.SortKeyPrefix) {
				continue
			}
		case in.SortKeyBetween != nil:
			if sk.Value < in.SortKeyBetween[0] || sk.Value > in.SortKeyBetween[1] {
				continue
			}
		}
		out = append(out, copyItem(item))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := entities.StringAttr(out[i], skAttr), entities.StringAttr(out[j], skAttr)
		if a == b {
			a, b = entities.StringAttr(out[i], keys.AttrPK)+entities.StringAttr(out[i], keys.AttrSK),
				entities.StringAttr(out[j], keys.AttrPK)+entities.StringAttr(out[j], keys.AttrSK)
		}
		if in.Descending {
			return a > b
		}
		return a < b
	})
	if in.Limit > 0 && len(out) > in.Limit {
		out = out[:in.Limit]
	}
	return out, nil
}

// PutItem stores a copy of item.
func (s *Store) PutItem(ctx context.Context, item ports.Item, opts ports.PutOptions) error {
	s.before("PutItem")
	if err := ctx.Err(); err != nil {
		return pkgerrors.NewTimeoutError("PutItem").WithCause(err)
	}
	key := itemKey(item)
	if key.PK == "" || key.SK == "" {
		return pkgerrors.NewValidationError("item is missing PK or SK")
	}

	s.mu.Lock()
	f := s.takeFailure("PutItem")
	if f != nil && !f.afterApply {
		s.mu.Unlock()
		return f.err
	}
	_, exists := s.items[key.String()]
	if opts.IfNotExists && exists {
		s.mu.Unlock()
		return pkgerrors.NewConflictError("item already exists").WithCode(pkgerrors.CodeDuplicate)
	}
	stored := copyItem(item)
	s.items[key.String()] = stored
	name := events.ChangeInsert
	if exists {
		name = events.ChangeModify
	}
	listeners := s.emit(name, stored)
	s.mu.Unlock()

	notify(listeners)
	if f != nil {
		return f.err
	}
	return nil
}

// UpdateItem applies patch to the row at key and bumps its version.
func (s *Store) UpdateItem(ctx context.Context, key keys.Key, patch ports.Patch, expectedVersion *int) (ports.Item, error) {
	s.before("UpdateItem")
	if err := ctx.Err(); err != nil {
		return nil, pkgerrors.NewTimeoutError("UpdateItem").WithCause(err)
	}
	values := make(map[string]types.AttributeValue, len(patch))
	for name, v := range patch {
		if name == keys.AttrPK || name == keys.AttrSK || name == keys.AttrVersion {
			continue
		}
		if v == nil {
			values[name] = nil
			continue
		}
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, pkgerrors.NewValidationError("cannot encode attribute " + name).WithCause(err)
		}
		values[name] = av
	}

	s.mu.Lock()
	f := s.takeFailure("UpdateItem")
	if f != nil && !f.afterApply {
		s.mu.Unlock()
		return nil, f.err
	}
	current, ok := s.items[key.String()]
	if !ok {
		s.mu.Unlock()
		return nil, pkgerrors.NewNotFoundError("item " + key.String())
	}
	version := numberAttr(current, keys.AttrVersion)
	if expectedVersion != nil && version != *expectedVersion {
		s.mu.Unlock()
		return nil, pkgerrors.NewVersionMismatchError(*expectedVersion)
	}
	next := copyItem(current)
	for name, av := range values {
		if av == nil {
			delete(next, name)
		} else {
			next[name] = av
		}
	}
	next[keys.AttrVersion] = &types.AttributeValueMemberN{Value: strconv.Itoa(version + 1)}
	s.items[key.String()] = next
	listeners := s.emit(events.ChangeModify, next)
	out := copyItem(next)
	s.mu.Unlock()

	notify(listeners)
	if f != nil {
		return nil, f.err
	}
	return out, nil
}

// IncrementCounter evaluates every condition of in against the stored row
// and applies the increment under the store lock.
func (s *Store) IncrementCounter(ctx context.Context, key keys.Key, in ports.CounterIncrement) (ports.CounterResult, error) {
	s.before("IncrementCounter")
	if err := ctx.Err(); err != nil {
		return ports.CounterResult{}, pkgerrors.NewTimeoutError("IncrementCounter").WithCause(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.takeFailure("IncrementCounter")
	if f != nil && !f.afterApply {
		return ports.CounterResult{}, f.err
	}
	current, ok := s.items[key.String()]
	if !ok {
		return ports.CounterResult{}, pkgerrors.NewNotFoundError("item " + key.String())
	}

	tokens := stringSetAttr(current, in.TokenSet)
	if in.Token != "" && contains(tokens, in.Token) {
		return ports.CounterResult{Item: copyItem(current), Replayed: true}, nil
	}
	for _, attr := range in.RequireTrue {
		if b, ok := current[attr].(*types.AttributeValueMemberBOOL); !ok || !b.Value {
			return ports.CounterResult{Item: copyItem(current)}, counterConflict()
		}
	}
	if from := entities.StringAttr(current, in.WindowFrom); in.WindowFrom != "" && from != "" && in.Now < from {
		return ports.CounterResult{Item: copyItem(current)}, counterConflict()
	}
	if until := entities.StringAttr(current, in.WindowUntil); in.WindowUntil != "" && until != "" && in.Now >= until {
		return ports.CounterResult{Item: copyItem(current)}, counterConflict()
	}
	count := numberAttr(current, in.Counter)
	if count >= numberAttr(current, in.Limit) {
		return ports.CounterResult{Item: copyItem(current)}, counterConflict()
	}

	next := copyItem(current)
	next[in.Counter] = &types.AttributeValueMemberN{Value: strconv.Itoa(count + 1)}
	if in.Token != "" {
		next[in.TokenSet] = &types.AttributeValueMemberSS{Value: append(tokens, in.Token)}
	}
	s.items[key.String()] = next
	if f != nil {
		return ports.CounterResult{}, f.err
	}
	return ports.CounterResult{Item: copyItem(next), Applied: true}, nil
}

// ReleaseCounter removes in.Token and decrements the counter when the token
// is still recorded.
func (s *Store) ReleaseCounter(ctx context.Context, key keys.Key, in ports.CounterIncrement) (bool, error) {
	s.before("ReleaseCounter")
	if in.Token == "" {
		return false, pkgerrors.NewValidationError("release needs a token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f := s.takeFailure("ReleaseCounter"); f != nil {
		return false, f.err
	}
	current, ok := s.items[key.String()]
	if !ok {
		return false, pkgerrors.NewNotFoundError("item " + key.String())
	}
	tokens := stringSetAttr(current, in.TokenSet)
	if !contains(tokens, in.Token) {
		return false, nil
	}

	rest := make([]string, 0, len(tokens)-1)
	for _, t := range tokens {
		if t != in.Token {
			rest = append(rest, t)
		}
	}
	next := copyItem(current)
	next[in.Counter] = &types.AttributeValueMemberN{Value: strconv.Itoa(numberAttr(current, in.Counter) - 1)}
	if len(rest) == 0 {
		// an empty string set is not storable
		delete(next, in.TokenSet)
	} else {
		next[in.TokenSet] = &types.AttributeValueMemberSS{Value: rest}
	}
	s.items[key.String()] = next
	return true, nil
}

// emit records a change event and returns the listeners to notify. Must be
// called with the lock held.
func (s *Store) emit(name events.ChangeEventName, item ports.Item) []func() {
	ev, ok, err := stream.FromItem(uuid.NewString(), name, item, time.Now())
	if err != nil || !ok {
		return nil
	}
	s.feed = append(s.feed, ev)
	calls := make([]func(), 0, len(s.listeners))
	for _, l := range s.listeners {
		l := l
		calls = append(calls, func() { l(ev) })
	}
	return calls
}

func notify(calls []func()) {
	for _, c := range calls {
		c()
	}
}

func counterConflict() error {
	return pkgerrors.NewConflictError("counter condition failed")
}

func itemKey(item ports.Item) keys.Key {
	return keys.Key{PK: entities.StringAttr(item, keys.AttrPK), SK: entities.StringAttr(item, keys.AttrSK)}
}

func copyItem(item ports.Item) ports.Item {
	out := make(ports.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func numberAttr(item ports.Item, name string) int {
	if n, ok := item[name].(*types.AttributeValueMemberN); ok {
		v, err := strconv.Atoi(n.Value)
		if err == nil {
			return v
		}
	}
	return 0
}

func stringSetAttr(item ports.Item, name string) []string {
	if ss, ok := item[name].(*types.AttributeValueMemberSS); ok {
		return append([]string(nil), ss.Value...)
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
