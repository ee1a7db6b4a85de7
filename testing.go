package credx

// This file provides in-memory collaborators for tests and examples.

import (
	"context"
	"crypto/rand"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory RecordStore, AccessKeyWriter, SecretWriter and
// AccessKeyRotator.
type MemoryStore struct {
	mu         sync.RWMutex
	secrets    []SecretRecord
	accessKeys map[string]AccessKeyRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accessKeys: make(map[string]AccessKeyRecord)}
}

func (s *MemoryStore) FindSecrets(ctx context.Context, scope Scope) ([]SecretRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SecretRecord
	for _, rec := range s.secrets {
		if rec.Scope() == scope {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) LoadAccessKey(ctx context.Context, ref string) (*AccessKeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.accessKeys[ref]
	if !ok {
		return nil, fmt.Errorf("%w: access key %q", ErrRecordNotFound, ref)
	}
	return &rec, nil
}

func (s *MemoryStore) SaveAccessKey(ctx context.Context, rec *AccessKeyRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.accessKeys[stored.ID] = stored
	return stored.ID, nil
}

func (s *MemoryStore) SaveSecret(ctx context.Context, rec *SecretRecord) (string, error) {
	if err := rec.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.secrets {
		if existing.Scope() == rec.Scope() {
			return "", fmt.Errorf("%w: secret %s already exists", ErrInvalidConfiguration, rec.Scope())
		}
	}
	stored := *rec
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	s.secrets = append(s.secrets, stored)
	return stored.ID, nil
}

func (s *MemoryStore) ListAccessKeys(ctx context.Context) ([]AccessKeyRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AccessKeyRecord, 0, len(s.accessKeys))
	for _, rec := range s.accessKeys {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ReplaceAccessKeys(ctx context.Context, recs []AccessKeyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		if _, ok := s.accessKeys[rec.ID]; !ok {
			return fmt.Errorf("%w: access key %q", ErrRecordNotFound, rec.ID)
		}
		if err := rec.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
	}
	for _, rec := range recs {
		s.accessKeys[rec.ID] = rec
	}
	return nil
}

// PutSecret inserts rec without any check. Tests use it to seed duplicate or
// inconsistent rows that SaveSecret would refuse.
func (s *MemoryStore) PutSecret(rec SecretRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets = append(s.secrets, rec)
}

// PutAccessKey inserts rec under ref without validation.
func (s *MemoryStore) PutAccessKey(ref string, rec AccessKeyRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = ref
	s.accessKeys[ref] = rec
}

// StubHandler produces the response for one stubbed call.
type StubHandler func(req *Request) (*Response, error)

// StubTransport answers calls from canned handlers keyed by service and
// action, and records every request it receives.
type StubTransport struct {
	mu       sync.Mutex
	handlers map[string]StubHandler
	calls    []Request
}

func NewStubTransport() *StubTransport {
	return &StubTransport{handlers: make(map[string]StubHandler)}
}

// Respond registers a fixed response for service and action.
func (t *StubTransport) Respond(service, action string, statusCode int, body string) *StubTransport {
	return t.Handle(service, action, func(*Request) (*Response, error) {
		return &Response{StatusCode: statusCode, Body: []byte(body)}, nil
	})
}

// Handle registers a handler for service and action.
func (t *StubTransport) Handle(service, action string, h StubHandler) *StubTransport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[service+":"+action] = h
	return t
}

func (t *StubTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	t.mu.Lock()
	call := *req
	call.Payload = append([]byte(nil), req.Payload...)
	t.calls = append(t.calls, call)
	h, ok := t.handlers[req.Service+":"+req.Action]
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("stub transport: no handler for %s:%s", req.Service, req.Action)
	}
	return h(req)
}

// Calls returns every recorded request in order.
func (t *StubTransport) Calls() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Request(nil), t.calls...)
}

// CallsFor returns the recorded requests for one action.
func (t *StubTransport) CallsFor(action string) []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []Request
	for _, c := range t.calls {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// NewTestMasterKey returns a random 32 byte master key.
func NewTestMasterKey() MasterKey {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("generate test master key: %v", err))
	}
	key, err := NewMasterKey(b)
	if err != nil {
		panic(err)
	}
	return key
}

// NewTestCipherService returns a cipher service under a fresh random master key.
func NewTestCipherService() *CipherService {
	c, err := NewCipherService(NewTestMasterKey())
	if err != nil {
		panic(err)
	}
	return c
}
