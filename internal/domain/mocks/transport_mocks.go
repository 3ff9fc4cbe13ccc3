package mocks

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/user/logquarry/internal/domain"
)

// MockTransport is a scriptable implementation of domain.Transport for
// testing. Content backs both Open and OpenRange.
type MockTransport struct {
	mu           sync.Mutex
	File         domain.RemoteFile
	Content      []byte
	ResolveErr   error
	ResolveErrs  []error // consumed one per call before falling back to ResolveErr
	OpenErr      error
	RangeErrs    map[int64]error // keyed by offset
	ResolveCalls int
	OpenCalls    int
	RangeCalls   int
}

func (m *MockTransport) Resolve(ctx context.Context, hostID, logItemID string) (domain.RemoteFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResolveCalls++
	if len(m.ResolveErrs) > 0 {
		err := m.ResolveErrs[0]
		m.ResolveErrs = m.ResolveErrs[1:]
		if err != nil {
			return domain.RemoteFile{}, err
		}
		return m.resolvedFile(), nil
	}
	if m.ResolveErr != nil {
		return domain.RemoteFile{}, m.ResolveErr
	}
	return m.resolvedFile(), nil
}

func (m *MockTransport) resolvedFile() domain.RemoteFile {
	f := m.File
	if f.Size == 0 {
		f.Size = int64(len(m.Content))
	}
	if f.Path == "" {
		f.Path = "remote/mock.log"
	}
	return f
}

func (m *MockTransport) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OpenCalls++
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	return io.NopCloser(bytes.NewReader(m.Content)), nil
}

func (m *MockTransport) OpenRange(ctx context.Context, path string, offset, length int64) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RangeCalls++
	if err := m.RangeErrs[offset]; err != nil {
		return nil, err
	}
	end := offset + length
	if end > int64(len(m.Content)) {
		end = int64(len(m.Content))
	}
	if offset > end {
		offset = end
	}
	return io.NopCloser(bytes.NewReader(m.Content[offset:end])), nil
}

// MockRegistry is an in-memory domain.FileRegistry recording calls.
type MockRegistry struct {
	mu         sync.Mutex
	Registered map[string][]string
	Released   []string
}

func (m *MockRegistry) RegisterLocalFile(owner, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Registered == nil {
		m.Registered = make(map[string][]string)
	}
	m.Registered[owner] = append(m.Registered[owner], path)
}

func (m *MockRegistry) ReleaseLocalFile(owner, path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Released = append(m.Released, path)
	paths := m.Registered[owner]
	for i, p := range paths {
		if p == path {
			m.Registered[owner] = append(paths[:i:i], paths[i+1:]...)
			return true
		}
	}
	return false
}

func (m *MockRegistry) OwnedFiles(owner string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Registered[owner]...)
}

// MockSink records entry-batch and status notifications.
type MockSink struct {
	mu       sync.Mutex
	Batches  []int
	Statuses []domain.SessionState
}

func (m *MockSink) EntryBatch(sourceLabel string, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Batches = append(m.Batches, count)
}

func (m *MockSink) SessionStatus(sourceLabel string, state domain.SessionState, detail string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses = append(m.Statuses, state)
}

// BatchCount returns the number of batch notifications received.
func (m *MockSink) BatchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Batches)
}
