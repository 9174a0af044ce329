package orchestrator

import (
	"context"
	"net/http"
	"sync"

	perr "nexusprover/internal/platform/errors"
	"nexusprover/internal/protocol"
)

// ProofTaskResult is one scripted answer for Mock.GetProofTask
type ProofTaskResult struct {
	Task *protocol.Task
	Err  error
}

// Mock is an in-memory Client with scripted responses, used by tests and by
// nothing else. All fields are guarded by one mutex; call records accumulate
// so tests can assert on ordering and arguments
type Mock struct {
	mu sync.Mutex

	Users map[string]string // wallet -> user id
	Nodes map[string]string // node id -> wallet

	// Assigned holds tasks returned (and drained) by GetTasks
	Assigned []protocol.Task

	// ProofTasks is the FIFO script for GetProofTask; when exhausted the
	// mock answers 404
	ProofTasks []ProofTaskResult

	// SubmitErrs is the FIFO script for SubmitProof; when exhausted the
	// mock accepts
	SubmitErrs []error

	// Call records
	ProofTaskReqs []protocol.ProofTaskRequest
	Submissions   []protocol.ProofSubmission
	TasksCalls    int
}

// NewMock returns an empty scripted client
func NewMock() *Mock {
	return &Mock{
		Users: map[string]string{},
		Nodes: map[string]string{},
	}
}

func notFound(msg string) error {
	return perr.Wrap(&HTTPError{Status: http.StatusNotFound, Message: msg, Headers: http.Header{}},
		perr.ErrorCodeUnknown, msg)
}

// GetUser implements Client
func (m *Mock) GetUser(ctx context.Context, walletAddress string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.Users[walletAddress]; ok {
		return id, nil
	}
	return "", notFound("user not found")
}

// RegisterUser implements Client
func (m *Mock) RegisterUser(ctx context.Context, uuid, walletAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Users[walletAddress]; !ok {
		m.Users[walletAddress] = uuid
	}
	return nil
}

// RegisterNode implements Client
func (m *Mock) RegisterNode(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := "node-" + userID
	m.Nodes[id] = userID
	return id, nil
}

// GetNode implements Client
func (m *Mock) GetNode(ctx context.Context, nodeID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.Nodes[nodeID]; ok {
		return w, nil
	}
	return "", notFound("node not found")
}

// GetTasks implements Client; returns and drains the assigned queue
func (m *Mock) GetTasks(ctx context.Context, nodeID string) ([]protocol.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TasksCalls++
	out := m.Assigned
	m.Assigned = nil
	return out, nil
}

// GetProofTask implements Client; pops the next scripted result
func (m *Mock) GetProofTask(ctx context.Context, req *protocol.ProofTaskRequest) (*protocol.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProofTaskReqs = append(m.ProofTaskReqs, *req)
	if len(m.ProofTasks) == 0 {
		return nil, notFound("no tasks available")
	}
	r := m.ProofTasks[0]
	m.ProofTasks = m.ProofTasks[1:]
	return r.Task, r.Err
}

// SubmitProof implements Client; pops the next scripted error (nil = accept)
func (m *Mock) SubmitProof(ctx context.Context, sub *protocol.ProofSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var err error
	if len(m.SubmitErrs) > 0 {
		err = m.SubmitErrs[0]
		m.SubmitErrs = m.SubmitErrs[1:]
	}
	if err == nil {
		m.Submissions = append(m.Submissions, *sub)
	}
	return err
}

// SubmittedIDs returns the task ids of accepted submissions, in order
func (m *Mock) SubmittedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Submissions))
	for i := range m.Submissions {
		out = append(out, m.Submissions[i].TaskID)
	}
	return out
}
