package protocol

// Message shapes for the /v3 orchestrator endpoints. Every message has a
// Marshal producing the length-prefixed body and a matching Decode

// GetUserResponse is returned by GET /v3/users/{wallet}
type GetUserResponse struct {
	UserID string
}

// Marshal encodes the response body
func (m *GetUserResponse) Marshal() []byte {
	e := NewEncoder()
	e.PutString(m.UserID)
	return e.Bytes()
}

// DecodeGetUserResponse parses a GetUserResponse body
func DecodeGetUserResponse(b []byte) (*GetUserResponse, error) {
	d := NewDecoder(b)
	m := &GetUserResponse{UserID: d.TakeString()}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterUserRequest is the body of POST /v3/users
type RegisterUserRequest struct {
	UUID          string
	WalletAddress string
}

// Marshal encodes the request body
func (m *RegisterUserRequest) Marshal() []byte {
	e := NewEncoder()
	e.PutString(m.UUID)
	e.PutString(m.WalletAddress)
	return e.Bytes()
}

// DecodeRegisterUserRequest parses a RegisterUserRequest body
func DecodeRegisterUserRequest(b []byte) (*RegisterUserRequest, error) {
	d := NewDecoder(b)
	m := &RegisterUserRequest{UUID: d.TakeString(), WalletAddress: d.TakeString()}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterNodeRequest is the body of POST /v3/nodes
type RegisterNodeRequest struct {
	NodeType NodeType
	UserID   string
}

// Marshal encodes the request body
func (m *RegisterNodeRequest) Marshal() []byte {
	e := NewEncoder()
	e.U8(uint8(m.NodeType))
	e.PutString(m.UserID)
	return e.Bytes()
}

// DecodeRegisterNodeRequest parses a RegisterNodeRequest body
func DecodeRegisterNodeRequest(b []byte) (*RegisterNodeRequest, error) {
	d := NewDecoder(b)
	m := &RegisterNodeRequest{NodeType: NodeType(d.U8()), UserID: d.TakeString()}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// RegisterNodeResponse is returned by POST /v3/nodes
type RegisterNodeResponse struct {
	NodeID string
}

// Marshal encodes the response body
func (m *RegisterNodeResponse) Marshal() []byte {
	e := NewEncoder()
	e.PutString(m.NodeID)
	return e.Bytes()
}

// DecodeRegisterNodeResponse parses a RegisterNodeResponse body
func DecodeRegisterNodeResponse(b []byte) (*RegisterNodeResponse, error) {
	d := NewDecoder(b)
	m := &RegisterNodeResponse{NodeID: d.TakeString()}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// GetNodeResponse is returned by GET /v3/nodes/{node_id}
type GetNodeResponse struct {
	WalletAddress string
}

// Marshal encodes the response body
func (m *GetNodeResponse) Marshal() []byte {
	e := NewEncoder()
	e.PutString(m.WalletAddress)
	return e.Bytes()
}

// DecodeGetNodeResponse parses a GetNodeResponse body
func DecodeGetNodeResponse(b []byte) (*GetNodeResponse, error) {
	d := NewDecoder(b)
	m := &GetNodeResponse{WalletAddress: d.TakeString()}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// appendTask encodes a Task in place
func appendTask(e *Encoder, t *Task) {
	e.PutString(t.TaskID)
	e.PutString(t.ProgramID)
	e.List(len(t.PublicInputs))
	for _, in := range t.PublicInputs {
		e.PutBytes(in)
	}
	e.U8(uint8(t.Type))
	e.U8(uint8(t.Difficulty))
}

// readTask decodes a Task in place
func readTask(d *Decoder) Task {
	t := Task{
		TaskID:    d.TakeString(),
		ProgramID: d.TakeString(),
	}
	n := d.Len()
	for i := 0; i < n; i++ {
		t.PublicInputs = append(t.PublicInputs, d.TakeBytes())
	}
	t.Type = TaskType(d.U8())
	t.Difficulty = Difficulty(d.U8())
	return t
}

// MarshalTask encodes a single Task body (POST /v3/tasks response)
func MarshalTask(t *Task) []byte {
	e := NewEncoder()
	appendTask(e, t)
	return e.Bytes()
}

// DecodeTask parses a single Task body
func DecodeTask(b []byte) (*Task, error) {
	d := NewDecoder(b)
	t := readTask(d)
	if err := d.Err(); err != nil {
		return nil, err
	}
	return &t, nil
}

// TaskListResponse is returned by GET /v3/tasks/{node_id}
type TaskListResponse struct {
	Tasks []Task
}

// Marshal encodes the response body
func (m *TaskListResponse) Marshal() []byte {
	e := NewEncoder()
	e.List(len(m.Tasks))
	for i := range m.Tasks {
		appendTask(e, &m.Tasks[i])
	}
	return e.Bytes()
}

// DecodeTaskListResponse parses a TaskListResponse body
func DecodeTaskListResponse(b []byte) (*TaskListResponse, error) {
	d := NewDecoder(b)
	m := &TaskListResponse{}
	n := d.Len()
	for i := 0; i < n; i++ {
		m.Tasks = append(m.Tasks, readTask(d))
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// ProofTaskRequest is the body of POST /v3/tasks. Location carries the
// 2-letter country code used for server-side routing; nothing finer grained
// is ever sent
type ProofTaskRequest struct {
	NodeID           string
	NodeType         NodeType
	Ed25519PublicKey []byte
	MaxDifficulty    Difficulty
	Location         string
}

// Marshal encodes the request body
func (m *ProofTaskRequest) Marshal() []byte {
	e := NewEncoder()
	e.PutString(m.NodeID)
	e.U8(uint8(m.NodeType))
	e.PutBytes(m.Ed25519PublicKey)
	e.U8(uint8(m.MaxDifficulty))
	e.PutString(m.Location)
	return e.Bytes()
}

// DecodeProofTaskRequest parses a ProofTaskRequest body
func DecodeProofTaskRequest(b []byte) (*ProofTaskRequest, error) {
	d := NewDecoder(b)
	m := &ProofTaskRequest{
		NodeID:           d.TakeString(),
		NodeType:         NodeType(d.U8()),
		Ed25519PublicKey: d.TakeBytes(),
		MaxDifficulty:    Difficulty(d.U8()),
		Location:         d.TakeString(),
	}
	if err := d.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// ProofSubmission is the body of POST /v3/tasks/submit.
// Proof is the legacy scalar blob and Proofs the list form; both are sent
// while the server transitions between the two
type ProofSubmission struct {
	TaskID                string
	CombinedHash          string
	Type                  TaskType
	Proof                 []byte
	Proofs                [][]byte
	IndividualProofHashes []string
	Ed25519PublicKey      []byte
	Signature             []byte
}

// Marshal encodes the submission body
func (m *ProofSubmission) Marshal() []byte {
	e := NewEncoder()
	e.PutString(m.TaskID)
	e.PutString(m.CombinedHash)
	e.U8(uint8(m.Type))
	e.PutBytes(m.Proof)
	e.List(len(m.Proofs))
	for _, p := range m.Proofs {
		e.PutBytes(p)
	}
	e.List(len(m.IndividualProofHashes))
	for _, h := range m.IndividualProofHashes {
		e.PutString(h)
	}
	e.PutBytes(m.Ed25519PublicKey)
	e.PutBytes(m.Signature)
	return e.Bytes()
}

// DecodeProofSubmission parses a ProofSubmission body
func DecodeProofSubmission(b []byte) (*ProofSubmission, error) {
	d := NewDecoder(b)
	m := &ProofSubmission{
		TaskID:       d.TakeString(),
		CombinedHash: d.TakeString(),
		Type:         TaskType(d.U8()),
		Proof:        d.TakeBytes(),
	}
	n := d.Len()
	for i := 0; i < n; i++ {
		m.Proofs = append(m.Proofs, d.TakeBytes())
	}
	n = d.Len()
	for i := 0; i < n; i++ {
		m.IndividualProofHashes = append(m.IndividualProofHashes, d.TakeString())
	}
	m.Ed25519PublicKey = d.TakeBytes()
	m.Signature = d.TakeBytes()
	if err := d.Err(); err != nil {
		return nil, err
	}
	return m, nil
}
