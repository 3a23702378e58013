package model

// Live protocol message types, shared by the server bridge and the
// dashboard client. Every wire message carries a type discriminator.
const (
	LiveConnected   = "connected"   // server -> client, carries a reconnect token
	LiveReconnected = "reconnected" // server -> client, confirms session resumption
	LivePing        = "ping"        // client -> server heartbeat
	LivePong        = "pong"        // server -> client, never forwarded to handlers
	LiveReconnect   = "reconnect"   // client -> server, presents a reconnect token
	LiveProgress    = "progress"    // general job progress update
	LiveUpload      = "upload_progress"
	LiveProcessing  = "processing_progress" // keyed by request id
	LiveComplete    = "complete"
	LiveError       = "error"
)

// Completion kinds. A complete message always states which pipeline
// finished instead of leaving it to be inferred from optional fields.
const (
	CompletionUpload   = "upload"
	CompletionDownload = "download"
)

// LiveMessage is the JSON envelope of the live subscription protocol.
// Fields beyond Type are populated per message type.
type LiveMessage struct {
	Type       string `json:"type"`
	Token      string `json:"token,omitempty"`
	JobID      string `json:"job_id,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Progress   int    `json:"progress,omitempty"`
	Message    string `json:"message,omitempty"`
	Kind       string `json:"kind,omitempty"` // completion kind: upload or download
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
}
