// Package usage extracts token-usage events from Claude Code session
// logs. Session logs are append-only JSONL files, one JSON record per
// line; only assistant records carrying a usage payload become events.
package usage

// Record types observed in session logs.
const (
	TypeUser      = "user"
	TypeAssistant = "assistant"
	TypeSummary   = "summary"
)

// Event is one usage-bearing record, shaped for the collector's
// /api/usage contract. Timestamp is passed through verbatim from the
// source record (ISO 8601).
type Event struct {
	SessionID           string   `json:"sessionId"`
	Project             string   `json:"project"`
	Timestamp           string   `json:"timestamp"`
	Type                string   `json:"type"`
	Model               string   `json:"model,omitempty"`
	InputTokens         int64    `json:"inputTokens"`
	OutputTokens        int64    `json:"outputTokens"`
	CacheCreationTokens int64    `json:"cacheCreationTokens"`
	CacheReadTokens     int64    `json:"cacheReadTokens"`
	CostUSD             *float64 `json:"costUSD,omitempty"`
}

// logLine mirrors the session log record fields the agent cares about.
// Unknown fields are ignored.
type logLine struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Project   string      `json:"project"`
	Timestamp string      `json:"timestamp"`
	CostUSD   *float64    `json:"costUSD"`
	Message   *logMessage `json:"message"`
}

type logMessage struct {
	Model string    `json:"model"`
	Usage *logUsage `json:"usage"`
}

type logUsage struct {
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_input_tokens"`
	CacheReadTokens     int64 `json:"cache_read_input_tokens"`
}
