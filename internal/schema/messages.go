package schema

// Messages is the ordered, append-only conversation history.
// It owns typed append methods so callers never construct raw maps.
// Entries are never reordered or removed; new messages go on the tail.
type Messages struct {
	Messages []Message
}

// NewMessages returns a Messages initialised with the given messages.
// Called with no arguments it returns an empty history ready for use.
func NewMessages(msgs ...Message) Messages {
	if len(msgs) == 0 {
		return Messages{Messages: make([]Message, 0)}
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return Messages{Messages: out}
}

// Add appends a message.
func (mh *Messages) Add(m Message) {
	mh.Messages = append(mh.Messages, m)
}

// AddSystem appends a system message.
func (mh *Messages) AddSystem(content string) {
	mh.Add(NewSystemMessage(content))
}

// AddUser appends a user message.
func (mh *Messages) AddUser(content string) {
	mh.Add(NewUserMessage(content))
}

// AddAssistant appends an assistant message with optional tool calls.
func (mh *Messages) AddAssistant(content string, toolCalls []ToolCall) {
	mh.Add(NewAssistantMessage(content, toolCalls))
}

// AddToolResult appends a tool-result message.
func (mh *Messages) AddToolResult(toolCallID, toolName, result string) {
	mh.Add(NewToolResultMessage(toolCallID, toolName, result))
}

// Len returns the number of messages.
func (mh Messages) Len() int { return len(mh.Messages) }

// Last returns the most recent message, or a zero Message when empty.
func (mh *Messages) Last() Message {
	if len(mh.Messages) == 0 {
		return Message{}
	}
	return mh.Messages[len(mh.Messages)-1]
}

// Clone returns a deep copy of mh with an independent backing slice.
func (mh *Messages) Clone() Messages {
	cloned := make([]Message, len(mh.Messages))
	copy(cloned, mh.Messages)
	return Messages{Messages: cloned}
}
