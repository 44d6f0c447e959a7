package store

// MaxNodeLevel is the deepest level a node may sit at.
const MaxNodeLevel = 25

// Conversation is a user-owned tree of nodes rooted at one initial topic.
type Conversation struct {
	ID        int32
	UID       string
	CreatorID int32
	RootTopic string
	CreatedTs int64

	// NodeCount is only populated by ListConversations.
	NodeCount int32
}

// Node is a single topic or subtopic inside a conversation.
type Node struct {
	ID             int32
	UID            string
	ConversationID int32
	ParentID       *int32 // nil for the root
	Content        string
	Level          int32
	Steps          []string // nil until steps are generated
	Analysis       *string
	Expanded       bool
	CreatedTs      int64
}

// FindConversation filters for ListConversations.
type FindConversation struct {
	ID        *int32
	UID       *string
	CreatorID *int32
}

// CreateConversation creates a conversation together with its root node.
type CreateConversation struct {
	UID         string
	CreatorID   int32
	RootTopic   string
	RootNodeUID string
	// AuditLog is committed in the same transaction.
	AuditLog *AuditLog
}

// DeleteConversation removes a conversation and every node under it.
type DeleteConversation struct {
	ID       int32
	AuditLog *AuditLog
}

// FindNode filters for ListNodes.
type FindNode struct {
	ID             *int32
	UID            *string
	ConversationID *int32
	ParentID       *int32
	// CreatorID restricts results to conversations owned by the user.
	CreatorID *int32

	HasSteps    bool
	HasAnalysis bool
}

// ExpandNode attaches children to a parent that has never been expanded.
type ExpandNode struct {
	ParentID       int32
	ConversationID int32
	// Children carry UID, Content and Level; IDs and timestamps are filled in.
	Children []*Node
	AuditLog *AuditLog
}

// UpdateNode carries the generated fields accepted by UpdateNode.
type UpdateNode struct {
	ID       int32
	Steps    *[]string
	Analysis *string
	AuditLog *AuditLog
}
