package mindmap

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/llamamind/mindmap/store"
)

// MaxTopicLength is the longest root topic accepted, in characters.
const MaxTopicLength = 500

// Engine runs tree operations on behalf of an already verified user.
type Engine struct {
	store     *store.Store
	generator Generator
}

func NewEngine(store *store.Store, generator Generator) *Engine {
	return &Engine{
		store:     store,
		generator: generator,
	}
}

// Stats summarizes what a user has built.
type Stats struct {
	Conversations     int64 `json:"totalConversations"`
	Nodes             int64 `json:"totalNodes"`
	NodesWithSteps    int64 `json:"nodesWithSteps"`
	NodesWithAnalysis int64 `json:"nodesWithAnalysis"`
}

// ValidateTopic trims topic and checks it is non-empty and not too long.
func ValidateTopic(topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", errors.Wrap(ErrValidation, "topic is required")
	}
	if utf8.RuneCountInString(topic) > MaxTopicLength {
		return "", errors.Wrapf(ErrValidation, "topic too long (max %d characters)", MaxTopicLength)
	}
	return topic, nil
}

func (e *Engine) CreateRoot(ctx context.Context, userID int32, topic string) (*store.Conversation, error) {
	topic, err := ValidateTopic(topic)
	if err != nil {
		return nil, err
	}
	uid := shortuuid.New()
	conversation, err := e.store.CreateConversation(ctx, &store.CreateConversation{
		UID:         uid,
		CreatorID:   userID,
		RootTopic:   topic,
		RootNodeUID: shortuuid.New(),
		AuditLog: &store.AuditLog{
			UserID:    userID,
			EventType: store.AuditConversationCreated,
			EventData: map[string]any{"conversation_uid": uid, "topic": topic},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}
	slog.Info("conversation created", "uid", conversation.UID, "user", userID)
	return conversation, nil
}

func (e *Engine) ListConversations(ctx context.Context, userID int32) ([]*store.Conversation, error) {
	list, err := e.store.ListConversations(ctx, &store.FindConversation{CreatorID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	return list, nil
}

func (e *Engine) getConversation(ctx context.Context, userID int32, uid string) (*store.Conversation, error) {
	conversation, err := e.store.GetConversation(ctx, &store.FindConversation{UID: &uid})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get conversation")
	}
	if conversation == nil || conversation.CreatorID != userID {
		return nil, errors.Wrapf(ErrNotFound, "conversation %s", uid)
	}
	return conversation, nil
}

// GetNode returns the node if it belongs to a conversation owned by userID.
func (e *Engine) GetNode(ctx context.Context, userID int32, uid string) (*store.Node, error) {
	node, err := e.store.GetNode(ctx, &store.FindNode{UID: &uid, CreatorID: &userID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get node")
	}
	if node == nil {
		return nil, errors.Wrapf(ErrNotFound, "node %s", uid)
	}
	return node, nil
}

// ExpandNode generates five subtopics and stores them as children. A node
// can be expanded at most once.
func (e *Engine) ExpandNode(ctx context.Context, userID int32, uid string) ([]*store.Node, error) {
	node, err := e.GetNode(ctx, userID, uid)
	if err != nil {
		return nil, err
	}
	if node.Expanded {
		return nil, errors.Wrapf(ErrConflict, "node %s", uid)
	}
	existing, err := e.store.CountNodes(ctx, &store.FindNode{ParentID: &node.ID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count children")
	}
	if existing > 0 {
		return nil, errors.Wrapf(ErrConflict, "node %s", uid)
	}
	if node.Level >= store.MaxNodeLevel {
		return nil, errors.Wrapf(ErrLimitExceeded, "node %s is at level %d", uid, node.Level)
	}

	subtopics, err := e.generator.Subtopics(ctx, node.Content)
	if err != nil {
		return nil, err
	}

	children := make([]*store.Node, 0, len(subtopics))
	for _, subtopic := range subtopics {
		children = append(children, &store.Node{
			UID:     shortuuid.New(),
			Content: subtopic,
			Level:   node.Level + 1,
		})
	}
	created, err := e.store.ExpandNode(ctx, &store.ExpandNode{
		ParentID:       node.ID,
		ConversationID: node.ConversationID,
		Children:       children,
		AuditLog: &store.AuditLog{
			UserID:    userID,
			EventType: store.AuditNodeExpanded,
			EventData: map[string]any{"node_uid": node.UID, "topic": node.Content, "children": len(children)},
		},
	})
	if err != nil {
		if errors.Is(err, store.ErrNodeExpanded) {
			return nil, errors.Wrapf(ErrConflict, "node %s", uid)
		}
		if errors.Is(err, store.ErrNodeNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "node %s", uid)
		}
		return nil, errors.Wrap(err, "failed to store children")
	}
	slog.Info("node expanded", "node", node.UID, "level", node.Level, "children", len(created))
	return created, nil
}

// GenerateSteps replaces the node's steps with a freshly generated list.
func (e *Engine) GenerateSteps(ctx context.Context, userID int32, uid string) ([]string, error) {
	node, err := e.GetNode(ctx, userID, uid)
	if err != nil {
		return nil, err
	}
	steps, err := e.generator.Steps(ctx, node.Content)
	if err != nil {
		return nil, err
	}
	if _, err := e.store.UpdateNode(ctx, &store.UpdateNode{
		ID:    node.ID,
		Steps: &steps,
		AuditLog: &store.AuditLog{
			UserID:    userID,
			EventType: store.AuditStepsGenerated,
			EventData: map[string]any{"node_uid": node.UID, "topic": node.Content},
		},
	}); err != nil {
		if errors.Is(err, store.ErrNodeNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "node %s", uid)
		}
		return nil, errors.Wrap(err, "failed to store steps")
	}
	return steps, nil
}

// AnalyzeNode replaces the node's analysis with a freshly generated one.
func (e *Engine) AnalyzeNode(ctx context.Context, userID int32, uid string) (string, error) {
	node, err := e.GetNode(ctx, userID, uid)
	if err != nil {
		return "", err
	}
	analysis, err := e.generator.Analysis(ctx, node.Content)
	if err != nil {
		return "", err
	}
	if _, err := e.store.UpdateNode(ctx, &store.UpdateNode{
		ID:       node.ID,
		Analysis: &analysis,
		AuditLog: &store.AuditLog{
			UserID:    userID,
			EventType: store.AuditAnalysisGenerated,
			EventData: map[string]any{"node_uid": node.UID, "topic": node.Content},
		},
	}); err != nil {
		if errors.Is(err, store.ErrNodeNotFound) {
			return "", errors.Wrapf(ErrNotFound, "node %s", uid)
		}
		return "", errors.Wrap(err, "failed to store analysis")
	}
	return analysis, nil
}

func (e *Engine) GetTree(ctx context.Context, userID int32, conversationUID string) (*Tree, error) {
	conversation, err := e.getConversation(ctx, userID, conversationUID)
	if err != nil {
		return nil, err
	}
	nodes, err := e.store.ListNodes(ctx, &store.FindNode{ConversationID: &conversation.ID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list nodes")
	}
	conversation.NodeCount = int32(len(nodes))
	root, err := buildTree(nodes)
	if err != nil {
		slog.Error("malformed tree", "conversation", conversation.UID, "err", err)
		return nil, err
	}
	return &Tree{Conversation: conversation, Root: root}, nil
}

func (e *Engine) DeleteConversation(ctx context.Context, userID int32, conversationUID string) error {
	conversation, err := e.getConversation(ctx, userID, conversationUID)
	if err != nil {
		return err
	}
	if err := e.store.DeleteConversation(ctx, &store.DeleteConversation{
		ID: conversation.ID,
		AuditLog: &store.AuditLog{
			UserID:    userID,
			EventType: store.AuditConversationDeleted,
			EventData: map[string]any{"conversation_uid": conversation.UID, "topic": conversation.RootTopic},
		},
	}); err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	slog.Info("conversation deleted", "uid", conversation.UID, "user", userID)
	return nil
}

func (e *Engine) UserStats(ctx context.Context, userID int32) (*Stats, error) {
	stats := &Stats{}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.Conversations, err = e.store.CountConversations(ctx, &store.FindConversation{CreatorID: &userID})
		return err
	})
	g.Go(func() (err error) {
		stats.Nodes, err = e.store.CountNodes(ctx, &store.FindNode{CreatorID: &userID})
		return err
	})
	g.Go(func() (err error) {
		stats.NodesWithSteps, err = e.store.CountNodes(ctx, &store.FindNode{CreatorID: &userID, HasSteps: true})
		return err
	})
	g.Go(func() (err error) {
		stats.NodesWithAnalysis, err = e.store.CountNodes(ctx, &store.FindNode{CreatorID: &userID, HasAnalysis: true})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "failed to count user stats")
	}
	return stats, nil
}
