package mindmap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llamamind/mindmap/plugin/llm"
	"github.com/llamamind/mindmap/store"
	teststore "github.com/llamamind/mindmap/store/test"
)

type fakeGenerator struct {
	mu    sync.Mutex
	calls int
	err   error
	// round changes the generated text between calls.
	round int
	// during runs while the generator is "waiting" on the model.
	during func()
}

func (g *fakeGenerator) next() (int, error) {
	g.mu.Lock()
	g.calls++
	g.round++
	round, err, during := g.round, g.err, g.during
	g.mu.Unlock()
	if during != nil {
		during()
	}
	return round, err
}

func (g *fakeGenerator) Subtopics(_ context.Context, topic string) ([]string, error) {
	round, err := g.next()
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, ItemCount)
	for i := 1; i <= ItemCount; i++ {
		items = append(items, fmt.Sprintf("%s / sub %d.%d", topic, round, i))
	}
	return items, nil
}

func (g *fakeGenerator) Steps(_ context.Context, topic string) ([]string, error) {
	round, err := g.next()
	if err != nil {
		return nil, err
	}
	items := make([]string, 0, ItemCount)
	for i := 1; i <= ItemCount; i++ {
		items = append(items, fmt.Sprintf("step %d.%d for %s", round, i, topic))
	}
	return items, nil
}

func (g *fakeGenerator) Analysis(_ context.Context, topic string) (string, error) {
	round, err := g.next()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("analysis %d of %s", round, topic), nil
}

func newTestEngine(t *testing.T) (*Engine, *store.Store, *fakeGenerator) {
	t.Helper()
	ctx := context.Background()
	ts := teststore.NewTestingStore(ctx, t)
	generator := &fakeGenerator{}
	return NewEngine(ts, generator), ts, generator
}

func createUser(t *testing.T, ts *store.Store, username string) *store.User {
	t.Helper()
	user, err := ts.CreateUser(context.Background(), &store.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
		Role:         store.RoleUser,
	})
	require.NoError(t, err)
	return user
}

func TestCreateRootValidation(t *testing.T) {
	engine, ts, _ := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")

	for _, topic := range []string{"", "   ", strings.Repeat("x", MaxTopicLength+1)} {
		_, err := engine.CreateRoot(ctx, user.ID, topic)
		require.True(t, errors.Is(err, ErrValidation), "topic %q", topic)
	}

	conversation, err := engine.CreateRoot(ctx, user.ID, strings.Repeat("é", MaxTopicLength))
	require.NoError(t, err)
	require.NotEmpty(t, conversation.UID)
}

func TestCreateRootRoundTrip(t *testing.T) {
	engine, ts, _ := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")

	conversation, err := engine.CreateRoot(ctx, user.ID, "  Plan a trip  ")
	require.NoError(t, err)
	assert.Equal(t, "Plan a trip", conversation.RootTopic)

	tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	assert.Equal(t, int32(1), tree.Conversation.NodeCount)
	assert.Equal(t, int32(0), tree.Root.Node.Level)
	assert.Equal(t, "Plan a trip", tree.Root.Node.Content)
	assert.Empty(t, tree.Root.Children)

	logs, err := ts.ListAuditLogs(ctx, &store.FindAuditLog{UserID: &user.ID})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, store.AuditConversationCreated, logs[0].EventType)
	assert.Equal(t, conversation.UID, logs[0].EventData["conversation_uid"])
}

func TestExpandNode(t *testing.T) {
	engine, ts, generator := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")
	conversation, err := engine.CreateRoot(ctx, user.ID, "Learn Go")
	require.NoError(t, err)
	tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)
	rootUID := tree.Root.Node.UID

	children, err := engine.ExpandNode(ctx, user.ID, rootUID)
	require.NoError(t, err)
	require.Len(t, children, ItemCount)
	for i, child := range children {
		assert.Equal(t, int32(1), child.Level)
		assert.Equal(t, fmt.Sprintf("Learn Go / sub 1.%d", i+1), child.Content)
	}

	_, err = engine.ExpandNode(ctx, user.ID, rootUID)
	require.True(t, errors.Is(err, ErrConflict))
	assert.Equal(t, 1, generator.calls)

	tree, err = engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)
	require.Len(t, tree.Root.Children, ItemCount)
	for i, child := range tree.Root.Children {
		assert.Equal(t, children[i].UID, child.Node.UID)
		assert.Equal(t, tree.Root.Node.Level+1, child.Node.Level)
	}
	assert.True(t, tree.Root.Node.Expanded)
}

func TestExpandNodeGatewayFailurePersistsNothing(t *testing.T) {
	engine, ts, generator := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")
	conversation, err := engine.CreateRoot(ctx, user.ID, "Learn Go")
	require.NoError(t, err)
	tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)

	generator.err = &llm.Error{Kind: llm.KindAuthentication, StatusCode: 401, Attempts: 1, Err: llm.ErrAuthentication}
	_, err = engine.ExpandNode(ctx, user.ID, tree.Root.Node.UID)
	require.True(t, errors.Is(err, llm.ErrAuthentication))

	count, err := ts.CountNodes(ctx, &store.FindNode{ConversationID: &tree.Conversation.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	node, err := engine.GetNode(ctx, user.ID, tree.Root.Node.UID)
	require.NoError(t, err)
	assert.False(t, node.Expanded)

	// A later attempt is still allowed.
	generator.err = nil
	_, err = engine.ExpandNode(ctx, user.ID, tree.Root.Node.UID)
	require.NoError(t, err)
}

func TestExpandNodeDepthLimit(t *testing.T) {
	engine, ts, _ := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")
	conversation, err := engine.CreateRoot(ctx, user.ID, "Deep")
	require.NoError(t, err)
	tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)

	uid := tree.Root.Node.UID
	for level := 0; level < store.MaxNodeLevel; level++ {
		children, err := engine.ExpandNode(ctx, user.ID, uid)
		require.NoError(t, err, "level %d", level)
		uid = children[0].UID
	}
	deepest, err := engine.GetNode(ctx, user.ID, uid)
	require.NoError(t, err)
	require.Equal(t, int32(store.MaxNodeLevel), deepest.Level)

	_, err = engine.ExpandNode(ctx, user.ID, uid)
	require.True(t, errors.Is(err, ErrLimitExceeded))

	tree, err = engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)
	assert.Equal(t, int32(1+ItemCount*store.MaxNodeLevel), tree.Conversation.NodeCount)
}

func TestExpandNodeConcurrently(t *testing.T) {
	engine, ts, _ := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")
	conversation, err := engine.CreateRoot(ctx, user.ID, "Race")
	require.NoError(t, err)
	tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)

	const workers = 4
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.ExpandNode(ctx, user.ID, tree.Root.Node.UID)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, errors.Is(err, ErrConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)

	tree, err = engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)
	assert.Len(t, tree.Root.Children, ItemCount)
}

func TestOwnership(t *testing.T) {
	engine, ts, generator := newTestEngine(t)
	ctx := context.Background()
	alice := createUser(t, ts, "alice")
	bob := createUser(t, ts, "bob")
	conversation, err := engine.CreateRoot(ctx, alice.ID, "Secret plans")
	require.NoError(t, err)
	tree, err := engine.GetTree(ctx, alice.ID, conversation.UID)
	require.NoError(t, err)
	rootUID := tree.Root.Node.UID

	_, err = engine.GetTree(ctx, bob.ID, conversation.UID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = engine.ExpandNode(ctx, bob.ID, rootUID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = engine.GenerateSteps(ctx, bob.ID, rootUID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = engine.AnalyzeNode(ctx, bob.ID, rootUID)
	assert.True(t, errors.Is(err, ErrNotFound))
	err = engine.DeleteConversation(ctx, bob.ID, conversation.UID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = engine.ExpandNode(ctx, alice.ID, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Zero(t, generator.calls)

	list, err := engine.ListConversations(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGenerateStepsOverwrites(t *testing.T) {
	engine, ts, _ := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")
	conversation, err := engine.CreateRoot(ctx, user.ID, "Bake bread")
	require.NoError(t, err)
	tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)
	uid := tree.Root.Node.UID

	first, err := engine.GenerateSteps(ctx, user.ID, uid)
	require.NoError(t, err)
	require.Len(t, first, ItemCount)
	second, err := engine.GenerateSteps(ctx, user.ID, uid)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	node, err := engine.GetNode(ctx, user.ID, uid)
	require.NoError(t, err)
	assert.Equal(t, second, node.Steps)

	eventType := store.AuditStepsGenerated
	logs, err := ts.ListAuditLogs(ctx, &store.FindAuditLog{EventType: &eventType})
	require.NoError(t, err)
	assert.Len(t, logs, 2)
}

func TestAnalyzeNode(t *testing.T) {
	engine, ts, generator := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")
	conversation, err := engine.CreateRoot(ctx, user.ID, "Run a marathon")
	require.NoError(t, err)
	tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)
	uid := tree.Root.Node.UID

	analysis, err := engine.AnalyzeNode(ctx, user.ID, uid)
	require.NoError(t, err)
	assert.Equal(t, "analysis 1 of Run a marathon", analysis)

	generator.err = &llm.Error{Kind: llm.KindUpstream, Attempts: 3, Err: errors.New("timeout")}
	_, err = engine.AnalyzeNode(ctx, user.ID, uid)
	require.True(t, errors.Is(err, llm.ErrUpstream))

	node, err := engine.GetNode(ctx, user.ID, uid)
	require.NoError(t, err)
	require.NotNil(t, node.Analysis)
	assert.Equal(t, analysis, *node.Analysis)
}

func TestDeleteConversation(t *testing.T) {
	engine, ts, _ := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")
	conversation, err := engine.CreateRoot(ctx, user.ID, "Move house")
	require.NoError(t, err)
	tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)
	children, err := engine.ExpandNode(ctx, user.ID, tree.Root.Node.UID)
	require.NoError(t, err)

	require.NoError(t, engine.DeleteConversation(ctx, user.ID, conversation.UID))

	_, err = engine.GetTree(ctx, user.ID, conversation.UID)
	assert.True(t, errors.Is(err, ErrNotFound))
	for _, child := range children {
		_, err = engine.GetNode(ctx, user.ID, child.UID)
		assert.True(t, errors.Is(err, ErrNotFound))
	}

	eventType := store.AuditConversationDeleted
	logs, err := ts.ListAuditLogs(ctx, &store.FindAuditLog{EventType: &eventType})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Move house", logs[0].EventData["topic"])
}

func TestUserStats(t *testing.T) {
	engine, ts, _ := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")
	other := createUser(t, ts, "bob")

	conversation, err := engine.CreateRoot(ctx, user.ID, "One")
	require.NoError(t, err)
	_, err = engine.CreateRoot(ctx, user.ID, "Two")
	require.NoError(t, err)
	_, err = engine.CreateRoot(ctx, other.ID, "Three")
	require.NoError(t, err)

	tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)
	children, err := engine.ExpandNode(ctx, user.ID, tree.Root.Node.UID)
	require.NoError(t, err)
	_, err = engine.GenerateSteps(ctx, user.ID, children[0].UID)
	require.NoError(t, err)
	_, err = engine.AnalyzeNode(ctx, user.ID, children[1].UID)
	require.NoError(t, err)
	_, err = engine.AnalyzeNode(ctx, user.ID, children[2].UID)
	require.NoError(t, err)

	stats, err := engine.UserStats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, &Stats{Conversations: 2, Nodes: 7, NodesWithSteps: 1, NodesWithAnalysis: 2}, stats)

	list, err := engine.ListConversations(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
}

func TestNodeDeletedDuringGeneration(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		operate func(ctx context.Context, engine *Engine, userID int32, uid string) error
	}{
		{
			name:  "expand",
			event: store.AuditNodeExpanded,
			operate: func(ctx context.Context, engine *Engine, userID int32, uid string) error {
				_, err := engine.ExpandNode(ctx, userID, uid)
				return err
			},
		},
		{
			name:  "steps",
			event: store.AuditStepsGenerated,
			operate: func(ctx context.Context, engine *Engine, userID int32, uid string) error {
				_, err := engine.GenerateSteps(ctx, userID, uid)
				return err
			},
		},
		{
			name:  "analysis",
			event: store.AuditAnalysisGenerated,
			operate: func(ctx context.Context, engine *Engine, userID int32, uid string) error {
				_, err := engine.AnalyzeNode(ctx, userID, uid)
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, ts, generator := newTestEngine(t)
			ctx := context.Background()
			user := createUser(t, ts, "alice")
			conversation, err := engine.CreateRoot(ctx, user.ID, "Plan")
			require.NoError(t, err)
			tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
			require.NoError(t, err)

			generator.during = func() {
				require.NoError(t, engine.DeleteConversation(ctx, user.ID, conversation.UID))
			}
			err = tt.operate(ctx, engine, user.ID, tree.Root.Node.UID)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
			assert.False(t, errors.Is(err, ErrConflict))

			event := tt.event
			logs, err := ts.ListAuditLogs(ctx, &store.FindAuditLog{EventType: &event})
			require.NoError(t, err)
			assert.Empty(t, logs)
		})
	}
}

// withoutAuditTable hides the audit table so that any transaction writing an
// audit entry fails after its other statements have run.
func withoutAuditTable(t *testing.T, ts *store.Store, fn func()) {
	t.Helper()
	db := ts.GetDriver().GetDB()
	ctx := context.Background()
	_, err := db.ExecContext(ctx, "ALTER TABLE audit_log RENAME TO audit_log_hidden")
	require.NoError(t, err)
	defer func() {
		_, err := db.ExecContext(ctx, "ALTER TABLE audit_log_hidden RENAME TO audit_log")
		require.NoError(t, err)
	}()
	fn()
}

func TestExpandNodePersistenceFailureRollsBack(t *testing.T) {
	engine, ts, _ := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")
	conversation, err := engine.CreateRoot(ctx, user.ID, "Learn Go")
	require.NoError(t, err)
	tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)
	root := tree.Root.Node

	withoutAuditTable(t, ts, func() {
		_, err = engine.ExpandNode(ctx, user.ID, root.UID)
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))

	count, err := ts.CountNodes(ctx, &store.FindNode{ParentID: &root.ID})
	require.NoError(t, err)
	assert.Zero(t, count)
	node, err := engine.GetNode(ctx, user.ID, root.UID)
	require.NoError(t, err)
	assert.False(t, node.Expanded)

	event := store.AuditNodeExpanded
	logs, err := ts.ListAuditLogs(ctx, &store.FindAuditLog{EventType: &event})
	require.NoError(t, err)
	assert.Empty(t, logs)

	children, err := engine.ExpandNode(ctx, user.ID, root.UID)
	require.NoError(t, err)
	assert.Len(t, children, ItemCount)
}

func TestGenerateStepsPersistenceFailureRollsBack(t *testing.T) {
	engine, ts, _ := newTestEngine(t)
	ctx := context.Background()
	user := createUser(t, ts, "alice")
	conversation, err := engine.CreateRoot(ctx, user.ID, "Bake bread")
	require.NoError(t, err)
	tree, err := engine.GetTree(ctx, user.ID, conversation.UID)
	require.NoError(t, err)
	uid := tree.Root.Node.UID

	first, err := engine.GenerateSteps(ctx, user.ID, uid)
	require.NoError(t, err)

	withoutAuditTable(t, ts, func() {
		_, err = engine.GenerateSteps(ctx, user.ID, uid)
	})
	require.Error(t, err)

	node, err := engine.GetNode(ctx, user.ID, uid)
	require.NoError(t, err)
	assert.Equal(t, first, node.Steps)

	event := store.AuditStepsGenerated
	logs, err := ts.ListAuditLogs(ctx, &store.FindAuditLog{EventType: &event})
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
