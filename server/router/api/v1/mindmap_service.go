package v1

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/llamamind/mindmap/internal/mindmap"
	"github.com/llamamind/mindmap/store"
)

// ─────────────────────────────────────────────────────────────────────────────
// Request / Response types
// ─────────────────────────────────────────────────────────────────────────────

type createConversationRequest struct {
	Topic string `json:"topic" validate:"required"`
}

type conversationResponse struct {
	UID       string `json:"uid"`
	RootTopic string `json:"rootTopic"`
	NodeCount int32  `json:"nodeCount"`
	CreatedTs int64  `json:"createdTs"`
}

type nodeResponse struct {
	UID       string         `json:"uid"`
	ParentUID string         `json:"parentUid,omitempty"`
	Content   string         `json:"content"`
	Level     int32          `json:"level"`
	Steps     []string       `json:"steps"`
	Analysis  *string        `json:"analysis"`
	Expanded  bool           `json:"expanded"`
	CreatedTs int64          `json:"createdTs"`
	Children  []nodeResponse `json:"children,omitempty"`
}

type treeResponse struct {
	Conversation conversationResponse `json:"conversation"`
	Root         nodeResponse         `json:"root"`
}

func convertConversation(conversation *store.Conversation) conversationResponse {
	return conversationResponse{
		UID:       conversation.UID,
		RootTopic: conversation.RootTopic,
		NodeCount: conversation.NodeCount,
		CreatedTs: conversation.CreatedTs,
	}
}

func convertNode(node *store.Node, parentUID string) nodeResponse {
	return nodeResponse{
		UID:       node.UID,
		ParentUID: parentUID,
		Content:   node.Content,
		Level:     node.Level,
		Steps:     node.Steps,
		Analysis:  node.Analysis,
		Expanded:  node.Expanded,
		CreatedTs: node.CreatedTs,
	}
}

// convertTreeNode converts iteratively so the response depth is bounded by
// the tree the engine already validated.
func convertTreeNode(root *mindmap.TreeNode) nodeResponse {
	type pending struct {
		src       *mindmap.TreeNode
		dst       *nodeResponse
		parentUID string
	}
	out := nodeResponse{}
	stack := []pending{{src: root, dst: &out}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		*top.dst = convertNode(top.src.Node, top.parentUID)
		if len(top.src.Children) == 0 {
			continue
		}
		top.dst.Children = make([]nodeResponse, len(top.src.Children))
		for i, child := range top.src.Children {
			stack = append(stack, pending{src: child, dst: &top.dst.Children[i], parentUID: top.src.Node.UID})
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Route registration
// ─────────────────────────────────────────────────────────────────────────────

func (s *APIV1Service) registerMindmapRoutes(e *echo.Echo) {
	g := e.Group("/api/mindmap")
	g.GET("/conversations", s.listConversations)
	g.POST("/conversations", s.createConversation)
	g.GET("/conversations/:uid", s.getConversationTree)
	g.DELETE("/conversations/:uid", s.deleteConversation)
	g.GET("/nodes/:uid", s.getNode)
	g.POST("/nodes/:uid/expand", s.expandNode)
	g.POST("/nodes/:uid/steps", s.generateSteps)
	g.POST("/nodes/:uid/analyze", s.analyzeNode)
	g.GET("/stats", s.getUserStats)
}

func (s *APIV1Service) listConversations(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	conversations, err := s.engine.ListConversations(c.Request().Context(), user.ID)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]conversationResponse, 0, len(conversations))
	for _, conversation := range conversations {
		resp = append(resp, convertConversation(conversation))
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) createConversation(c *echo.Context) error {
	ctx := c.Request().Context()
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	var req createConversationRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	conversation, err := s.engine.CreateRoot(ctx, user.ID, req.Topic)
	if err != nil {
		return toHTTPError(err)
	}
	tree, err := s.engine.GetTree(ctx, user.ID, conversation.UID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusCreated, treeResponse{
		Conversation: convertConversation(tree.Conversation),
		Root:         convertTreeNode(tree.Root),
	})
}

func (s *APIV1Service) getConversationTree(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	tree, err := s.engine.GetTree(c.Request().Context(), user.ID, c.Param("uid"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, treeResponse{
		Conversation: convertConversation(tree.Conversation),
		Root:         convertTreeNode(tree.Root),
	})
}

func (s *APIV1Service) deleteConversation(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	if err := s.engine.DeleteConversation(c.Request().Context(), user.ID, c.Param("uid")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) getNode(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	node, err := s.engine.GetNode(c.Request().Context(), user.ID, c.Param("uid"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, convertNode(node, ""))
}

func (s *APIV1Service) expandNode(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	uid := c.Param("uid")
	children, err := s.engine.ExpandNode(c.Request().Context(), user.ID, uid)
	if err != nil {
		return toHTTPError(err)
	}
	resp := make([]nodeResponse, 0, len(children))
	for _, child := range children {
		resp = append(resp, convertNode(child, uid))
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"uid":      uid,
		"children": resp,
	})
}

func (s *APIV1Service) generateSteps(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	uid := c.Param("uid")
	steps, err := s.engine.GenerateSteps(c.Request().Context(), user.ID, uid)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"uid":   uid,
		"steps": steps,
	})
}

func (s *APIV1Service) analyzeNode(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	uid := c.Param("uid")
	analysis, err := s.engine.AnalyzeNode(c.Request().Context(), user.ID, uid)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"uid":      uid,
		"analysis": analysis,
	})
}

func (s *APIV1Service) getUserStats(c *echo.Context) error {
	user, err := s.requireAuth(c)
	if err != nil {
		return err
	}
	stats, err := s.engine.UserStats(c.Request().Context(), user.ID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, stats)
}
