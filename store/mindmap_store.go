package store

import "context"

// CreateConversation creates a conversation and its level 0 root node atomically.
func (s *Store) CreateConversation(ctx context.Context, create *CreateConversation) (*Conversation, error) {
	return s.driver.CreateConversation(ctx, create)
}

// ListConversations lists conversations matching the filter, newest first.
func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

// GetConversation returns the first conversation matching the filter, or nil.
func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	list, err := s.driver.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// CountConversations counts conversations matching the filter.
func (s *Store) CountConversations(ctx context.Context, find *FindConversation) (int64, error) {
	return s.driver.CountConversations(ctx, find)
}

// DeleteConversation deletes a conversation and all its nodes (cascade).
func (s *Store) DeleteConversation(ctx context.Context, delete *DeleteConversation) error {
	return s.driver.DeleteConversation(ctx, delete)
}

// ListNodes returns nodes matching the filter in insertion order.
func (s *Store) ListNodes(ctx context.Context, find *FindNode) ([]*Node, error) {
	return s.driver.ListNodes(ctx, find)
}

// GetNode returns the first node matching the filter, or nil.
func (s *Store) GetNode(ctx context.Context, find *FindNode) (*Node, error) {
	list, err := s.driver.ListNodes(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// CountNodes counts nodes matching the filter.
func (s *Store) CountNodes(ctx context.Context, find *FindNode) (int64, error) {
	return s.driver.CountNodes(ctx, find)
}

// ExpandNode persists the children of a node. It returns ErrNodeExpanded
// when the node already has children or another expansion won the race.
func (s *Store) ExpandNode(ctx context.Context, expand *ExpandNode) ([]*Node, error) {
	return s.driver.ExpandNode(ctx, expand)
}

// UpdateNode overwrites the generated steps and/or analysis of a node.
func (s *Store) UpdateNode(ctx context.Context, update *UpdateNode) (*Node, error) {
	return s.driver.UpdateNode(ctx, update)
}
