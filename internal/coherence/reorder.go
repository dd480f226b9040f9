package coherence

import (
	"context"
	"errors"
	"sync"

	"seorocket/internal/model"
	"seorocket/internal/service"
	"seorocket/pkg/log"
)

// ReorderState 是一次拖拽排序交互的状态：Idle -> Optimistic -> Committed | RolledBack
type ReorderState int

const (
	ReorderIdle ReorderState = iota
	ReorderOptimistic
	ReorderCommitted
	ReorderRolledBack
)

func (s ReorderState) String() string {
	switch s {
	case ReorderOptimistic:
		return "optimistic"
	case ReorderCommitted:
		return "committed"
	case ReorderRolledBack:
		return "rolled_back"
	default:
		return "idle"
	}
}

var ErrInvalidTransition = errors.New("coherence: invalid reorder transition")

// WriteFunc 执行服务端写入，false 表示写入失败、服务端状态可能只更新了一部分
type WriteFunc func(ctx context.Context) bool

// ReorderSession 先在本地视图上应用新顺序，再提交写入；写入失败时强制整体重载。
// 只有视图当前的筛选与 filter 一致时才做本地乐观更新。
type ReorderSession struct {
	view   *View
	filter string

	mu    sync.Mutex
	state ReorderState
}

func (v *View) BeginReorder(filter string) *ReorderSession {
	return &ReorderSession{view: v, filter: filter}
}

func (s *ReorderSession) State() ReorderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Apply 按 keys（产品 ID 或 slug）重排本地可见列表，未列出的产品保持相对顺序排在后面。
func (s *ReorderSession) Apply(keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ReorderIdle {
		return ErrInvalidTransition
	}
	if s.view != nil && s.view.Filter() == service.CanonicalFilter(s.filter) {
		s.view.setVisible(reorderLocal(s.view.Snapshot().Visible, keys))
	}
	s.state = ReorderOptimistic
	return nil
}

// Commit 执行写入。失败时回滚：重新加载视图，丢弃乐观结果。
func (s *ReorderSession) Commit(ctx context.Context, write WriteFunc) (ReorderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != ReorderOptimistic {
		return s.state, ErrInvalidTransition
	}
	if write(ctx) {
		s.state = ReorderCommitted
		return s.state, nil
	}

	s.state = ReorderRolledBack
	if s.view == nil {
		return s.state, nil
	}
	if err := s.view.Reload(ctx); err != nil {
		log.Warnf("coherence: reload after failed reorder of %q: %v", s.filter, err)
		return s.state, err
	}
	return s.state, nil
}

// Run 是 Apply + Commit 的组合
func (s *ReorderSession) Run(ctx context.Context, keys []string, write WriteFunc) (ReorderState, error) {
	if err := s.Apply(keys); err != nil {
		return s.State(), err
	}
	return s.Commit(ctx, write)
}

func reorderLocal(items []model.Product, keys []string) []model.Product {
	out := make([]model.Product, 0, len(items))
	used := make([]bool, len(items))
	for _, key := range keys {
		for i := range items {
			if used[i] || (items[i].ID != key && items[i].Slug != key) {
				continue
			}
			used[i] = true
			out = append(out, items[i])
			break
		}
	}
	for i := range items {
		if !used[i] {
			out = append(out, items[i])
		}
	}
	return out
}
