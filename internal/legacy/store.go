// Package legacy 是没有配置关系型数据库时使用的 JSON 文件产品存储。
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"seorocket/internal/model"
	"seorocket/pkg/log"
)

var ErrNotConfigured = errors.New("legacy data file not configured")

// Store 读写整份产品列表。文件不存在时视为空列表。
type Store struct {
	path string
	mu   sync.RWMutex
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Load(_ context.Context) ([]model.Product, error) {
	if s == nil || s.path == "" {
		return []model.Product{}, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Product{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var products []model.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

// Save 先写临时文件再 rename，读者不会看到写了一半的文件
func (s *Store) Save(_ context.Context, products []model.Product) error {
	if s == nil || s.path == "" {
		return ErrNotConfigured
	}
	if products == nil {
		products = []model.Product{}
	}
	data, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	log.Infof("legacy: saved %d products to %s", len(products), s.path)
	return nil
}

// List 与数据库版 ProductService.List 语义一致，供未配置数据库时的目录视图使用
func (s *Store) List(ctx context.Context, includeUnpublished bool) ([]model.Product, error) {
	products, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if includeUnpublished {
		return products, nil
	}
	out := make([]model.Product, 0, len(products))
	for _, p := range products {
		if p.Published {
			out = append(out, p)
		}
	}
	return out, nil
}
