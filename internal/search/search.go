// Package search 维护可选的 Elasticsearch 产品索引。
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"seorocket/internal/model"
	"seorocket/internal/realtime"
	"seorocket/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
)

const DefaultIndex = "seorocket-products"

var ErrDisabled = errors.New("search is disabled")

// ProductFinder 按 ID 读取最新的产品行，找不到时返回错误
type ProductFinder interface {
	FindByID(ctx context.Context, id string) (*model.Product, error)
}

// Document 是写入索引的产品文档
type Document struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Published   bool     `json:"published"`
}

func NewDocument(p *model.Product) Document {
	return Document{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		Tags:        p.TagNames(),
		Published:   p.Published,
	}
}

type Indexer struct {
	es       *elasticsearch.Client
	index    string
	products ProductFinder
}

func NewClient(addresses []string, transport http.RoundTripper) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Transport: transport,
	})
}

func NewIndexer(es *elasticsearch.Client, index string, products ProductFinder) *Indexer {
	if index == "" {
		index = DefaultIndex
	}
	return &Indexer{es: es, index: index, products: products}
}

// Run 消费产品与联结表的变更事件，直到 ctx 取消或订阅关闭。
// 联结表变化会改变产品的标签，因此同样触发重建该产品的文档。
func (ix *Indexer) Run(ctx context.Context, sub *realtime.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.C:
			if !ok {
				return
			}
			if err := ix.Apply(ctx, evt); err != nil {
				log.Warnf("search: failed to apply %s on %s: %v", evt.Type, evt.Table, err)
			}
		}
	}
}

type rowRef struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
}

func (ix *Indexer) Apply(ctx context.Context, evt realtime.ChangeEvent) error {
	var ref rowRef
	raw := evt.New
	if evt.Type == realtime.EventDelete || len(raw) == 0 || string(raw) == "null" {
		raw = evt.Old
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ref); err != nil {
			return fmt.Errorf("decode row: %w", err)
		}
	}

	switch evt.Table {
	case realtime.TableProducts:
		if ref.ID == "" {
			return nil
		}
		if evt.Type == realtime.EventDelete {
			return ix.Delete(ctx, ref.ID)
		}
		return ix.refresh(ctx, ref.ID)
	case realtime.TableProductTags:
		if ref.ProductID == "" {
			return nil
		}
		return ix.refresh(ctx, ref.ProductID)
	}
	return nil
}

func (ix *Indexer) refresh(ctx context.Context, productID string) error {
	p, err := ix.products.FindByID(ctx, productID)
	if err != nil {
		log.Debugf("search: product %s no longer loadable, removing: %v", productID, err)
		return ix.Delete(ctx, productID)
	}
	return ix.Index(ctx, p)
}

// Reindex 启动时全量写入
func (ix *Indexer) Reindex(ctx context.Context, products []model.Product) error {
	for i := range products {
		if err := ix.Index(ctx, &products[i]); err != nil {
			return err
		}
	}
	return nil
}

func (ix *Indexer) Index(ctx context.Context, p *model.Product) error {
	body, err := json.Marshal(NewDocument(p))
	if err != nil {
		return err
	}
	res, err := ix.es.Index(ix.index, bytes.NewReader(body),
		ix.es.Index.WithDocumentID(p.ID),
		ix.es.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index %s: %s", p.Slug, res.String())
	}
	return nil
}

func (ix *Indexer) Delete(ctx context.Context, id string) error {
	res, err := ix.es.Delete(ix.index, id, ix.es.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete %s: %s", id, res.String())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 返回匹配的产品 slug，按相关度排序
func (ix *Indexer) Search(ctx context.Context, q string, includeUnpublished bool) ([]string, error) {
	if ix == nil || ix.es == nil {
		return nil, ErrDisabled
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return []string{}, nil
	}

	query := map[string]interface{}{
		"bool": map[string]interface{}{
			"must": map[string]interface{}{
				"multi_match": map[string]interface{}{
					"query":  q,
					"fields": []string{"name^3", "tags^2", "description"},
				},
			},
		},
	}
	if !includeUnpublished {
		query["bool"].(map[string]interface{})["filter"] = map[string]interface{}{
			"term": map[string]interface{}{"published": true},
		}
	}
	body, err := json.Marshal(map[string]interface{}{"query": query, "size": 50})
	if err != nil {
		return nil, err
	}

	res, err := ix.es.Search(
		ix.es.Search.WithContext(ctx),
		ix.es.Search.WithIndex(ix.index),
		ix.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("search %q: %s %s", q, res.Status(), msg)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	slugs := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		slugs = append(slugs, hit.Source.Slug)
	}
	return slugs, nil
}
