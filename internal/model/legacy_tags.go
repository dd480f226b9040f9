package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// LegacyTags 是 products.tags 列：旧版直接存放在产品行上的有序标签名数组。
// 历史数据可能是 JSON 数组（["A","B"]），也可能是逗号分隔字符串（"A, B"），两种都能读；写入统一为 JSON 数组。
type LegacyTags []string

// ParseLegacyTags 解析两种历史格式，去掉空白项与重复项，保留原顺序。
func ParseLegacyTags(raw string) LegacyTags {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return LegacyTags{}
	}

	var items []string
	if strings.HasPrefix(raw, "[") {
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			items = strings.Split(strings.Trim(raw, "[]"), ",")
		}
	} else {
		items = strings.Split(raw, ",")
	}

	tags := make(LegacyTags, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		name := strings.Trim(strings.TrimSpace(item), `"`)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tags = append(tags, name)
	}
	return tags
}

// Scan 实现 sql.Scanner
func (t *LegacyTags) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = LegacyTags{}
	case string:
		*t = ParseLegacyTags(v)
	case []byte:
		*t = ParseLegacyTags(string(v))
	default:
		return fmt.Errorf("cannot scan %T into LegacyTags", value)
	}
	return nil
}

// Value 实现 driver.Valuer
func (t LegacyTags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := encodeJSON([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// encodeJSON 不转义 & < >，列里保存的就是标签原文，LIKE 预筛才能命中
func encodeJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// LegacyTagPatterns 返回 name 在 tags 列中可能出现的字面形式：原文（逗号格式）、
// JSON 编码后的形式，以及旧版写入时 HTML 转义过的形式。调用方拿到候选行后仍需 Contains 精确匹配。
func LegacyTagPatterns(name string) []string {
	name = strings.TrimSpace(name)
	patterns := []string{name}
	add := func(p string) {
		for _, existing := range patterns {
			if existing == p {
				return
			}
		}
		patterns = append(patterns, p)
	}
	if b, err := encodeJSON(name); err == nil {
		add(strings.Trim(string(b), `"`))
	}
	if b, err := json.Marshal(name); err == nil {
		add(strings.Trim(string(b), `"`))
	}
	return patterns
}

// UnmarshalJSON 兼容旧版 JSON 文件中以字符串形式保存的标签
func (t *LegacyTags) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = ParseLegacyTags(s)
		return nil
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*t = LegacyTags(items).Normalized()
	return nil
}

func (t LegacyTags) Contains(name string) bool {
	name = strings.TrimSpace(name)
	for _, tag := range t {
		if tag == name {
			return true
		}
	}
	return false
}

// With 返回追加 name 后的新数组（已存在则原样返回）
func (t LegacyTags) With(name string) LegacyTags {
	if t.Contains(name) {
		return t
	}
	out := make(LegacyTags, 0, len(t)+1)
	out = append(out, t...)
	return append(out, name)
}

// Without 返回移除 name 后的新数组
func (t LegacyTags) Without(name string) LegacyTags {
	out := make(LegacyTags, 0, len(t))
	for _, tag := range t {
		if tag != name {
			out = append(out, tag)
		}
	}
	return out
}

// Renamed 把 from 替换为 to，位置不变
func (t LegacyTags) Renamed(from, to string) LegacyTags {
	out := make(LegacyTags, 0, len(t))
	for _, tag := range t {
		if tag == from {
			tag = to
		}
		out = append(out, tag)
	}
	return out.Normalized()
}

// Normalized 去掉空白项与重复项，保留原顺序；nil 返回空数组
func (t LegacyTags) Normalized() LegacyTags {
	out := make(LegacyTags, 0, len(t))
	seen := make(map[string]struct{}, len(t))
	for _, tag := range t {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
