package schema

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/platform/hash"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Catalog 是加载并校验后的问卷目录（只读）。
type Catalog struct {
	bundle    model.SchemaBundle
	sha256    string
	source    string
	sections  map[model.SectionKey]int
	questions map[model.QuestionID]questionRef
	total     int
}

type questionRef struct {
	section  int
	question int
}

// Loader 负责从磁盘读取并校验问卷目录；Path 为空时使用内置目录。
type Loader struct {
	Path string
}

func NewLoader(path string) *Loader {
	return &Loader{Path: path}
}

// Load 读取目录文件并执行结构校验。失败时调用方应视为致命错误。
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(l.Path) == "" {
		return Parse(defaultCatalog, "builtin")
	}
	raw, err := os.ReadFile(l.Path)
	if err != nil {
		return nil, fmt.Errorf("read schema catalog: %w", err)
	}
	return Parse(raw, l.Path)
}

// Default 返回内置目录。内置文件随代码一起测试，解析失败属于编程错误。
func Default() *Catalog {
	c, err := Parse(defaultCatalog, "builtin")
	if err != nil {
		panic(fmt.Sprintf("builtin schema catalog: %v", err))
	}
	return c
}

// DefaultBytes 返回内置目录的原始 YAML（用于 schema dump）。
func DefaultBytes() []byte {
	out := make([]byte, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}

// Parse 解析并校验目录内容。
func Parse(raw []byte, source string) (*Catalog, error) {
	var bundle model.SchemaBundle
	if err := yaml.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("parse schema catalog: %w", err)
	}
	c, err := build(bundle)
	if err != nil {
		return nil, err
	}
	c.sha256 = hash.Bytes(raw)
	c.source = source
	return c, nil
}

func build(bundle model.SchemaBundle) (*Catalog, error) {
	if strings.TrimSpace(bundle.Version) == "" {
		return nil, errors.New("schema catalog: version is required")
	}
	if len(bundle.Sections) == 0 {
		return nil, errors.New("schema catalog: sections is empty")
	}

	c := &Catalog{
		bundle:    bundle,
		sections:  make(map[model.SectionKey]int, len(bundle.Sections)),
		questions: make(map[model.QuestionID]questionRef),
	}
	for si, s := range bundle.Sections {
		key := model.SectionKey(strings.TrimSpace(string(s.Key)))
		if key == "" {
			return nil, fmt.Errorf("schema catalog: section key is required (section #%d)", si+1)
		}
		if key != s.Key {
			return nil, fmt.Errorf("schema catalog: section key has surrounding spaces: %q", s.Key)
		}
		if _, ok := c.sections[key]; ok {
			return nil, fmt.Errorf("schema catalog: duplicate section key: %s", key)
		}
		if strings.TrimSpace(s.Title) == "" {
			return nil, fmt.Errorf("schema catalog: section title is required: %s", key)
		}
		c.sections[key] = si

		for qi, q := range s.Questions {
			if err := validateQuestion(key, q); err != nil {
				return nil, err
			}
			if _, ok := c.questions[q.ID]; ok {
				return nil, fmt.Errorf("schema catalog: duplicate question id: %s", q.ID)
			}
			c.questions[q.ID] = questionRef{section: si, question: qi}
			c.total++
		}
	}
	for _, key := range bundle.DefaultEquipment {
		if _, ok := c.sections[key]; !ok {
			return nil, fmt.Errorf("schema catalog: default_equipment names unknown section: %s", key)
		}
	}
	return c, nil
}

// validateQuestion 检查单题的标识、类型与选项一致性。
func validateQuestion(section model.SectionKey, q model.Question) error {
	id := strings.TrimSpace(string(q.ID))
	if id == "" || id != string(q.ID) {
		return fmt.Errorf("schema catalog: invalid question id %q in section %s", q.ID, section)
	}
	if strings.TrimSpace(q.Label) == "" {
		return fmt.Errorf("schema catalog: question label is required: %s", id)
	}
	if !q.Kind.Valid() {
		return fmt.Errorf("schema catalog: unknown kind %q for question %s", q.Kind, id)
	}
	if !q.Kind.HasOptions() {
		if len(q.Options) > 0 {
			return fmt.Errorf("schema catalog: question %s of kind %s must not declare options", id, q.Kind)
		}
		return nil
	}
	if len(q.Options) == 0 {
		return fmt.Errorf("schema catalog: question %s of kind %s needs options", id, q.Kind)
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return fmt.Errorf("schema catalog: blank option in question %s", id)
		}
		if _, ok := seen[opt]; ok {
			return fmt.Errorf("schema catalog: duplicate option %q in question %s", opt, id)
		}
		seen[opt] = struct{}{}
	}
	return nil
}

// Bundle 返回目录的深拷贝。
func (c *Catalog) Bundle() model.SchemaBundle {
	out := c.bundle
	out.DefaultEquipment = append([]model.SectionKey(nil), c.bundle.DefaultEquipment...)
	out.Sections = c.Sections()
	return out
}

// Version 返回目录版本号。
func (c *Catalog) Version() string { return c.bundle.Version }

// SHA256 返回目录源文件的哈希。
func (c *Catalog) SHA256() string { return c.sha256 }

// Source 返回目录来源（文件路径或 builtin）。
func (c *Catalog) Source() string { return c.source }

// Sections 按声明顺序返回所有分节的副本。
func (c *Catalog) Sections() []model.Section {
	out := make([]model.Section, len(c.bundle.Sections))
	for i, s := range c.bundle.Sections {
		out[i] = cloneSection(s)
	}
	return out
}

// Section 按 key 查找分节。
func (c *Catalog) Section(key model.SectionKey) (model.Section, bool) {
	i, ok := c.sections[key]
	if !ok {
		return model.Section{}, false
	}
	return cloneSection(c.bundle.Sections[i]), true
}

// HasSection 报告分节是否在目录中声明。
func (c *Catalog) HasSection(key model.SectionKey) bool {
	_, ok := c.sections[key]
	return ok
}

// Question 按 ID 查找题目。
func (c *Catalog) Question(id model.QuestionID) (model.Question, bool) {
	ref, ok := c.questions[id]
	if !ok {
		return model.Question{}, false
	}
	return cloneQuestion(c.bundle.Sections[ref.section].Questions[ref.question]), true
}

// DefaultEquipmentSections 返回新记录需要预置的设备分节。
func (c *Catalog) DefaultEquipmentSections() []model.SectionKey {
	return append([]model.SectionKey(nil), c.bundle.DefaultEquipment...)
}

// QuestionCount 返回全部题目数量。
func (c *Catalog) QuestionCount() int { return c.total }

func cloneSection(s model.Section) model.Section {
	out := s
	out.Questions = make([]model.Question, len(s.Questions))
	for i, q := range s.Questions {
		out.Questions[i] = cloneQuestion(q)
	}
	return out
}

func cloneQuestion(q model.Question) model.Question {
	out := q
	out.Options = append([]string(nil), q.Options...)
	out.Suggestions = append([]string(nil), q.Suggestions...)
	return out
}
