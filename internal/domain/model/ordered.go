package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SectionKey 标识设备清单所属的问卷分节。
// 记录层只接受目录（Catalog）中声明过的分节。
type SectionKey string

// QuestionID 标识问卷中的一道题。
type QuestionID string

// EquipmentGroup 是某个分节下的设备序列。
type EquipmentGroup struct {
	Section SectionKey
	Items   []EquipmentItem
}

// EquipmentBook 是“分节 -> 设备序列”的有序映射。
//
// 迭代顺序即插入顺序，报告渲染依赖这一点保证确定性输出；
// JSON 形态仍是普通对象，与原有存档格式兼容。
type EquipmentBook []EquipmentGroup

// Keys 按插入顺序返回所有分节。
func (b EquipmentBook) Keys() []SectionKey {
	out := make([]SectionKey, 0, len(b))
	for _, g := range b {
		out = append(out, g.Section)
	}
	return out
}

// Has 报告分节是否存在（即使序列为空）。
func (b EquipmentBook) Has(key SectionKey) bool {
	return b.index(key) >= 0
}

// Items 返回分节下设备序列的副本；分节不存在时返回 nil。
func (b EquipmentBook) Items(key SectionKey) []EquipmentItem {
	i := b.index(key)
	if i < 0 {
		return nil
	}
	return cloneItems(b[i].Items)
}

// Len 返回分节下的设备数量。
func (b EquipmentBook) Len(key SectionKey) int {
	i := b.index(key)
	if i < 0 {
		return 0
	}
	return len(b[i].Items)
}

// Ensure 确保分节存在，不存在时以空序列追加到末尾。
func (b *EquipmentBook) Ensure(key SectionKey) {
	if b.index(key) >= 0 {
		return
	}
	*b = append(*b, EquipmentGroup{Section: key, Items: []EquipmentItem{}})
}

// Append 在分节末尾追加一条设备。
func (b *EquipmentBook) Append(key SectionKey, item EquipmentItem) {
	b.Ensure(key)
	i := b.index(key)
	(*b)[i].Items = append((*b)[i].Items, item.Clone())
}

// RemoveAt 删除分节中指定位置的设备；越界或分节不存在时不做任何事并返回 false。
func (b *EquipmentBook) RemoveAt(key SectionKey, pos int) bool {
	i := b.index(key)
	if i < 0 {
		return false
	}
	items := (*b)[i].Items
	if pos < 0 || pos >= len(items) {
		return false
	}
	next := make([]EquipmentItem, 0, len(items)-1)
	next = append(next, items[:pos]...)
	next = append(next, items[pos+1:]...)
	(*b)[i].Items = next
	return true
}

// Clone 返回深拷贝。
func (b EquipmentBook) Clone() EquipmentBook {
	if b == nil {
		return nil
	}
	out := make(EquipmentBook, len(b))
	for i, g := range b {
		out[i] = EquipmentGroup{Section: g.Section, Items: cloneItems(g.Items)}
		if out[i].Items == nil {
			out[i].Items = []EquipmentItem{}
		}
	}
	return out
}

func (b EquipmentBook) index(key SectionKey) int {
	for i, g := range b {
		if g.Section == key {
			return i
		}
	}
	return -1
}

func (b EquipmentBook) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, g := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(string(g.Section))
		if err != nil {
			return nil, err
		}
		items := g.Items
		if items == nil {
			items = []EquipmentItem{}
		}
		v, err := json.Marshal(items)
		if err != nil {
			return nil, fmt.Errorf("marshal equipment %s: %w", g.Section, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b *EquipmentBook) UnmarshalJSON(raw []byte) error {
	out := EquipmentBook{}
	err := decodeObject(raw, func(key string, dec *json.Decoder) error {
		var items []EquipmentItem
		if err := dec.Decode(&items); err != nil {
			return fmt.Errorf("decode equipment %s: %w", key, err)
		}
		if items == nil {
			items = []EquipmentItem{}
		}
		if i := out.index(SectionKey(key)); i >= 0 {
			out[i].Items = items
			return nil
		}
		out = append(out, EquipmentGroup{Section: SectionKey(key), Items: items})
		return nil
	})
	if err != nil {
		return err
	}
	*b = out
	return nil
}

// AnswerKind 是答案值的类型标签。
type AnswerKind string

const (
	// AnswerText 单个字符串（是/否、单选、文本、数字）。
	AnswerText AnswerKind = "text"
	// AnswerList 有序字符串列表（多选）。
	AnswerList AnswerKind = "list"
	// AnswerEquipment 有序设备列表。
	AnswerEquipment AnswerKind = "equipment"
)

// AnswerValue 是带类型标签的答案值。
type AnswerValue struct {
	Kind      AnswerKind
	Text      string
	List      []string
	Equipment []EquipmentItem
}

// TextAnswer 构造单值答案。
func TextAnswer(s string) AnswerValue {
	return AnswerValue{Kind: AnswerText, Text: s}
}

// ListAnswer 构造多选答案（保留顺序）。
func ListAnswer(values ...string) AnswerValue {
	list := make([]string, len(values))
	copy(list, values)
	return AnswerValue{Kind: AnswerList, List: list}
}

// EquipmentAnswer 构造设备列表答案。
func EquipmentAnswer(items ...EquipmentItem) AnswerValue {
	out := cloneItems(items)
	if out == nil {
		out = []EquipmentItem{}
	}
	return AnswerValue{Kind: AnswerEquipment, Equipment: out}
}

// String 返回报告中的展示形式：列表用 ", " 连接，标量原样输出。
func (a AnswerValue) String() string {
	switch a.Kind {
	case AnswerList:
		return strings.Join(a.List, ", ")
	case AnswerEquipment:
		models := make([]string, 0, len(a.Equipment))
		for _, it := range a.Equipment {
			models = append(models, it.Model)
		}
		return strings.Join(models, ", ")
	default:
		return a.Text
	}
}

// Clone 返回深拷贝。
func (a AnswerValue) Clone() AnswerValue {
	out := a
	if a.List != nil {
		out.List = cloneStrings(a.List)
	}
	if a.Equipment != nil {
		out.Equipment = cloneItems(a.Equipment)
	}
	return out
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	switch a.Kind {
	case AnswerList:
		list := a.List
		if list == nil {
			list = []string{}
		}
		return json.Marshal(list)
	case AnswerEquipment:
		items := a.Equipment
		if items == nil {
			items = []EquipmentItem{}
		}
		return json.Marshal(items)
	default:
		return json.Marshal(a.Text)
	}
}

// UnmarshalJSON 按 JSON 形态恢复类型标签：
// 字符串 -> text；字符串数组（含空数组）-> list；对象数组 -> equipment；
// 数字按字面量转成 text。
func (a *AnswerValue) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		*a = TextAnswer("")
		return nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
		return nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			return err
		}
		if len(elems) > 0 {
			first := bytes.TrimSpace(elems[0])
			if len(first) > 0 && first[0] == '{' {
				var items []EquipmentItem
				if err := json.Unmarshal(raw, &items); err != nil {
					return fmt.Errorf("decode equipment answer: %w", err)
				}
				*a = EquipmentAnswer(items...)
				return nil
			}
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return fmt.Errorf("decode list answer: %w", err)
		}
		*a = ListAnswer(list...)
		return nil
	case '{':
		return fmt.Errorf("decode answer: object is not a valid answer value")
	default:
		*a = TextAnswer(string(raw))
		return nil
	}
}

// AnswerEntry 是一道题的当前答案。
type AnswerEntry struct {
	Question QuestionID
	Value    AnswerValue
}

// Answers 是“题目 ID -> 答案”的有序映射，语义同 EquipmentBook。
type Answers []AnswerEntry

// Get 返回题目的答案。
func (a Answers) Get(id QuestionID) (AnswerValue, bool) {
	for _, e := range a {
		if e.Question == id {
			return e.Value.Clone(), true
		}
	}
	return AnswerValue{}, false
}

// Set 替换题目的答案；新题目追加到末尾，已有题目保持原位置。
func (a *Answers) Set(id QuestionID, v AnswerValue) {
	for i := range *a {
		if (*a)[i].Question == id {
			(*a)[i].Value = v.Clone()
			return
		}
	}
	*a = append(*a, AnswerEntry{Question: id, Value: v.Clone()})
}

// Clone 返回深拷贝。
func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}
	out := make(Answers, len(a))
	for i, e := range a {
		out[i] = AnswerEntry{Question: e.Question, Value: e.Value.Clone()}
	}
	return out
}

// Retag 按题目声明的类型修正答案标签。
// JSON 中的空数组既可能是多选也可能是设备列表，解码后一律是 list，
// 这里把空值转换成题目期望的类型；kindOf 不认识的题目和非空值保持原样。
func (a Answers) Retag(kindOf func(QuestionID) (QuestionKind, bool)) {
	for i, e := range a {
		k, ok := kindOf(e.Question)
		if !ok || e.Value.Kind == k.ExpectedAnswer() {
			continue
		}
		switch {
		case k.ExpectedAnswer() == AnswerEquipment && e.Value.Kind == AnswerList && len(e.Value.List) == 0:
			a[i].Value = EquipmentAnswer()
		case k.ExpectedAnswer() == AnswerList && e.Value.Kind == AnswerEquipment && len(e.Value.Equipment) == 0:
			a[i].Value = ListAnswer()
		}
	}
}

func (a Answers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(string(e.Question))
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal answer %s: %w", e.Question, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Answers) UnmarshalJSON(raw []byte) error {
	out := Answers{}
	err := decodeObject(raw, func(key string, dec *json.Decoder) error {
		var v AnswerValue
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode answer %s: %w", key, err)
		}
		out.Set(QuestionID(key), v)
		return nil
	})
	if err != nil {
		return err
	}
	*a = out
	return nil
}

// decodeObject 逐个读取 JSON 对象的键，保留键在源文本中的顺序。
func decodeObject(raw []byte, each func(key string, dec *json.Decoder) error) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected json object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := each(key, dec); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
