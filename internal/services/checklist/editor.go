package checklist

import (
	"errors"
	"fmt"
	"strings"

	"cctv-checklist/internal/domain/model"
)

var (
	// ErrUnknownSection 表示分节不在问卷目录中。
	ErrUnknownSection = errors.New("unknown section")
	// ErrUnknownQuestion 表示题目 ID 不在问卷目录中。
	ErrUnknownQuestion = errors.New("unknown question")
	// ErrUnknownField 表示字段名不是该记录块的字段。
	ErrUnknownField = errors.New("unknown field")
)

// AnswerKindError 表示答案值类型与题目声明的类型不符。
type AnswerKindError struct {
	Question model.QuestionID
	Kind     model.QuestionKind
	Got      model.AnswerKind
}

func (e *AnswerKindError) Error() string {
	return fmt.Sprintf("answer for %s: kind %s expects %s value, got %s",
		e.Question, e.Kind, e.Kind.ExpectedAnswer(), e.Got)
}

// Catalog 是编辑器所需的目录能力，*schema.Catalog 实现了它。
type Catalog interface {
	HasSection(key model.SectionKey) bool
	Question(id model.QuestionID) (model.Question, bool)
	DefaultEquipmentSections() []model.SectionKey
}

// Listener 在每次变更后收到记录的深拷贝。
type Listener func(model.Record)

// Option 配置 Editor。
type Option func(*Editor)

// Permissive 关闭答案类型校验：任何题目 ID、任何形态的答案都接受。
// 仅用于导入旧数据。
func Permissive() Option {
	return func(e *Editor) { e.strict = false }
}

// WithRecord 以已有记录（例如从存储加载）作为初始状态。
func WithRecord(r model.Record) Option {
	return func(e *Editor) { e.record = r.Clone() }
}

// Editor 持有一份进行中的检查清单，是记录的唯一所有者。
// 非并发安全：调用方需保证同一时刻只有一个调用者。
type Editor struct {
	catalog   Catalog
	record    model.Record
	strict    bool
	listeners []Listener
}

// NewEditor 创建编辑器；未指定 WithRecord 时从目录默认记录开始。
func NewEditor(catalog Catalog, opts ...Option) *Editor {
	e := &Editor{catalog: catalog, strict: true, record: NewRecord(catalog)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewRecord 返回全新的空记录，目录声明的默认设备分节预置为空序列。
func NewRecord(catalog Catalog) model.Record {
	r := model.Record{
		Contractor: model.ContractorInfo{ServiceAreas: []string{}},
		Equipment:  model.EquipmentBook{},
		Answers:    model.Answers{},
	}
	for _, key := range catalog.DefaultEquipmentSections() {
		r.Equipment.Ensure(key)
	}
	return r
}

// Record 返回当前记录的深拷贝。
func (e *Editor) Record() model.Record {
	return e.record.Clone()
}

// OnChange 注册变更监听，返回取消函数。
func (e *Editor) OnChange(l Listener) func() {
	e.listeners = append(e.listeners, l)
	idx := len(e.listeners) - 1
	return func() {
		if idx < len(e.listeners) {
			e.listeners[idx] = nil
		}
	}
}

func (e *Editor) changed() {
	for _, l := range e.listeners {
		if l != nil {
			l(e.record.Clone())
		}
	}
}

// Replace 整体替换当前记录（加载、撤销等场景）。
func (e *Editor) Replace(r model.Record) {
	e.record = r.Clone()
	e.changed()
}

// Reset 丢弃当前记录，换成全新的默认记录。
func (e *Editor) Reset() {
	e.record = NewRecord(e.catalog)
	e.changed()
}

// SetClientField 设置站点字段：serviceStationName / serviceStationAddress。
func (e *Editor) SetClientField(field, value string) error {
	switch field {
	case "serviceStationName":
		e.record.Client.StationName = value
	case "serviceStationAddress":
		e.record.Client.StationAddress = value
	default:
		return fmt.Errorf("client field %q: %w", field, ErrUnknownField)
	}
	e.changed()
	return nil
}

// SetResponsiblePersonField 设置站点负责人的联系人字段。
func (e *Editor) SetResponsiblePersonField(field, value string) error {
	if err := setPersonField(&e.record.Client.ResponsiblePerson, field, value); err != nil {
		return fmt.Errorf("responsible person: %w", err)
	}
	e.changed()
	return nil
}

// SetITResponsibleField 设置 IT 负责人的联系人字段。
func (e *Editor) SetITResponsibleField(field, value string) error {
	if err := setPersonField(&e.record.Client.ITResponsible, field, value); err != nil {
		return fmt.Errorf("it responsible: %w", err)
	}
	e.changed()
	return nil
}

// SetContactPersonField 设置承包商联系人的字段。
func (e *Editor) SetContactPersonField(field, value string) error {
	if err := setPersonField(&e.record.Contractor.ContactPerson, field, value); err != nil {
		return fmt.Errorf("contact person: %w", err)
	}
	e.changed()
	return nil
}

func setPersonField(p *model.PersonContact, field, value string) error {
	switch field {
	case "name":
		p.Name = value
	case "phone":
		p.Phone = value
	case "email":
		p.Email = value
	case "position":
		p.Position = value
	default:
		return fmt.Errorf("person field %q: %w", field, ErrUnknownField)
	}
	return nil
}

// SetContractorField 设置承包商的标量字段。
func (e *Editor) SetContractorField(field, value string) error {
	c := &e.record.Contractor
	switch field {
	case "companyName":
		c.CompanyName = value
	case "fullName":
		c.FullName = value
	case "phoneNumber":
		c.PhoneNumber = value
	case "licenseNumber":
		c.LicenseNumber = value
	default:
		return fmt.Errorf("contractor field %q: %w", field, ErrUnknownField)
	}
	e.changed()
	return nil
}

// 字段分组名，CLI 与 HTTP 接口按分组定位字段。
const (
	GroupClient      = "client"
	GroupResponsible = "responsible"
	GroupIT          = "it"
	GroupContractor  = "contractor"
	GroupContact     = "contact"
)

// SetField 按分组设置标量字段。
func (e *Editor) SetField(group, field, value string) error {
	switch group {
	case GroupClient:
		return e.SetClientField(field, value)
	case GroupResponsible:
		return e.SetResponsiblePersonField(field, value)
	case GroupIT:
		return e.SetITResponsibleField(field, value)
	case GroupContractor:
		return e.SetContractorField(field, value)
	case GroupContact:
		return e.SetContactPersonField(field, value)
	default:
		return fmt.Errorf("field group %q: %w", group, ErrUnknownField)
	}
}

// SetServiceAreas 整体替换服务区域列表（顺序保留，重复项保留）。
func (e *Editor) SetServiceAreas(areas []string) {
	e.record.Contractor.ServiceAreas = copyStrings(areas)
	e.changed()
}

// AddServiceArea 追加一个服务区域；去空白后为空则忽略并返回 false。
func (e *Editor) AddServiceArea(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" {
		return false
	}
	e.record.Contractor.ServiceAreas = append(e.record.Contractor.ServiceAreas, label)
	e.changed()
	return true
}

// RemoveServiceArea 按位置删除服务区域；越界时不做任何事。
func (e *Editor) RemoveServiceArea(index int) bool {
	areas := e.record.Contractor.ServiceAreas
	if index < 0 || index >= len(areas) {
		return false
	}
	next := make([]string, 0, len(areas)-1)
	next = append(next, areas[:index]...)
	next = append(next, areas[index+1:]...)
	e.record.Contractor.ServiceAreas = next
	e.changed()
	return true
}

// SetCertifications 整体替换承包商资质列表。
func (e *Editor) SetCertifications(certs []string) {
	e.record.Contractor.Certifications = copyStrings(certs)
	e.changed()
}

// SetAnswer 替换题目的答案。严格模式下题目必须在目录中，且答案形态与题目类型一致。
func (e *Editor) SetAnswer(qid model.QuestionID, value model.AnswerValue) error {
	if e.strict {
		q, ok := e.catalog.Question(qid)
		if !ok {
			return fmt.Errorf("set answer %s: %w", qid, ErrUnknownQuestion)
		}
		if !q.Kind.AcceptsAnswer(value.Kind) {
			return &AnswerKindError{Question: qid, Kind: q.Kind, Got: value.Kind}
		}
	}
	e.record.Answers.Set(qid, value)
	e.changed()
	return nil
}

// ToggleOption 勾选或取消多选题的一个选项。已勾选的选项不会重复加入。
func (e *Editor) ToggleOption(qid model.QuestionID, option string, checked bool) error {
	if e.strict {
		q, ok := e.catalog.Question(qid)
		if !ok {
			return fmt.Errorf("toggle option %s: %w", qid, ErrUnknownQuestion)
		}
		if q.Kind != model.KindMultiSelect {
			return &AnswerKindError{Question: qid, Kind: q.Kind, Got: model.AnswerList}
		}
	}

	var current []string
	if v, ok := e.record.Answers.Get(qid); ok && v.Kind == model.AnswerList {
		current = v.List
	}
	next := make([]string, 0, len(current)+1)
	present := false
	for _, o := range current {
		if o == option {
			present = true
			if !checked {
				continue
			}
		}
		next = append(next, o)
	}
	if checked && !present {
		next = append(next, option)
	}
	e.record.Answers.Set(qid, model.ListAnswer(next...))
	e.changed()
	return nil
}

// AddEquipment 在分节末尾追加一条设备。
// 型号去空白后为空时静默忽略（返回 false, nil）；分节不在目录中时返回 ErrUnknownSection。
// 端口、数量与状态按暂存区的规则规整。
func (e *Editor) AddEquipment(section model.SectionKey, item model.EquipmentItem) (bool, error) {
	if !e.catalog.HasSection(section) {
		return false, fmt.Errorf("add equipment to %s: %w", section, ErrUnknownSection)
	}
	if !item.Fillable() {
		return false, nil
	}
	e.record.Equipment.Append(section, normalizeItem(item))
	e.changed()
	return true, nil
}

// RemoveEquipment 删除分节中指定位置的设备；越界时不做任何事。
// 记录里已有但目录中没有的分节（旧数据）也允许删除。
func (e *Editor) RemoveEquipment(section model.SectionKey, position int) (bool, error) {
	if !e.catalog.HasSection(section) && !e.record.Equipment.Has(section) {
		return false, fmt.Errorf("remove equipment from %s: %w", section, ErrUnknownSection)
	}
	if !e.record.Equipment.RemoveAt(section, position) {
		return false, nil
	}
	e.changed()
	return true, nil
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
