package model

import "strings"

// PersonContact 是联系人信息，四个字段均为自由文本，本层不做必填校验。
type PersonContact struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Position string `json:"position"`
}

// IsZero 报告联系人是否一个字段都没有填写。
func (p PersonContact) IsZero() bool {
	return strings.TrimSpace(p.Name) == "" &&
		strings.TrimSpace(p.Phone) == "" &&
		strings.TrimSpace(p.Email) == "" &&
		strings.TrimSpace(p.Position) == ""
}

// ClientInfo 是被检查站点（客户）信息。
// JSON 字段名与原有 checklist_form_data 存档保持一致，旧数据可直接加载。
type ClientInfo struct {
	StationName       string        `json:"serviceStationName"`
	StationAddress    string        `json:"serviceStationAddress"`
	ResponsiblePerson PersonContact `json:"responsiblePerson"`
	ITResponsible     PersonContact `json:"itResponsible"`
}

// ContractorInfo 是承包商（安装/维护方）信息。
// ServiceAreas 保持插入顺序，重复项不做拒绝。
type ContractorInfo struct {
	CompanyName    string        `json:"companyName"`
	FullName       string        `json:"fullName"`
	PhoneNumber    string        `json:"phoneNumber"`
	ContactPerson  PersonContact `json:"contactPerson"`
	ServiceAreas   []string      `json:"serviceAreas"`
	LicenseNumber  string        `json:"licenseNumber,omitempty"`
	Certifications []string      `json:"certifications,omitempty"`
}

// EquipmentStatus 是设备状态（二值枚举）。
type EquipmentStatus string

const (
	// StatusActive 表示设备在用。
	StatusActive EquipmentStatus = "active"
	// StatusInactive 表示设备停用。
	StatusInactive EquipmentStatus = "inactive"
)

// Label 返回报告中展示的状态文字。
func (s EquipmentStatus) Label() string {
	if s == StatusActive {
		return "Активний"
	}
	return "Неактивний"
}

// ParseEquipmentStatus 只识别 inactive，其余一律视为 active（与录入界面默认值一致）。
func ParseEquipmentStatus(v string) EquipmentStatus {
	if strings.EqualFold(strings.TrimSpace(v), string(StatusInactive)) {
		return StatusInactive
	}
	return StatusActive
}

// EquipmentItem 表示一条设备子记录（摄像机、录像机、网络设备等）。
//
// Model 是唯一的“可录入门槛”：去空白后为空的条目不会被加入记录。
// Password 原样保存（不做加密），但任何报告渲染都不会输出它。
type EquipmentItem struct {
	Model        string          `json:"model"`
	SerialNumber string          `json:"serialNumber,omitempty"`
	Location     string          `json:"location,omitempty"`
	Status       EquipmentStatus `json:"status"`
	Quantity     *int            `json:"quantity,omitempty"`
	IPAddress    string          `json:"ipAddress,omitempty"`
	Port         *int            `json:"port,omitempty"`
	Login        string          `json:"login,omitempty"`
	Password     string          `json:"password,omitempty"`
}

// Clone 返回深拷贝（指针字段也复制）。
func (e EquipmentItem) Clone() EquipmentItem {
	out := e
	if e.Quantity != nil {
		q := *e.Quantity
		out.Quantity = &q
	}
	if e.Port != nil {
		p := *e.Port
		out.Port = &p
	}
	return out
}

// Fillable 报告该条目是否满足入库门槛（型号非空）。
func (e EquipmentItem) Fillable() bool {
	return strings.TrimSpace(e.Model) != ""
}

// Record 是一份进行中的检查清单的完整状态。
type Record struct {
	Client     ClientInfo     `json:"clientInfo"`
	Contractor ContractorInfo `json:"contractor"`
	Equipment  EquipmentBook  `json:"equipment"`
	Answers    Answers        `json:"answers"`
}

// Clone 返回与原对象不共享任何可变引用的副本。
func (r Record) Clone() Record {
	out := r
	out.Contractor.ServiceAreas = cloneStrings(r.Contractor.ServiceAreas)
	out.Contractor.Certifications = cloneStrings(r.Contractor.Certifications)
	out.Equipment = r.Equipment.Clone()
	out.Answers = r.Answers.Clone()
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneItems(in []EquipmentItem) []EquipmentItem {
	if in == nil {
		return nil
	}
	out := make([]EquipmentItem, len(in))
	for i, it := range in {
		out[i] = it.Clone()
	}
	return out
}
