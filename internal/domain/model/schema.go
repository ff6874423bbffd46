package model

// QuestionKind 是题目的答案类型标签。
type QuestionKind string

const (
	KindYesNo       QuestionKind = "yesno"
	KindSelect      QuestionKind = "select"
	KindMultiSelect QuestionKind = "multiselect"
	KindText        QuestionKind = "text"
	KindTextarea    QuestionKind = "textarea"
	KindNumber      QuestionKind = "number"
	KindEquipment   QuestionKind = "equipment"
)

// Valid 报告是否为已知类型。
func (k QuestionKind) Valid() bool {
	switch k {
	case KindYesNo, KindSelect, KindMultiSelect, KindText, KindTextarea, KindNumber, KindEquipment:
		return true
	}
	return false
}

// HasOptions 报告该类型是否需要固定选项列表。
func (k QuestionKind) HasOptions() bool {
	return k == KindSelect || k == KindMultiSelect
}

// AcceptsAnswer 报告该类型题目可以接受哪种答案值。
func (k QuestionKind) AcceptsAnswer(a AnswerKind) bool {
	switch k {
	case KindMultiSelect:
		return a == AnswerList
	case KindEquipment:
		return a == AnswerEquipment
	default:
		return a == AnswerText
	}
}

// ExpectedAnswer 返回该类型题目对应的答案值类型。
func (k QuestionKind) ExpectedAnswer() AnswerKind {
	switch k {
	case KindMultiSelect:
		return AnswerList
	case KindEquipment:
		return AnswerEquipment
	default:
		return AnswerText
	}
}

// Question 是问卷中的一道题。
type Question struct {
	ID      QuestionID   `yaml:"id" json:"id"`
	Label   string       `yaml:"label" json:"label"`
	Kind    QuestionKind `yaml:"kind" json:"kind"`
	Options []string     `yaml:"options,omitempty" json:"options,omitempty"`
	// Suggestions 是设备题的常见型号提示，只用于录入界面。
	Suggestions []string `yaml:"suggestions,omitempty" json:"suggestions,omitempty"`
}

// Section 是问卷的一个分节，题目保持声明顺序。
type Section struct {
	Key       SectionKey `yaml:"key" json:"key"`
	Title     string     `yaml:"title" json:"title"`
	Icon      string     `yaml:"icon,omitempty" json:"icon,omitempty"`
	Questions []Question `yaml:"questions" json:"questions"`
}

// SchemaBundle 是问卷目录文件的顶层结构。
type SchemaBundle struct {
	Version          string       `yaml:"version" json:"version"`
	BundleType       string       `yaml:"bundle_type" json:"bundle_type"`
	Maintainer       string       `yaml:"maintainer,omitempty" json:"maintainer,omitempty"`
	Description      string       `yaml:"description,omitempty" json:"description,omitempty"`
	DefaultEquipment []SectionKey `yaml:"default_equipment" json:"default_equipment"`
	Sections         []Section    `yaml:"sections" json:"sections"`
}

// YesNoOptions 是是/否题的固定选项。
var YesNoOptions = []string{"Так", "Ні"}
