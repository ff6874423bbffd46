package report

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"cctv-checklist/internal/domain/model"
)

// Title 是报告标题，也用于邮件主题。
const Title = "Чек-лист системи відеоспостереження"

// Catalog 为报告提供分节标题与题目文字，*schema.Catalog 实现了它。
type Catalog interface {
	Section(key model.SectionKey) (model.Section, bool)
	Question(id model.QuestionID) (model.Question, bool)
}

// Options 控制报告的展示方式。零值输出与原始存档格式一致的报告。
type Options struct {
	// Masked 对电话、邮箱、IP、登录名脱敏。
	Masked bool
	// Catalog 非空时，设备分组显示分节标题，答案行在题目 ID 后附上题目文字。
	Catalog Catalog
}

// Renderer 把记录渲染为报告。纯函数，不修改记录，对同一输入输出逐字节相同。
type Renderer struct {
	opts Options
}

func New(opts Options) *Renderer {
	return &Renderer{opts: opts}
}

// Render 使用默认选项渲染 HTML 报告。
func Render(r model.Record) string {
	return New(Options{}).Render(r)
}

// RenderText 使用默认选项渲染纯文本报告。
func RenderText(r model.Record) string {
	return New(Options{}).RenderText(r)
}

// 报告中的一行“标签: 值”。
type line struct {
	Label string
	Value string
}

type group struct {
	Title string
	Items [][]line
}

type answerLine struct {
	Key   string
	Value string
}

// view 是渲染前展开好的报告结构，HTML 与文本共用。
type view struct {
	Title       string
	Client      []line
	Responsible []line
	IT          []line
	Contractor  []line
	Contact     []line
	Equipment   []group
	Answers     []answerLine
}

func (rd *Renderer) build(r model.Record) view {
	if rd.opts.Masked {
		r = MaskRecord(r)
	}
	v := view{Title: Title}

	v.Client = []line{
		{"Назва станції", r.Client.StationName},
		{"Адреса", r.Client.StationAddress},
	}
	v.Responsible = personLines(r.Client.ResponsiblePerson)
	if !r.Client.ITResponsible.IsZero() {
		v.IT = personLines(r.Client.ITResponsible)
	}

	v.Contractor = []line{
		{"Компанія", r.Contractor.CompanyName},
		{"ПІБ", r.Contractor.FullName},
		{"Телефон", r.Contractor.PhoneNumber},
		{"Зони обслуговування", strings.Join(r.Contractor.ServiceAreas, ", ")},
	}
	if strings.TrimSpace(r.Contractor.LicenseNumber) != "" {
		v.Contractor = append(v.Contractor, line{"Ліцензія", r.Contractor.LicenseNumber})
	}
	if len(r.Contractor.Certifications) > 0 {
		v.Contractor = append(v.Contractor, line{"Сертифікати", strings.Join(r.Contractor.Certifications, ", ")})
	}
	if !r.Contractor.ContactPerson.IsZero() {
		v.Contact = personLines(r.Contractor.ContactPerson)
	}

	for _, g := range r.Equipment {
		out := group{Title: rd.sectionTitle(g.Section)}
		for _, it := range g.Items {
			out.Items = append(out.Items, itemLines(it))
		}
		v.Equipment = append(v.Equipment, out)
	}

	for _, a := range r.Answers {
		v.Answers = append(v.Answers, answerLine{Key: rd.questionKey(a.Question), Value: a.Value.String()})
	}
	return v
}

func personLines(p model.PersonContact) []line {
	return []line{
		{"ПІБ", p.Name},
		{"Телефон", p.Phone},
		{"Email", p.Email},
		{"Посада", p.Position},
	}
}

// itemLines 列出设备的型号、已填写的可选字段和状态。密码从不输出。
func itemLines(it model.EquipmentItem) []line {
	out := []line{{"Модель", it.Model}}
	if it.SerialNumber != "" {
		out = append(out, line{"Серійний номер", it.SerialNumber})
	}
	if it.Quantity != nil && *it.Quantity != 0 {
		out = append(out, line{"Кількість", strconv.Itoa(*it.Quantity)})
	}
	if it.Location != "" {
		out = append(out, line{"Розташування", it.Location})
	}
	if it.IPAddress != "" {
		out = append(out, line{"IP адреса", it.IPAddress})
	}
	if it.Port != nil && *it.Port != 0 {
		out = append(out, line{"Порт", strconv.Itoa(*it.Port)})
	}
	if it.Login != "" {
		out = append(out, line{"Логін", it.Login})
	}
	out = append(out, line{"Статус", it.Status.Label()})
	return out
}

func (rd *Renderer) sectionTitle(key model.SectionKey) string {
	if rd.opts.Catalog != nil {
		if s, ok := rd.opts.Catalog.Section(key); ok {
			return s.Title
		}
	}
	return string(key)
}

func (rd *Renderer) questionKey(id model.QuestionID) string {
	if rd.opts.Catalog != nil {
		if q, ok := rd.opts.Catalog.Question(id); ok {
			return fmt.Sprintf("%s (%s)", id, strings.TrimSuffix(strings.TrimSpace(q.Label), ":"))
		}
	}
	return string(id)
}

// Render 渲染 HTML 报告；所有值都经过 HTML 转义。
func (rd *Renderer) Render(r model.Record) string {
	v := rd.build(r)
	var b strings.Builder
	esc := html.EscapeString
	paras := func(ls []line) {
		for _, l := range ls {
			fmt.Fprintf(&b, "<p>%s: %s</p>\n", esc(l.Label), esc(l.Value))
		}
	}

	fmt.Fprintf(&b, "<h2>%s</h2>\n", esc(v.Title))
	b.WriteString("<h3>Інформація про клієнта</h3>\n")
	paras(v.Client)
	b.WriteString("<h4>Відповідальна особа</h4>\n")
	paras(v.Responsible)
	if v.IT != nil {
		b.WriteString("<h4>Відповідальна особа з IT</h4>\n")
		paras(v.IT)
	}

	b.WriteString("<h3>Інформація про підрядника</h3>\n")
	paras(v.Contractor)
	if v.Contact != nil {
		b.WriteString("<h4>Контактна особа</h4>\n")
		paras(v.Contact)
	}

	b.WriteString("<h3>Обладнання</h3>\n")
	for _, g := range v.Equipment {
		fmt.Fprintf(&b, "<h4>%s</h4>\n<ul>\n", esc(g.Title))
		for _, it := range g.Items {
			b.WriteString("<li>")
			for i, l := range it {
				if i > 0 {
					b.WriteString("<br>")
				}
				fmt.Fprintf(&b, "<strong>%s:</strong> %s", esc(l.Label), esc(l.Value))
			}
			b.WriteString("</li>\n")
		}
		b.WriteString("</ul>\n")
	}

	b.WriteString("<h3>Відповіді на запитання</h3>\n")
	for _, a := range v.Answers {
		fmt.Fprintf(&b, "<p><strong>%s:</strong> %s</p>\n", esc(a.Key), esc(a.Value))
	}
	return b.String()
}

// RenderText 渲染纯文本报告，段落顺序与 HTML 相同。
func (rd *Renderer) RenderText(r model.Record) string {
	v := rd.build(r)
	var b strings.Builder
	heading := func(s string) {
		fmt.Fprintf(&b, "\n== %s ==\n", s)
	}
	lines := func(ls []line, indent string) {
		for _, l := range ls {
			fmt.Fprintf(&b, "%s%s: %s\n", indent, l.Label, l.Value)
		}
	}

	b.WriteString(v.Title + "\n")
	heading("Інформація про клієнта")
	lines(v.Client, "")
	b.WriteString("-- Відповідальна особа --\n")
	lines(v.Responsible, "  ")
	if v.IT != nil {
		b.WriteString("-- Відповідальна особа з IT --\n")
		lines(v.IT, "  ")
	}
	heading("Інформація про підрядника")
	lines(v.Contractor, "")
	if v.Contact != nil {
		b.WriteString("-- Контактна особа --\n")
		lines(v.Contact, "  ")
	}
	heading("Обладнання")
	for _, g := range v.Equipment {
		fmt.Fprintf(&b, "-- %s (%d) --\n", g.Title, len(g.Items))
		for i, it := range g.Items {
			fmt.Fprintf(&b, "  #%d\n", i+1)
			lines(it, "    ")
		}
	}
	heading("Відповіді на запитання")
	for _, a := range v.Answers {
		fmt.Fprintf(&b, "%s: %s\n", a.Key, a.Value)
	}
	return b.String()
}
