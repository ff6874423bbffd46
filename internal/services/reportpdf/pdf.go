package reportpdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"cctv-checklist/internal/domain/model"
	"cctv-checklist/internal/services/report"

	"github.com/phpdave11/gofpdf"
)

// MediaType 是 PDF 导出文件的媒体类型。
const MediaType = "application/pdf"

// Options 控制 PDF 内容。
type Options struct {
	Masked  bool
	Catalog report.Catalog
	// GeneratedAt 为零时使用当前时间。
	GeneratedAt time.Time
	// Snapshot 非空时在页首写入存档身份与链式哈希。
	Snapshot *model.ArchivedSnapshot
}

// Write 生成 PDF 并写入 w。段落顺序与 HTML 报告一致，密码从不输出。
func Write(w io.Writer, r model.Record, opts Options) error {
	pdf := build(r, opts)
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// Bytes 生成 PDF 并返回内容。
func Bytes(r model.Record, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, r, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func build(r model.Record, opts Options) *gofpdf.Fpdf {
	if opts.Masked {
		r = report.MaskRecord(r)
	}
	generatedAt := opts.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(true, 14)
	pdf.SetTitle(report.Title, true)
	pdf.SetCreationDate(generatedAt)

	font, utf8OK := initPDFUnicodeFont(pdf)
	pdf.AddPage()

	pdf.SetFont(font, "B", 16)
	pdf.CellFormat(0, 9, safeText(report.Title, utf8OK), "", 1, "L", false, 0, "")
	pdf.SetFont(font, "", 9)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(0, 5, "Generated at: "+generatedAt.Format("2006-01-02 15:04:05"), "", 1, "L", false, 0, "")
	if s := opts.Snapshot; s != nil {
		pdf.CellFormat(0, 5, fmt.Sprintf("Archive: #%d %s (%s)", s.Seq, s.Identity(), s.Timestamp), "", 1, "L", false, 0, "")
		if s.ChainHash != "" {
			pdf.CellFormat(0, 5, "Chain hash: "+s.ChainHash, "", 1, "L", false, 0, "")
		}
	}
	if !utf8OK {
		pdf.SetTextColor(120, 80, 0)
		pdf.MultiCell(0, 4.5, "pdf utf8 font not available; non-ascii text is replaced with '?' (set CHECKLIST_PDF_FONT)", "", "L", false)
	}
	pdf.Ln(2)

	sectionTitle(pdf, font, utf8OK, "Інформація про клієнта")
	kv(pdf, font, utf8OK, "Назва станції", r.Client.StationName)
	kv(pdf, font, utf8OK, "Адреса", r.Client.StationAddress)
	person(pdf, font, utf8OK, "Відповідальна особа", r.Client.ResponsiblePerson)
	if !r.Client.ITResponsible.IsZero() {
		person(pdf, font, utf8OK, "Відповідальна особа з IT", r.Client.ITResponsible)
	}
	pdf.Ln(2)

	sectionTitle(pdf, font, utf8OK, "Інформація про підрядника")
	kv(pdf, font, utf8OK, "Компанія", r.Contractor.CompanyName)
	kv(pdf, font, utf8OK, "ПІБ", r.Contractor.FullName)
	kv(pdf, font, utf8OK, "Телефон", r.Contractor.PhoneNumber)
	kv(pdf, font, utf8OK, "Зони обслуговування", strings.Join(r.Contractor.ServiceAreas, ", "))
	if r.Contractor.LicenseNumber != "" {
		kv(pdf, font, utf8OK, "Ліцензія", r.Contractor.LicenseNumber)
	}
	if len(r.Contractor.Certifications) > 0 {
		kv(pdf, font, utf8OK, "Сертифікати", strings.Join(r.Contractor.Certifications, ", "))
	}
	if !r.Contractor.ContactPerson.IsZero() {
		person(pdf, font, utf8OK, "Контактна особа", r.Contractor.ContactPerson)
	}
	pdf.Ln(2)

	sectionTitle(pdf, font, utf8OK, "Обладнання")
	for _, g := range r.Equipment {
		title := string(g.Section)
		if opts.Catalog != nil {
			if s, ok := opts.Catalog.Section(g.Section); ok {
				title = s.Title
			}
		}
		pdf.SetFont(font, "B", 10)
		pdf.SetTextColor(30, 30, 30)
		pdf.CellFormat(0, 6, safeText(fmt.Sprintf("%s (%d)", title, len(g.Items)), utf8OK), "", 1, "L", false, 0, "")
		for i, it := range g.Items {
			equipmentRow(pdf, font, utf8OK, i+1, it)
		}
	}
	pdf.Ln(2)

	sectionTitle(pdf, font, utf8OK, "Відповіді на запитання")
	for _, a := range r.Answers {
		key := string(a.Question)
		if opts.Catalog != nil {
			if q, ok := opts.Catalog.Question(a.Question); ok {
				key = q.Label
			}
		}
		pdf.SetFont(font, "B", 9)
		pdf.SetTextColor(30, 30, 30)
		pdf.MultiCell(0, 4.8, safeText(key, utf8OK), "", "L", false)
		pdf.SetFont(font, "", 9)
		pdf.SetTextColor(20, 20, 20)
		pdf.MultiCell(0, 4.8, safeText(valueOrDash(a.Value.String()), utf8OK), "", "L", false)
	}
	return pdf
}

func person(pdf *gofpdf.Fpdf, font string, utf8OK bool, title string, p model.PersonContact) {
	pdf.SetFont(font, "B", 10)
	pdf.CellFormat(0, 6, safeText(title, utf8OK), "", 1, "L", false, 0, "")
	kv(pdf, font, utf8OK, "ПІБ", p.Name)
	kv(pdf, font, utf8OK, "Телефон", p.Phone)
	kv(pdf, font, utf8OK, "Email", p.Email)
	kv(pdf, font, utf8OK, "Посада", p.Position)
}

func equipmentRow(pdf *gofpdf.Fpdf, font string, utf8OK bool, n int, it model.EquipmentItem) {
	parts := []string{fmt.Sprintf("%d. %s", n, it.Model)}
	if it.SerialNumber != "" {
		parts = append(parts, "S/N "+it.SerialNumber)
	}
	if it.Quantity != nil && *it.Quantity != 0 {
		parts = append(parts, "x"+strconv.Itoa(*it.Quantity))
	}
	if it.Location != "" {
		parts = append(parts, it.Location)
	}
	if it.IPAddress != "" {
		addr := it.IPAddress
		if it.Port != nil && *it.Port != 0 {
			addr += ":" + strconv.Itoa(*it.Port)
		}
		parts = append(parts, addr)
	}
	if it.Login != "" {
		parts = append(parts, "login "+it.Login)
	}
	parts = append(parts, it.Status.Label())

	pdf.SetFont(font, "", 9)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 4.8, safeText(strings.Join(parts, " | "), utf8OK), "", "L", false)
}

func sectionTitle(pdf *gofpdf.Fpdf, font string, utf8OK bool, title string) {
	pdf.SetFont(font, "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 7, safeText(title, utf8OK), "", 1, "L", false, 0, "")
	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(pdf.GetX(), pdf.GetY(), 196, pdf.GetY())
	pdf.Ln(2)
}

func kv(pdf *gofpdf.Fpdf, font string, utf8OK bool, key, value string) {
	pdf.SetFont(font, "B", 10)
	pdf.SetTextColor(30, 30, 30)
	pdf.CellFormat(48, 5.2, safeText(key, utf8OK)+":", "", 0, "L", false, 0, "")
	pdf.SetFont(font, "", 10)
	pdf.SetTextColor(20, 20, 20)
	pdf.MultiCell(0, 5.2, safeText(valueOrDash(value), utf8OK), "", "L", false)
}

func valueOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

// safeText 去掉控制字符；没有 UTF-8 字体时把非 ASCII 字符替换为 '?'，保证 PDF 一定能生成。
func safeText(s string, utf8OK bool) string {
	s = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(s)
	s = strings.TrimSpace(s)
	if utf8OK {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteRune('?')
		}
	}
	return b.String()
}

// initPDFUnicodeFont 尝试加载支持西里尔字母的 TrueType 字体。
// 优先 CHECKLIST_PDF_FONT，其次常见系统路径；都失败时回退到 Helvetica。
func initPDFUnicodeFont(pdf *gofpdf.Fpdf) (family string, utf8OK bool) {
	const familyName = "unicode"
	candidates := []string{}
	if v := strings.TrimSpace(os.Getenv("CHECKLIST_PDF_FONT")); v != "" {
		candidates = append(candidates, v)
	}

	switch runtime.GOOS {
	case "darwin":
		candidates = append(candidates,
			"/System/Library/Fonts/Supplemental/Arial Unicode.ttf",
			"/System/Library/Fonts/Supplemental/Arial.ttf",
		)
	case "windows":
		candidates = append(candidates,
			`C:\Windows\Fonts\arial.ttf`,
			`C:\Windows\Fonts\arialuni.ttf`,
		)
	default:
		candidates = append(candidates,
			"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/dejavu/DejaVuSans.ttf",
			"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
			"/usr/share/fonts/truetype/freefont/FreeSans.ttf",
		)
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		pdf.AddUTF8Font(familyName, "", p)
		if pdf.Err() {
			pdf.ClearError()
			continue
		}
		// 同一文件注册 B 样式，避免 SetFont(...,"B",...) 报错
		pdf.AddUTF8Font(familyName, "B", p)
		if pdf.Err() {
			pdf.ClearError()
		}
		return familyName, true
	}
	return "Helvetica", false
}
