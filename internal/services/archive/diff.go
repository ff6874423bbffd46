package archive

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// LineOp 是差异行的类型。
type LineOp string

const (
	LineSame    LineOp = " "
	LineAdded   LineOp = "+"
	LineRemoved LineOp = "-"
)

type DiffLine struct {
	Op   LineOp `json:"op"`
	Text string `json:"text"`
}

// Diff 是两份报告的逐行差异。
type Diff struct {
	Lines   []DiffLine `json:"lines"`
	Added   int        `json:"added"`
	Removed int        `json:"removed"`
}

// Changed 报告两份报告是否不同。
func (d Diff) Changed() bool { return d.Added > 0 || d.Removed > 0 }

// String 以 "+ / - / 空格" 前缀输出全部行。
func (d Diff) String() string {
	var b strings.Builder
	for _, l := range d.Lines {
		b.WriteString(string(l.Op))
		b.WriteString(" ")
		b.WriteString(l.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// DiffReports 按行比较两份报告。
func DiffReports(oldText, newText string) Diff {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	out := Diff{Lines: []DiffLine{}}
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		if text == "" && d.Text == "" {
			continue
		}
		for _, line := range strings.Split(text, "\n") {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				out.Lines = append(out.Lines, DiffLine{Op: LineSame, Text: line})
			case diffmatchpatch.DiffDelete:
				out.Lines = append(out.Lines, DiffLine{Op: LineRemoved, Text: line})
				out.Removed++
			case diffmatchpatch.DiffInsert:
				out.Lines = append(out.Lines, DiffLine{Op: LineAdded, Text: line})
				out.Added++
			}
		}
	}
	return out
}
