package report

import (
	"net"
	"strings"
	"unicode"

	"cctv-checklist/internal/domain/model"
)

// MaskRecord 对记录做“展示层脱敏”（不修改原记录），用于对外分享的报告：
// 电话只保留末两位，邮箱只保留首字母和域名，IP 只保留第一段，登录名整体隐藏。
func MaskRecord(r model.Record) model.Record {
	out := r.Clone()
	out.Client.ResponsiblePerson = maskPerson(out.Client.ResponsiblePerson)
	out.Client.ITResponsible = maskPerson(out.Client.ITResponsible)
	out.Contractor.PhoneNumber = MaskPhone(out.Contractor.PhoneNumber)
	out.Contractor.ContactPerson = maskPerson(out.Contractor.ContactPerson)
	for gi := range out.Equipment {
		for ii := range out.Equipment[gi].Items {
			out.Equipment[gi].Items[ii] = maskItem(out.Equipment[gi].Items[ii])
		}
	}
	for ai := range out.Answers {
		v := &out.Answers[ai].Value
		for ii := range v.Equipment {
			v.Equipment[ii] = maskItem(v.Equipment[ii])
		}
	}
	return out
}

func maskPerson(p model.PersonContact) model.PersonContact {
	p.Phone = MaskPhone(p.Phone)
	p.Email = MaskEmail(p.Email)
	return p
}

func maskItem(it model.EquipmentItem) model.EquipmentItem {
	it.IPAddress = MaskIP(it.IPAddress)
	if strings.TrimSpace(it.Login) != "" {
		it.Login = "<masked>"
	}
	it.Password = ""
	return it
}

// MaskPhone 隐藏电话号码中除最后两位以外的数字，保留格式字符。
func MaskPhone(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	digits := 0
	for _, r := range v {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	var b strings.Builder
	seen := 0
	for _, r := range v {
		if unicode.IsDigit(r) {
			seen++
			if seen <= digits-2 {
				b.WriteRune('*')
				continue
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MaskEmail 把 user@example.org 变成 u***@example.org；不是邮箱时返回 "<masked>"。
func MaskEmail(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	at := strings.LastIndex(v, "@")
	if at <= 0 || at == len(v)-1 {
		return "<masked>"
	}
	first := []rune(v[:at])[0]
	return string(first) + "***" + v[at:]
}

// MaskIP 保留 IPv4 第一段（10.x.x.x）；IPv6 只保留前缀；其他输入返回 "<masked>"。
func MaskIP(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	ip := net.ParseIP(v)
	if ip == nil {
		return "<masked>"
	}
	if ip4 := ip.To4(); ip4 != nil {
		return strings.SplitN(ip4.String(), ".", 2)[0] + ".x.x.x"
	}
	parts := strings.SplitN(ip.String(), ":", 2)
	return parts[0] + ":..."
}
