package checklist

import (
	"fmt"
	"strconv"
	"strings"

	"cctv-checklist/internal/domain/model"
)

// Draft 是“正在录入的新设备”暂存区，不做持久化。
type Draft struct {
	item model.EquipmentItem
}

// NewDraft 返回默认状态的暂存区：状态 active，数量 1。
func NewDraft() *Draft {
	d := &Draft{}
	d.Reset()
	return d
}

// Reset 恢复默认值。
func (d *Draft) Reset() {
	one := 1
	d.item = model.EquipmentItem{Status: model.StatusActive, Quantity: &one}
}

// Item 返回暂存条目的副本。
func (d *Draft) Item() model.EquipmentItem {
	return d.item.Clone()
}

// StageField 修改暂存条目的一个字段。
//
// quantity 解析失败或不为正数时取 1；port 解析失败或不在 1..65535 时置空；
// status 只有 inactive 会被识别，其余一律 active。
func (d *Draft) StageField(field, value string) error {
	switch field {
	case "model":
		d.item.Model = value
	case "serialNumber":
		d.item.SerialNumber = value
	case "location":
		d.item.Location = value
	case "status":
		d.item.Status = model.ParseEquipmentStatus(value)
	case "quantity":
		q := parseQuantity(value)
		d.item.Quantity = &q
	case "ipAddress":
		d.item.IPAddress = value
	case "port":
		d.item.Port = parsePort(value)
	case "login":
		d.item.Login = value
	case "password":
		d.item.Password = value
	default:
		return fmt.Errorf("equipment field %q: %w", field, ErrUnknownField)
	}
	return nil
}

// Commit 把暂存条目的副本交给 Editor.AddEquipment，然后无论结果如何都重置暂存区。
func (d *Draft) Commit(e *Editor, section model.SectionKey) (bool, error) {
	item := d.item.Clone()
	d.Reset()
	return e.AddEquipment(section, item)
}

// normalizeItem 返回规整后的副本：端口不在 1..65535 时置空，数量不为正数时取 1，
// 状态只认 inactive。数量缺失保持缺失。
func normalizeItem(item model.EquipmentItem) model.EquipmentItem {
	out := item.Clone()
	if out.Port != nil && (*out.Port < 1 || *out.Port > 65535) {
		out.Port = nil
	}
	if out.Quantity != nil && *out.Quantity <= 0 {
		one := 1
		out.Quantity = &one
	}
	out.Status = model.ParseEquipmentStatus(string(out.Status))
	return out
}

func parseQuantity(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

func parsePort(v string) *int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 || n > 65535 {
		return nil
	}
	return &n
}
