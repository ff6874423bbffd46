package recordview

import (
	"fmt"
	"strings"

	"cctv-checklist/internal/domain/model"
)

// Catalog 提供题目总数与分节信息，*schema.Catalog 实现了它。
type Catalog interface {
	Sections() []model.Section
	Question(id model.QuestionID) (model.Question, bool)
	QuestionCount() int
}

// 检查项编码。
const (
	CheckStationName   = "station_name"
	CheckResponsible   = "responsible_person"
	CheckDeliveryEmail = "delivery_email"
	CheckContractor    = "contractor"
	CheckEquipment     = "equipment_present"
	CheckEquipmentNet  = "equipment_network"
	CheckAnswers       = "answers_complete"
)

// Build 汇总工作记录，附带提交前的完整性检查。
// 检查只做存在性判断，失败不阻止提交。
func Build(r model.Record, cat Catalog, archiveCount int) model.RecordOverview {
	ov := model.RecordOverview{
		StationName:     r.Client.StationName,
		StationAddress:  r.Client.StationAddress,
		ResponsibleName: r.Client.ResponsiblePerson.Name,
		ContractorName:  r.Contractor.CompanyName,
		EquipmentCounts: map[string]int{},
		ArchiveCount:    archiveCount,
	}
	for _, g := range r.Equipment {
		ov.EquipmentCounts[string(g.Section)] = len(g.Items)
		ov.EquipmentTotal += len(g.Items)
	}
	if cat != nil {
		ov.QuestionCount = cat.QuestionCount()
	}
	for _, a := range r.Answers {
		if strings.TrimSpace(a.Value.String()) == "" {
			continue
		}
		if cat != nil {
			if _, ok := cat.Question(a.Question); !ok {
				continue
			}
		}
		ov.AnsweredCount++
	}
	ov.Checks = checks(r, ov)
	return ov
}

func checks(r model.Record, ov model.RecordOverview) []model.CheckResult {
	present := func(code, name string, required bool, v, missing string) model.CheckResult {
		c := model.CheckResult{Code: code, Name: name, Required: required, Status: model.CheckPassed}
		if strings.TrimSpace(v) == "" {
			c.Status = model.CheckFailed
			c.Message = missing
		}
		return c
	}

	out := []model.CheckResult{
		present(CheckStationName, "Назва станції", true, r.Client.StationName, "назву станції не вказано"),
		present(CheckResponsible, "Відповідальна особа", true, r.Client.ResponsiblePerson.Name, "ПІБ відповідальної особи не вказано"),
		present(CheckDeliveryEmail, "Email для звіту", false, r.Client.ResponsiblePerson.Email, "звіт не буде надіслано на email"),
		present(CheckContractor, "Підрядник", true, r.Contractor.CompanyName, "компанію підрядника не вказано"),
	}

	eq := model.CheckResult{Code: CheckEquipment, Name: "Обладнання", Required: true, Status: model.CheckPassed}
	if ov.EquipmentTotal == 0 {
		eq.Status = model.CheckFailed
		eq.Message = "не додано жодного пристрою"
	}
	out = append(out, eq)

	// 有 IP 却没有端口的设备只做提示
	net := model.CheckResult{Code: CheckEquipmentNet, Name: "Мережеві параметри", Status: model.CheckPassed}
	var missingPort []string
	for _, g := range r.Equipment {
		for i, it := range g.Items {
			if it.IPAddress != "" && it.Port == nil {
				missingPort = append(missingPort, fmt.Sprintf("%s#%d", g.Section, i+1))
			}
		}
	}
	switch {
	case ov.EquipmentTotal == 0:
		net.Status = model.CheckSkipped
	case len(missingPort) > 0:
		net.Status = model.CheckFailed
		net.Message = "без порту: " + strings.Join(missingPort, ", ")
	}
	out = append(out, net)

	ans := model.CheckResult{Code: CheckAnswers, Name: "Відповіді на запитання", Status: model.CheckPassed}
	switch {
	case ov.QuestionCount == 0:
		ans.Status = model.CheckSkipped
	case ov.AnsweredCount < ov.QuestionCount:
		ans.Status = model.CheckFailed
		ans.Message = fmt.Sprintf("відповіді: %d з %d", ov.AnsweredCount, ov.QuestionCount)
	}
	out = append(out, ans)
	return out
}

// Ready 报告所有必需检查是否通过。
func Ready(ov model.RecordOverview) bool {
	for _, c := range ov.Checks {
		if c.Required && c.Status == model.CheckFailed {
			return false
		}
	}
	return true
}
