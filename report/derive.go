package report

import "report-composer-go/models"

// Derive computes the report shown for current: shared fields, then the
// student's override, then the student's own name and grade. A nil current
// yields shared unchanged.
func Derive(shared models.ReportFields, overrides models.OverrideMap, current *models.StudentRef) models.ReportFields {
	if current == nil {
		return shared
	}
	out := overrides[current.Name].Apply(shared)
	out.Name = current.Name
	out.Grade = current.Grade
	return out
}
