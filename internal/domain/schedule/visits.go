package schedule

import (
	"fmt"
	"time"

	"github.com/azrahudaya/remindcare/internal/timeutil"
)

// VisitDef is one of the seven fixed postpartum/neonatal visits, identified
// by its code and offset in hours from the delivery instant.
type VisitDef struct {
	Code      string
	StartHour int
	Title     string
}

// Visits is the fixed postpartum visit schedule: maternal (KF) and neonatal
// (KN) visits at 6h, 72h, 192h and 696h after delivery.
func Visits() []VisitDef {
	return []VisitDef{
		{Code: "KF1", StartHour: 6, Title: "Kunjungan nifas ke-1 (6 jam - 2 hari)"},
		{Code: "KN1", StartHour: 6, Title: "Kunjungan neonatal ke-1 (6 - 48 jam)"},
		{Code: "KF2", StartHour: 72, Title: "Kunjungan nifas ke-2 (hari ke-3 - 7)"},
		{Code: "KN2", StartHour: 72, Title: "Kunjungan neonatal ke-2 (hari ke-3 - 7)"},
		{Code: "KF3", StartHour: 192, Title: "Kunjungan nifas ke-3 (hari ke-8 - 28)"},
		{Code: "KN3", StartHour: 192, Title: "Kunjungan neonatal ke-3 (hari ke-8 - 28)"},
		{Code: "KF4", StartHour: 696, Title: "Kunjungan nifas ke-4 (hari ke-29 - 42)"},
	}
}

// VisitTitle resolves a visit code to its display title.
func VisitTitle(code string) string {
	for _, def := range Visits() {
		if def.Code == code {
			return def.Title
		}
	}
	return code
}

// DeliveryInstant combines the recorded delivery day and clock time into the
// instant visit due times are computed from.
func DeliveryInstant(day, hhmm string, loc *time.Location) (time.Time, error) {
	d, err := timeutil.ParseDayKey(day, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid delivery day %q: %w", day, err)
	}
	return timeutil.AtClockTime(d, hhmm)
}

// VisitDueAt returns the due instant for one visit: delivery + start hour.
func VisitDueAt(delivery time.Time, def VisitDef) time.Time {
	return delivery.Add(time.Duration(def.StartHour) * time.Hour)
}
