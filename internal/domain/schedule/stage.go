package schedule

import (
	"time"

	"github.com/azrahudaya/remindcare/internal/domain/subject"
	"github.com/azrahudaya/remindcare/internal/timeutil"
)

// Stage is a sub-phase of the delivery-validation workflow.
type Stage int

const (
	StageNone Stage = iota
	// StageEarlyDaily polls once per day from the configured start week.
	StageEarlyDaily
	// StageAtEstimate polls on the estimated delivery date itself.
	StageAtEstimate
	// StagePlusThree polls from three days past the estimated delivery date.
	StagePlusThree
)

func (s Stage) String() string {
	switch s {
	case StageEarlyDaily:
		return "early-daily"
	case StageAtEstimate:
		return "at-estimate"
	case StagePlusThree:
		return "plus-three"
	default:
		return "none"
	}
}

// CurrentDeliveryStage picks the delivery-validation stage that applies now.
// The later stages supersede the earlier ones by plain date comparison, so a
// subject who never answers moves through them without extra state. Returns
// false once delivery is confirmed or before the start week.
func CurrentDeliveryStage(sub *subject.Subject, now time.Time, startWeek int) (Stage, bool) {
	if sub.Delivery.Confirmed() {
		return StageNone, false
	}
	lmpDay := sub.Profile.LMPDay.String
	edd, ok := EstimatedDeliveryDate(lmpDay, now.Location())
	if !ok {
		return StageNone, false
	}
	today := midnight(now)
	switch {
	case !today.Before(edd.AddDate(0, 0, 3)):
		return StagePlusThree, true
	case !today.Before(edd):
		return StageAtEstimate, true
	}
	week, ok := GestationalWeek(lmpDay, now)
	if ok && week >= startWeek {
		return StageEarlyDaily, true
	}
	return StageNone, false
}

// DeliveryPollDue reports the stage whose poll should go out now; a stage
// fires at most once per calendar day.
func DeliveryPollDue(sub *subject.Subject, now time.Time, startWeek int) (Stage, bool) {
	stage, ok := CurrentDeliveryStage(sub, now, startWeek)
	if !ok {
		return StageNone, false
	}
	if StageSentDay(sub.Delivery, stage) == timeutil.DayKey(now) {
		return stage, false
	}
	return stage, true
}

// StageSentDay returns the day key the given stage's poll last went out.
func StageSentDay(dv subject.DeliveryValidationState, stage Stage) string {
	switch stage {
	case StageEarlyDaily:
		return dv.EarlySentDay.String
	case StageAtEstimate:
		return dv.EstimateSentDay.String
	case StagePlusThree:
		return dv.PlusThreeSentDay.String
	default:
		return ""
	}
}

// MarkStageSent records the day key the given stage's poll went out.
func MarkStageSent(dv *subject.DeliveryValidationState, stage Stage, day string) {
	switch stage {
	case StageEarlyDaily:
		dv.EarlySentDay.String, dv.EarlySentDay.Valid = day, true
	case StageAtEstimate:
		dv.EstimateSentDay.String, dv.EstimateSentDay.Valid = day, true
	case StagePlusThree:
		dv.PlusThreeSentDay.String, dv.PlusThreeSentDay.Valid = day, true
	}
}
