package reminderlog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/azrahudaya/remindcare/internal/domain/parse"
)

func TestCheckinLogRecordCap(t *testing.T) {
	log := &CheckinLog{ChatID: "628111", Day: "2024-10-07"}

	assert.True(t, log.Record(parse.AnswerDone, 2))
	assert.True(t, log.Record(parse.AnswerDone, 2))
	// Third same-kind answer in one day is rejected but the answer value stays.
	assert.False(t, log.Record(parse.AnswerDone, 2))
	assert.Equal(t, 2, log.DoneCount)
	assert.Equal(t, parse.AnswerDone, log.Response.String)

	// The complement counter is independent.
	assert.True(t, log.Record(parse.AnswerNotYet, 2))
	assert.Equal(t, 1, log.NotYetCount)
	assert.Equal(t, parse.AnswerNotYet, log.Response.String)
}

func TestCheckinLogRecordUncapped(t *testing.T) {
	log := &CheckinLog{}
	for i := 0; i < 5; i++ {
		assert.True(t, log.Record(parse.AnswerDone, 0))
	}
	assert.Equal(t, 5, log.DoneCount)
}

func TestVisitLogRecordCap(t *testing.T) {
	visit := &VisitLog{ChatID: "628111", Code: "KF1"}

	assert.True(t, visit.Record(parse.AnswerDone, 2))
	assert.True(t, visit.Record(parse.AnswerDone, 2))
	assert.False(t, visit.Record(parse.AnswerDone, 2))
	assert.Equal(t, 2, visit.DoneCount)
	assert.True(t, visit.Answered())
}
