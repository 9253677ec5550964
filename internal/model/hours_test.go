package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeekScheduleJSONRoundTrip(t *testing.T) {
	sched := WeekSchedule{
		time.Monday: {Intervals: []Interval{{Open: "09:00", Close: "12:00"}, {Open: "13:00", Close: "18:00"}}},
		time.Sunday: {Closed: true},
	}

	data, err := json.Marshal(sched)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"monday"`)
	assert.Contains(t, string(data), `"sunday"`)

	var back WeekSchedule
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sched, back)
}

func TestWeekScheduleUnknownDayName(t *testing.T) {
	var sched WeekSchedule
	err := json.Unmarshal([]byte(`{"blursday":{"closed":true}}`), &sched)
	assert.Error(t, err)
}

func TestWeekScheduleDaysMondayFirst(t *testing.T) {
	sched := WeekSchedule{
		time.Sunday: {Closed: true},
		time.Friday: {Intervals: []Interval{{Open: "09:00", Close: "17:00"}}},
		time.Monday: {Intervals: []Interval{{Open: "09:00", Close: "17:00"}}},
	}
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday, time.Sunday}, sched.Days())
}
