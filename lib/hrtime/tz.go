package hrtime

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

type TimeZoneOffset int32

const (
	hourInMinutes                       = 3600
	TzUtc0Offset         TimeZoneOffset = 0
	TzUtc8Offset         TimeZoneOffset = 8 * hourInMinutes
	TzAsiaShanghaiOffset TimeZoneOffset = TzUtc8Offset
)

var (
	defaultTimezoneOffset int32
	appStartTime          time.Time
)

func DefaultTimezoneOffset() int {
	return int(atomic.LoadInt32(&defaultTimezoneOffset))
}

func SetDefaultTimezoneOffset(tz TimeZoneOffset) {
	atomic.StoreInt32(&defaultTimezoneOffset, int32(tz))
}

var tzLocations sync.Map // TimeZoneOffset -> *time.Location

// loadTZLocation maps a fixed seconds-east-of-UTC offset to a cached
// location.
func loadTZLocation(offset TimeZoneOffset) *time.Location {
	if offset == TzUtc0Offset {
		return time.UTC
	}
	if loc, ok := tzLocations.Load(offset); ok {
		return loc.(*time.Location)
	}
	sign := "+"
	secs := int(offset)
	if secs < 0 {
		sign = "-"
		secs = -secs
	}
	name := fmt.Sprintf("UTC%s%02d:%02d", sign, secs/3600, (secs%3600)/60)
	loc := time.FixedZone(name, int(offset))
	actual, _ := tzLocations.LoadOrStore(offset, loc)
	return actual.(*time.Location)
}
