package log

import (
	"strconv"
	"time"
)

// FormatEntry renders an entry into the fixed single-line wire format used
// for both console output and the log file:
//
//	[<ISO-8601-UTC-with-ms>] [<monotonic-ms> ms] [<LEVEL>] [Core <n>] [<file>:<function>] <message>\n
//
// The line is built with direct byte appends; a formatting library buys
// nothing for a fixed layout and costs allocations on the hot path.
func FormatEntry(e Entry) []byte {
	buf := make([]byte, 0, 72+len(e.File)+len(e.Function)+len(e.Message))

	buf = append(buf, '[')
	buf = appendTimestamp(buf, time.UnixMilli(int64(e.UnixMillis)).UTC())
	buf = append(buf, "] ["...)
	buf = strconv.AppendUint(buf, e.MonoMillis, 10)
	buf = append(buf, " ms] ["...)
	buf = append(buf, e.Level.Padded()...)
	buf = append(buf, "] [Core "...)
	buf = strconv.AppendInt(buf, int64(e.CoreID), 10)
	buf = append(buf, "] ["...)
	buf = append(buf, e.File...)
	buf = append(buf, ':')
	buf = append(buf, e.Function...)
	buf = append(buf, "] "...)
	buf = append(buf, e.Message...)
	buf = append(buf, '\n')

	return buf
}

// appendTimestamp writes t as "YYYY-MM-DDThh:mm:ss.mmmZ", filling a fixed
// 24-byte stack array digit by digit. t must already be in UTC.
func appendTimestamp(buf []byte, t time.Time) []byte {
	y, mo, d := t.Year(), int(t.Month()), t.Day()
	h, m, s := t.Hour(), t.Minute(), t.Second()
	ms := t.Nanosecond() / int(time.Millisecond)

	var ts [24]byte
	ts[0] = byte('0' + y/1000)
	ts[1] = byte('0' + (y/100)%10)
	ts[2] = byte('0' + (y/10)%10)
	ts[3] = byte('0' + y%10)
	ts[4] = '-'
	ts[5] = byte('0' + mo/10)
	ts[6] = byte('0' + mo%10)
	ts[7] = '-'
	ts[8] = byte('0' + d/10)
	ts[9] = byte('0' + d%10)
	ts[10] = 'T'
	ts[11] = byte('0' + h/10)
	ts[12] = byte('0' + h%10)
	ts[13] = ':'
	ts[14] = byte('0' + m/10)
	ts[15] = byte('0' + m%10)
	ts[16] = ':'
	ts[17] = byte('0' + s/10)
	ts[18] = byte('0' + s%10)
	ts[19] = '.'
	ts[20] = byte('0' + ms/100)
	ts[21] = byte('0' + (ms/10)%10)
	ts[22] = byte('0' + ms%10)
	ts[23] = 'Z'

	return append(buf, ts[:]...)
}
