package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var wrappedDateRe = regexp.MustCompile(`^/Date\((-?[0-9]+)\)/$`)

// Date marshals to the remote platform's wrapped epoch-millisecond string
// format, "/Date(1234567890000)/". Unmarshalling is tolerant: a value that
// does not match the wrapper is left as the zero Date rather than failing,
// because the platform omits or reformats dates in some responses.
type Date time.Time

// NewDate truncates t to second precision, which is all the wrapped format
// can carry.
func NewDate(t time.Time) Date {
	return Date(t.UTC().Truncate(time.Second))
}

func (d Date) Time() time.Time { return time.Time(d) }

func (d Date) MarshalJSON() ([]byte, error) {
	ms := time.Time(d).UnixMilli()
	return []byte(fmt.Sprintf(`"/Date(%d)/"`, ms)), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	t, ok := ParseWrappedDate(s)
	if !ok {
		*d = Date{}
		return nil
	}
	*d = Date(t)
	return nil
}

// ParseWrappedDate converts a wrapped epoch-millisecond string into a UTC
// time. The boolean reports whether the string matched the wrapper format.
func ParseWrappedDate(s string) (time.Time, bool) {
	m := wrappedDateRe.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
