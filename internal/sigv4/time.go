package sigv4

import "time"

// SigningTime is a single clock capture. The X-Amz-Date value and the
// credential scope date are both derived from it so they can never straddle
// a day boundary.
type SigningTime struct {
	time.Time
}

// NewSigningTime converts t to UTC and truncates it to whole seconds.
func NewSigningTime(t time.Time) SigningTime {
	return SigningTime{Time: t.UTC().Truncate(time.Second)}
}

// TimeFormat returns YYYYMMDDTHHMMSSZ.
func (t SigningTime) TimeFormat() string {
	return t.Time.Format(TimeFormat)
}

// ShortTimeFormat returns the YYYYMMDD prefix of TimeFormat.
func (t SigningTime) ShortTimeFormat() string {
	return t.Time.Format(ShortTimeFormat)
}

// ParseSigningTime parses an X-Amz-Date value.
func ParseSigningTime(value string) (SigningTime, error) {
	t, err := time.Parse(TimeFormat, value)
	if err != nil {
		return SigningTime{}, err
	}
	return NewSigningTime(t), nil
}
