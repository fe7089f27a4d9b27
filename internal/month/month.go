// Package month models the YYYY-MM billing period that partitions every
// meal, deposit and expense record and keys each closed report.
package month

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var keyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// Key identifies a billing period. The zero value is invalid.
type Key struct {
	Year  int
	Month time.Month
}

// Parse validates s against the YYYY-MM format and returns its Key.
func Parse(s string) (Key, error) {
	if !keyPattern.MatchString(s) {
		return Key{}, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	y, _ := strconv.Atoi(s[:4])
	m, _ := strconv.Atoi(s[5:])
	return Key{Year: y, Month: time.Month(m)}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Key {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// Of returns the period containing t.
func Of(t time.Time) Key {
	return Key{Year: t.Year(), Month: t.Month()}
}

func (k Key) String() string {
	if k.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Name returns the English month name, e.g. "January".
func (k Key) Name() string {
	return k.Month.String()
}

func (k Key) IsZero() bool {
	return k.Year == 0 && k.Month == 0
}

// Compare returns -1, 0 or +1 depending on whether k is before, equal to or
// after other.
func (k Key) Compare(other Key) int {
	switch {
	case k.Year < other.Year:
		return -1
	case k.Year > other.Year:
		return 1
	case k.Month < other.Month:
		return -1
	case k.Month > other.Month:
		return 1
	}
	return 0
}

func (k Key) Before(other Key) bool { return k.Compare(other) < 0 }

// Start returns midnight UTC on the first day of the period.
func (k Key) Start() time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Contains reports whether t falls inside the period.
func (k Key) Contains(t time.Time) bool {
	return Of(t) == k
}

// IsCurrentOrFuture reports whether k is the period containing now or later.
func (k Key) IsCurrentOrFuture(now time.Time) bool {
	return k.Compare(Of(now)) >= 0
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Value stores the key as its YYYY-MM text.
func (k Key) Value() (driver.Value, error) {
	return k.String(), nil
}

func (k *Key) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return k.UnmarshalText([]byte(v))
	case []byte:
		return k.UnmarshalText(v)
	case nil:
		*k = Key{}
		return nil
	}
	return fmt.Errorf("scan month: unsupported type %T", src)
}
