package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// GetEnv returns the value of k or d when it is unset or blank.
func GetEnv(k, d string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return d
}

// Seconds is a duration expressed as (possibly fractional) seconds in the
// environment, on the command line and in YAML.
type Seconds float64

// Duration converts s to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

func (s *Seconds) String() string {
	if s == nil {
		return "0"
	}
	return strconv.FormatFloat(float64(*s), 'f', -1, 64)
}

// Set implements flag.Value.
func (s *Seconds) Set(v string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return err
	}
	*s = Seconds(f)
	return nil
}

func envSeconds(k string, d Seconds) Seconds {
	s := d
	if err := s.Set(GetEnv(k, "")); err != nil {
		return d
	}
	return s
}
