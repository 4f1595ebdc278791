package config

import "fmt"

// UsageStats controls anonymous usage reporting.
type UsageStats string

const (
	UsageStatsOn      UsageStats = "on"
	UsageStatsOff     UsageStats = "off"
	UsageStatsNoStack UsageStats = "no-stack"
)

func (u UsageStats) String() string { return string(u) }

// Set implements pflag.Value.
func (u *UsageStats) Set(s string) error {
	switch v := UsageStats(s); v {
	case UsageStatsOn, UsageStatsOff, UsageStatsNoStack:
		*u = v
		return nil
	default:
		return fmt.Errorf("expected one of on|off|no-stack, got %q", s)
	}
}

func (u *UsageStats) Type() string { return "usage-stats" }
