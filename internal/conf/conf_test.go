package conf

import (
	"reflect"
	"testing"
)

func validConfig() *Config {
	return &Config{
		WSURL:            "ws://127.0.0.1:3001",
		DBFile:           "./test.db",
		RunTimes:         []string{"09:00", "18:30"},
		BatchMaxMessages: 200,
		PageSize:         20,
		Filter:           FilterConfig{Mode: FilterModeBlacklist},
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing ws url", func(c *Config) { c.WSURL = "" }},
		{"missing db file", func(c *Config) { c.DBFile = "" }},
		{"zero batch size", func(c *Config) { c.BatchMaxMessages = 0 }},
		{"zero page size", func(c *Config) { c.PageSize = 0 }},
		{"bad filter mode", func(c *Config) { c.Filter.Mode = "greylist" }},
		{"bad run time", func(c *Config) { c.RunTimes = []string{"9am"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseRunTime(t *testing.T) {
	tests := []struct {
		input   string
		hour    int
		minute  int
		wantErr bool
	}{
		{"09:00", 9, 0, false},
		{"23:59", 23, 59, false},
		{" 12:30 ", 12, 30, false},
		{"24:00", 0, 0, true},
		{"12:60", 0, 0, true},
		{"1200", 0, 0, true},
		{"ab:cd", 0, 0, true},
		{"", 0, 0, true},
	}

	for _, tt := range tests {
		h, m, err := ParseRunTime(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRunTime(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRunTime(%q): %v", tt.input, err)
			continue
		}
		if h != tt.hour || m != tt.minute {
			t.Errorf("ParseRunTime(%q) = %d:%d, want %d:%d", tt.input, h, m, tt.hour, tt.minute)
		}
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" 09:00, ,12:00 ,")
	want := []string{"09:00", "12:00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitList = %v, want %v", got, want)
	}
	if SplitList("") != nil {
		t.Error("empty input should yield nil")
	}
}

func TestProviderUpdateIsolation(t *testing.T) {
	provider := NewProvider(validConfig())

	before := provider.Snapshot()
	provider.Update(func(c *Config) {
		c.RunTimes = append(c.RunTimes, "21:00")
		c.Filter.GroupBlacklist = append(c.Filter.GroupBlacklist, "100")
	})
	after := provider.Snapshot()

	if len(before.RunTimes) != 2 {
		t.Errorf("old snapshot mutated: %v", before.RunTimes)
	}
	if len(after.RunTimes) != 3 {
		t.Errorf("update not applied: %v", after.RunTimes)
	}
	if len(before.Filter.GroupBlacklist) != 0 {
		t.Error("old snapshot's filter lists mutated")
	}
}
