package config

import "testing"

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LoggingConfig
		wantErr bool
	}{
		{"defaults", LoggingConfig{}, false},
		{"console debug", LoggingConfig{Level: "debug", Format: "console"}, false},
		{"json warn", LoggingConfig{Level: "warn", Format: "json"}, false},
		{"bad level", LoggingConfig{Level: "loud"}, true},
		{"bad format", LoggingConfig{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewLogger: %v", err)
			}
			if logger == nil {
				t.Fatal("nil logger")
			}
		})
	}
}
