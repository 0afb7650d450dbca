package middleware

import "testing"

func TestValidateClipID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantID  string
		wantErr bool
	}{
		{"valid uuid", "550e8400-e29b-41d4-a716-446655440000", "550e8400-e29b-41d4-a716-446655440000", false},
		{"valid with underscore", "clip_abc-123", "clip_abc-123", false},
		{"trims whitespace", "  clip-1  ", "clip-1", false},
		{"empty", "", "", true},
		{"too long 37", "1234567890123456789012345678901234567", "", true},
		{"exactly 36", "123456789012345678901234567890123456", "123456789012345678901234567890123456", false},
		{"invalid chars", "clip 1", "", true},
		{"sql injection", "a'; DROP--", "", true},
		{"unicode", "clipé", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errMsg := ValidateClipID(tt.input)
			if tt.wantErr && errMsg == "" {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && errMsg != "" {
				t.Errorf("unexpected error: %s", errMsg)
			}
			if got != tt.wantID {
				t.Errorf("got %q, want %q", got, tt.wantID)
			}
		})
	}
}

func TestValidateSeasonID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid", "season-2026-q3", "season-2026-q3", false},
		{"empty", "", "", true},
		{"too long 37", "1234567890123456789012345678901234567", "", true},
		{"invalid chars", "season 1!", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errMsg := ValidateSeasonID(tt.input)
			if tt.wantErr && errMsg == "" {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && errMsg != "" {
				t.Errorf("unexpected error: %s", errMsg)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateVoterKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"valid account key", "u_a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2", "u_a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2", false},
		{"valid device key", "d_deadbeef", "d_deadbeef", false},
		{"uppercase normalized", "U_ABCD1234", "u_abcd1234", false},
		{"trims whitespace", "  u_abcd  ", "u_abcd", false},
		{"empty", "", "", true},
		{"missing prefix", "a1b2c3d4", "", true},
		{"wrong prefix", "x_abcd1234", "", true},
		{"non-hex hash", "u_xyz123", "", true},
		{"too long 67", "u_a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2a", "", true},
		{"sql injection", "u_abc'; DROP--", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errMsg := ValidateVoterKey(tt.input)
			if tt.wantErr && errMsg == "" {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && errMsg != "" {
				t.Errorf("unexpected error: %s", errMsg)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidateSlotPosition(t *testing.T) {
	tests := []struct {
		name    string
		input   int
		wantErr bool
	}{
		{"zero", 0, false},
		{"mid", 42, false},
		{"max", MaxSlotPos, false},
		{"negative", -1, true},
		{"beyond max", MaxSlotPos + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errMsg := ValidateSlotPosition(tt.input)
			if tt.wantErr && errMsg == "" {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && errMsg != "" {
				t.Errorf("unexpected error: %s", errMsg)
			}
		})
	}
}
