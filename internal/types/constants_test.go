package types

import (
	"testing"
)

func TestAttemptStateValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       AttemptState
		wantErr bool
	}{
		{"idle valid", StateIdle, false},
		{"fetching valid", StateFetching, false},
		{"cancelled valid", StateCancelled, false},
		{"empty invalid", "", true},
		{"invalid value", "paused", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("AttemptState.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAttemptStateHelpers(t *testing.T) {
	tests := []struct {
		s         AttemptState
		terminal  bool
		active    bool
		retryable bool
	}{
		{StateIdle, false, false, false},
		{StateFetching, false, true, false},
		{StateUnpacking, false, true, false},
		{StateInstalling, false, true, false},
		{StateSucceeded, true, false, false},
		{StateFailed, true, false, true},
		{StateCancelled, true, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.s.String(), func(t *testing.T) {
			if got := tt.s.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.s.IsActive(); got != tt.active {
				t.Errorf("IsActive() = %v, want %v", got, tt.active)
			}
			if got := tt.s.IsRetryable(); got != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.retryable)
			}
		})
	}
}

func TestStrategyKindPriority(t *testing.T) {
	if StrategyInPlace.Priority() >= StrategyUser.Priority() {
		t.Error("in-place must come before user")
	}
	if StrategyUser.Priority() >= StrategySystem.Priority() {
		t.Error("user must come before system")
	}
	if got := StrategyKind("bogus").Priority(); got != 3 {
		t.Errorf("unknown Priority() = %d, want 3", got)
	}
}

func TestStrategyKindRequiresElevation(t *testing.T) {
	if StrategyInPlace.RequiresElevation() || StrategyUser.RequiresElevation() {
		t.Error("only the system strategy should require elevation")
	}
	if !StrategySystem.RequiresElevation() {
		t.Error("system.RequiresElevation() should be true")
	}
}

func TestParseStrategyKind(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    StrategyKind
		wantErr bool
	}{
		{"in-place", "in-place", StrategyInPlace, false},
		{"inplace", "InPlace", StrategyInPlace, false},
		{"in_place", "in_place", StrategyInPlace, false},
		{"user", "user", StrategyUser, false},
		{"user-scoped", "User-Scoped", StrategyUser, false},
		{"system", "system", StrategySystem, false},
		{"privileged", "privileged", StrategySystem, false},
		{"empty", "", "", true},
		{"invalid", "global", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStrategyKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseStrategyKind() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseStrategyKind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseSourceType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SourceType
		wantErr bool
	}{
		{"github lowercase", "github", SourceTypeGitHub, false},
		{"github uppercase", "GITHUB", SourceTypeGitHub, false},
		{"static", "static", SourceTypeStatic, false},
		{"empty", "", "", true},
		{"invalid", "firebase", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSourceType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseSourceType() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseSourceType() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSourceTypeHelpers(t *testing.T) {
	if !SourceTypeGitHub.IsGitHub() {
		t.Error("github.IsGitHub() should be true")
	}
	if SourceTypeGitHub.IsStatic() {
		t.Error("github.IsStatic() should be false")
	}
	if !SourceTypeStatic.IsStatic() {
		t.Error("static.IsStatic() should be true")
	}
}

func TestUnpackModeDefault(t *testing.T) {
	if got := UnpackMode("").Default(); got != UnpackNative {
		t.Errorf("empty Default() = %v, want native", got)
	}
	if got := UnpackCommand.Default(); got != UnpackCommand {
		t.Errorf("command Default() = %v, want command", got)
	}
	if err := UnpackMode("7z").Validate(); err == nil {
		t.Error("expected error for unknown unpack mode")
	}
}

func TestParseBrokerType(t *testing.T) {
	tests := []struct {
		input   string
		want    BrokerType
		wantErr bool
	}{
		{"sudo", BrokerSudo, false},
		{"OSAScript", BrokerOSAScript, false},
		{"none", BrokerNone, false},
		{"", "", false},
		{"pkexec", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBrokerType(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseBrokerType() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseBrokerType() = %v, want %v", got, tt.want)
			}
		})
	}
}
