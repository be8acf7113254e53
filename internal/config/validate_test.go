package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"

	"github.com/adamancini/hoist/internal/types"
)

func TestValidateRelease(t *testing.T) {
	tests := []struct {
		name        string
		release     ReleaseConfig
		wantErr     bool
		errContains string
	}{
		{
			name:    "unset source",
			release: ReleaseConfig{},
		},
		{
			name:    "valid github",
			release: ReleaseConfig{Source: types.SourceTypeGitHub, Repo: "example/app"},
		},
		{
			name:        "github without repo",
			release:     ReleaseConfig{Source: types.SourceTypeGitHub},
			wantErr:     true,
			errContains: "must be owner/name",
		},
		{
			name:    "valid static",
			release: ReleaseConfig{Source: types.SourceTypeStatic, URL: "https://example.com/app.zip"},
		},
		{
			name:        "static with file URL",
			release:     ReleaseConfig{Source: types.SourceTypeStatic, URL: "file:///tmp/app.zip"},
			wantErr:     true,
			errContains: "http or https URL",
		},
		{
			name:        "unknown source",
			release:     ReleaseConfig{Source: "ftp"},
			wantErr:     true,
			errContains: "invalid release source",
		},
		{
			name: "short checksum",
			release: ReleaseConfig{
				Source:   types.SourceTypeGitHub,
				Repo:     "example/app",
				Checksum: "abc123",
			},
			wantErr:     true,
			errContains: "SHA-256",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateRelease(tt.release)
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("validateRelease() errors = %v, wantErr %v", errs, tt.wantErr)
			}
			if tt.wantErr && tt.errContains != "" && !strings.Contains(errs[0].Error(), tt.errContains) {
				t.Errorf("error %q should contain %q", errs[0].Error(), tt.errContains)
			}
		})
	}
}

func TestValidateInstall(t *testing.T) {
	tests := []struct {
		name        string
		install     InstallConfig
		wantErr     bool
		errContains string
	}{
		{
			name:    "all strategies",
			install: InstallConfig{Strategies: types.AllStrategyKinds()},
		},
		{
			name:    "subset in order",
			install: InstallConfig{Strategies: []types.StrategyKind{types.StrategyInPlace, types.StrategySystem}},
		},
		{
			name:        "out of order",
			install:     InstallConfig{Strategies: []types.StrategyKind{types.StrategyUser, types.StrategyInPlace}},
			wantErr:     true,
			errContains: "out of order",
		},
		{
			name:        "duplicate",
			install:     InstallConfig{Strategies: []types.StrategyKind{types.StrategyUser, types.StrategyUser}},
			wantErr:     true,
			errContains: "duplicate strategy",
		},
		{
			name:        "unknown strategy",
			install:     InstallConfig{Strategies: []types.StrategyKind{"bogus"}},
			wantErr:     true,
			errContains: "invalid strategy",
		},
		{
			name:        "unknown broker",
			install:     InstallConfig{Broker: "doas"},
			wantErr:     true,
			errContains: "invalid broker",
		},
		{
			name: "system without broker",
			install: InstallConfig{
				Strategies: []types.StrategyKind{types.StrategySystem},
				Broker:     types.BrokerNone,
			},
			wantErr:     true,
			errContains: "requires a privilege broker",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateInstall(tt.install)
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("validateInstall() errors = %v, wantErr %v", errs, tt.wantErr)
			}
			if tt.wantErr && tt.errContains != "" && !strings.Contains(errs[0].Error(), tt.errContains) {
				t.Errorf("error %q should contain %q", errs[0].Error(), tt.errContains)
			}
		})
	}
}

func TestValidateFull(t *testing.T) {
	valid := &Hoistfile{
		Version: 1,
		Release: ReleaseConfig{Source: types.SourceTypeGitHub, Repo: "example/app"},
		Install: InstallConfig{Strategies: types.AllStrategyKinds()},
		Download: DownloadConfig{
			Timeout: "2m",
		},
		Log: LogConfig{Level: "debug", Format: "json"},
	}

	if err := Validate(valid); err != nil {
		t.Errorf("Validate() unexpected error = %v", err)
	}

	invalid := &Hoistfile{
		Version:  3,
		Release:  ReleaseConfig{Source: types.SourceTypeStatic},
		Download: DownloadConfig{Timeout: "soon"},
		Unpack:   UnpackConfig{Mode: "7zip"},
		Log:      LogConfig{Level: "chatty", Format: "xml"},
		History:  HistoryConfig{Keep: -1},
	}

	err := Validate(invalid)
	if err == nil {
		t.Fatal("Validate() should return error for invalid config")
	}
	if !strings.Contains(err.Error(), "validation errors") {
		t.Errorf("error should mention validation errors, got: %v", err)
	}

	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("error should be a *multierror.Error, got %T", err)
	}
	if len(merr.Errors) != 7 {
		t.Errorf("got %d errors, want 7: %v", len(merr.Errors), err)
	}

	var verr ValidationError
	if !errors.As(err, &verr) || verr.Field != "version" {
		t.Errorf("first error should be a ValidationError for version, got %v", verr)
	}
}
