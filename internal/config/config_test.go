package config

import (
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.SerialBaudRate != 115200 {
		t.Errorf("expected SerialBaudRate=115200, got=%d", cfg.SerialBaudRate)
	}
	if cfg.CPPStd != "c++11" {
		t.Errorf("expected CPPStd=c++11, got=%s", cfg.CPPStd)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("KILN_SDK_ROOT", "/custom/sdk")
	t.Setenv("KILN_MODULES_ROOT", "/custom/modules")
	t.Setenv("KILN_LIBS_ROOT", "/custom/libs")
	t.Setenv("XDG_DATA_HOME", "/custom/xdg")
	t.Setenv("LOCALAPPDATA", `C:\Users\dev\AppData\Local`)

	cfg := Defaults()
	cfg.ApplyEnv()

	if cfg.SDKRoot != "/custom/sdk" {
		t.Errorf("expected SDKRoot=/custom/sdk, got=%s", cfg.SDKRoot)
	}
	if cfg.ModulesRoot != "/custom/modules" {
		t.Errorf("expected ModulesRoot=/custom/modules, got=%s", cfg.ModulesRoot)
	}
	if cfg.LibsRoot != "/custom/libs" {
		t.Errorf("expected LibsRoot=/custom/libs, got=%s", cfg.LibsRoot)
	}
	if cfg.XDGDataHome != "/custom/xdg" {
		t.Errorf("expected XDGDataHome=/custom/xdg, got=%s", cfg.XDGDataHome)
	}
	if cfg.LocalAppData != `C:\Users\dev\AppData\Local` {
		t.Errorf("expected LocalAppData captured, got=%s", cfg.LocalAppData)
	}
}

func TestFillRootDefaults(t *testing.T) {
	cfg := Defaults()
	cfg.Home = "/home/dev"
	cfg.FillRootDefaults()

	want := filepath.Join("/home/dev", ".kiln", "modules")
	if cfg.ModulesRoot != want {
		t.Errorf("expected ModulesRoot=%s, got=%s", want, cfg.ModulesRoot)
	}
	want = filepath.Join("/home/dev", ".kiln", "libraries")
	if cfg.LibsRoot != want {
		t.Errorf("expected LibsRoot=%s, got=%s", want, cfg.LibsRoot)
	}
	want = filepath.Join("/home/dev", ".kiln", "history")
	if cfg.HistoryDir() != want {
		t.Errorf("expected HistoryDir=%s, got=%s", want, cfg.HistoryDir())
	}
}

func TestEnvOverrideBeatsDefault(t *testing.T) {
	t.Setenv("KILN_MODULES_ROOT", "/override/modules")

	cfg := Defaults()
	cfg.Home = "/home/dev"
	cfg.ApplyEnv()
	cfg.FillRootDefaults()

	if cfg.ModulesRoot != "/override/modules" {
		t.Errorf("expected env override to win, got=%s", cfg.ModulesRoot)
	}
}
