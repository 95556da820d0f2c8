package main

import (
	"reflect"
	"testing"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		raw     []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", raw: nil, want: map[string]string{}},
		{name: "pairs", raw: []string{"env=prod", "url=http://x/?a=b"}, want: map[string]string{"env": "prod", "url": "http://x/?a=b"}},
		{name: "empty value", raw: []string{"flag="}, want: map[string]string{"flag": ""}},
		{name: "missing equals", raw: []string{"env"}, wantErr: true},
		{name: "missing key", raw: []string{"=x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseParams = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIndent(t *testing.T) {
	got := indent("a\n\nb\n", "  ")
	if got != "  a\n\n  b" {
		t.Errorf("indent = %q", got)
	}
}

func TestWantColor(t *testing.T) {
	if !wantColor("always") {
		t.Error("always should enable color")
	}
	if wantColor("never") {
		t.Error("never should disable color")
	}
	t.Setenv("NO_COLOR", "1")
	if wantColor("auto") {
		t.Error("NO_COLOR should disable auto color")
	}
}
