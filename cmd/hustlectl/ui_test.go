package main

import (
	"testing"

	"github.com/fatih/color"

	"hustle/internal/game"
)

func TestFormatMoney(t *testing.T) {
	color.NoColor = true
	tests := []struct {
		in   int64
		want string
	}{
		{0, "$0"},
		{999, "$999"},
		{1000, "$1,000"},
		{123456, "$123,456"},
		{-1234567, "-$1,234,567"},
	}
	for _, tc := range tests {
		if got := formatMoney(tc.in); got != tc.want {
			t.Fatalf("formatMoney(%d) = %q want %q", tc.in, got, tc.want)
		}
	}
	if got := colorizeMoney(250); got != "+$250" {
		t.Fatalf("colorizeMoney(250) = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  abcdefghij  ", 8); got != "abcde..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("abc", 8); got != "abc" {
		t.Fatalf("truncate short = %q", got)
	}
}

func TestActionDefsBuild(t *testing.T) {
	defs := map[string]actionDef{}
	for _, s := range actionDefs() {
		defs[s.Action] = s
	}

	req, err := defs["gift"].Build([]string{"42", "1,500", "happy", "birthday"})
	if err != nil {
		t.Fatalf("gift build: %v", err)
	}
	if req.TargetID != "42" || req.Amount != 1500 || req.Message != "happy birthday" {
		t.Fatalf("gift request = %+v", req)
	}

	req, err = defs["loan"].Build([]string{"7", "5000", "14"})
	if err != nil || req.Days != 14 || req.Amount != 5000 {
		t.Fatalf("loan request = %+v err=%v", req, err)
	}

	if _, err := defs["invest"].Build([]string{"tech", "3"}); err != nil {
		t.Fatalf("invest should upper-case the symbol: %v", err)
	}
	if _, err := defs["invest"].Build([]string{"TECHNO", "3"}); err == nil {
		t.Fatalf("expected invalid symbol error")
	}
	req, err = defs["heist"].Build([]string{"7", "8"})
	if err != nil || len(req.Crew) != 2 || req.Crew[1] != "8" {
		t.Fatalf("heist request = %+v err=%v", req, err)
	}
	if defs["premium-heist"].MaxArgs != game.MaxHeistCrew {
		t.Fatalf("premium-heist max args = %d", defs["premium-heist"].MaxArgs)
	}

	if _, err := defs["gamble"].Build([]string{"lots"}); err == nil {
		t.Fatalf("expected invalid amount error")
	}
}
