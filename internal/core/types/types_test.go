package types

import (
	"testing"

	"github.com/goccy/go-yaml"
)

func TestHashkeyIsStableMD5(t *testing.T) {
	// md5("") and md5("a") as hex
	if got := Hashkey(""); got != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("Hashkey(\"\") = %s", got)
	}
	if got := Hashkey("a"); got != "0cc175b9c0f1b6a831c399e269772661" {
		t.Errorf("Hashkey(\"a\") = %s", got)
	}
	if NewEntry("a", false).Hashkey != Hashkey("a") {
		t.Error("NewEntry does not derive the hashkey from the identity")
	}
}

func TestSlotAndKeyStrings(t *testing.T) {
	if got := CoverKey("h").String(); got != "h/cover" {
		t.Errorf("cover key = %s", got)
	}
	if got := PageKey("h", 7).String(); got != "h/007" {
		t.Errorf("page key = %s", got)
	}
	if !SlotCover.IsCover() || PageSlot(0).IsCover() {
		t.Error("cover slot confusion")
	}
}

func TestEntryPageCount(t *testing.T) {
	e := NewEntry("/a.cbz", false)
	if e.PageCount() != 0 {
		t.Fatal("fresh entry has pages")
	}
	e.SetPageCount(12)
	e.SetPageCount(-3)
	if e.PageCount() != 0 {
		t.Errorf("negative count stored as %d", e.PageCount())
	}
}

func TestStatusResult(t *testing.T) {
	tests := map[Status]Result{
		StatusSucceeded: ResultSuccess,
		StatusCanceled:  ResultCancelled,
		StatusFailed:    ResultError,
	}
	for status, want := range tests {
		if got := status.Result(); got != want {
			t.Errorf("%s.Result() = %s, want %s", status, got, want)
		}
	}
}

func TestBytesYAML(t *testing.T) {
	var cfg struct {
		A Bytes `yaml:"a"`
		B Bytes `yaml:"b"`
	}
	if err := yaml.Unmarshal([]byte("a: 96MiB\nb: 2048\n"), &cfg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if cfg.A != 96*1024*1024 || cfg.B != 2048 {
		t.Errorf("decoded %d and %d", cfg.A, cfg.B)
	}

	out, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var back struct {
		A Bytes `yaml:"a"`
		B Bytes `yaml:"b"`
	}
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("re-read %q: %v", out, err)
	}
	if back != cfg {
		t.Errorf("round trip changed sizes: %+v -> %+v", cfg, back)
	}
}
