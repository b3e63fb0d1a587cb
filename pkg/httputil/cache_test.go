package httputil

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestCache_GetSet(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)

	in := cachedFeed{Body: "<oval_definitions/>", ETag: `"v1"`}
	if err := c.Set("https://example.com/a.xml", in); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	var out cachedFeed
	ok, err := c.Get("https://example.com/a.xml", &out)
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v; want true, nil", ok, err)
	}
	if out != in {
		t.Errorf("Get() = %+v, want %+v", out, in)
	}
}

func TestCache_Miss(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)
	var result string
	ok, err := c.Get("missing", &result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("Get() returned true for missing key")
	}
}

func TestCache_ExpiredKeepsValue(t *testing.T) {
	c, _ := NewCache(t.TempDir(), 10*time.Millisecond)

	if err := c.Set("key", "value"); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	var res string
	ok, err := c.Get("key", &res)
	if !errors.Is(err, ErrExpired) {
		t.Errorf("got error %v, want ErrExpired", err)
	}
	if ok {
		t.Error("Get() returned true for expired key")
	}
	if res != "value" {
		t.Errorf("stale value = %q, want %q", res, "value")
	}

	if err := c.Touch("key"); err != nil {
		t.Fatalf("Touch() failed: %v", err)
	}
	if ok, err := c.Get("key", &res); !ok || err != nil {
		t.Errorf("after Touch, Get() = %v, %v; want true, nil", ok, err)
	}
}

func TestCache_KeyStability(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)
	if c.keyPath("test") != c.keyPath("test") {
		t.Error("path should be deterministic")
	}
	if c.keyPath("test") == c.keyPath("other") {
		t.Error("different keys should produce different paths")
	}
}

func TestNewCache_CreatesDir(t *testing.T) {
	dir := t.TempDir() + "/feeds"
	c, err := NewCache(dir, time.Hour)
	if err != nil {
		t.Fatalf("NewCache() failed: %v", err)
	}
	if c.Dir() != dir || c.TTL() != time.Hour {
		t.Errorf("got Dir=%s TTL=%v", c.Dir(), c.TTL())
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestCache_Namespace(t *testing.T) {
	c, _ := NewCache(t.TempDir(), time.Hour)
	feeds := c.Namespace("feed:")
	other := c.Namespace("other:")

	if err := feeds.Set("k", "feed-data"); err != nil {
		t.Fatal(err)
	}
	var v string
	if ok, _ := other.Get("k", &v); ok {
		t.Error("namespace isolation violated")
	}
	if ok, _ := c.Namespace("feed:").Get("k", &v); !ok || v != "feed-data" {
		t.Errorf("same namespace should see the entry, got %v %q", ok, v)
	}
	if feeds.Dir() != c.Dir() || feeds.TTL() != c.TTL() {
		t.Error("namespace should share dir and TTL")
	}
}
