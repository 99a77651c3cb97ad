package presence

import (
	"errors"
	"testing"
)

func TestNormalizeRequiresApplicationID(t *testing.T) {
	_, err := Normalize(Activity{Name: "demo"})
	if !errors.Is(err, ErrMissingApplicationID) {
		t.Fatalf("expected missing application id, got %v", err)
	}
}

func TestNormalizeDefaultsName(t *testing.T) {
	got, err := Normalize(Activity{ApplicationID: "12345"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.Name != "Playing" {
		t.Fatalf("expected fallback name, got %q", got.Name)
	}
}

func TestNormalizePromotesSecondTimestamps(t *testing.T) {
	got, err := Normalize(Activity{ApplicationID: "12345", StartUnixMillis: 1700000000})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.StartUnixMillis != 1700000000000 {
		t.Fatalf("expected millisecond timestamp, got %d", got.StartUnixMillis)
	}

	got, err = Normalize(Activity{ApplicationID: "12345", StartUnixMillis: 1700000000000})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.StartUnixMillis != 1700000000000 {
		t.Fatalf("expected millisecond timestamp untouched, got %d", got.StartUnixMillis)
	}
}

func TestNormalizeButtons(t *testing.T) {
	_, err := Normalize(Activity{
		ApplicationID: "12345",
		Buttons:       []Button{{Label: "site"}},
	})
	if !errors.Is(err, ErrInvalidButton) {
		t.Fatalf("expected invalid button, got %v", err)
	}

	_, err = Normalize(Activity{
		ApplicationID: "12345",
		Buttons:       []Button{{Label: "site", URL: "ftp://example.com"}},
	})
	if !errors.Is(err, ErrInvalidButtonURL) {
		t.Fatalf("expected invalid button url, got %v", err)
	}

	got, err := Normalize(Activity{
		ApplicationID: "12345",
		Buttons: []Button{
			{Label: "one", URL: "https://example.com/1"},
			{Label: "two", URL: "https://example.com/2"},
			{Label: "three", URL: "https://example.com/3"},
		},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(got.Buttons) != 2 {
		t.Fatalf("expected buttons truncated to 2, got %d", len(got.Buttons))
	}
}

func TestPropertiesFallsBackToDesktop(t *testing.T) {
	props := Properties("toaster")
	if props.Browser != "Discord Client" {
		t.Fatalf("expected desktop template, got %q", props.Browser)
	}
	if props.ClientBuildNumber == 0 {
		t.Fatalf("expected build number set")
	}
}

func TestEncodeRoundTrips(t *testing.T) {
	encoded, err := Properties(PlatformWeb).Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded == "" {
		t.Fatalf("expected non-empty encoding")
	}
}
