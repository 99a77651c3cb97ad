package presence

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// Assets describes the presence artwork fields.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// Button is a clickable presence button. At most two are allowed.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Activity is a rich-presence payload as configured in the panel.
type Activity struct {
	ApplicationID   string   `json:"application_id"`
	Name            string   `json:"name"`
	Details         string   `json:"details,omitempty"`
	State           string   `json:"state,omitempty"`
	Assets          Assets   `json:"assets,omitempty"`
	StartUnixMillis int64    `json:"start,omitempty"`
	Buttons         []Button `json:"buttons,omitempty"`
}

var (
	// ErrMissingApplicationID indicates the activity lacks an application id.
	ErrMissingApplicationID = errors.New("application id is required")
	// ErrInvalidButton indicates a button is missing its label or url.
	ErrInvalidButton = errors.New("button requires both label and url")
	// ErrInvalidButtonURL indicates a button url is not http(s).
	ErrInvalidButtonURL = errors.New("button url must be http or https")
)

// Normalize validates an activity and applies the payload conventions:
// a fallback name, second-resolution timestamps promoted to milliseconds,
// and at most two fully-specified buttons.
func Normalize(a Activity) (Activity, error) {
	if strings.TrimSpace(a.ApplicationID) == "" {
		return Activity{}, ErrMissingApplicationID
	}
	if strings.TrimSpace(a.Name) == "" {
		a.Name = "Playing"
	}
	if a.StartUnixMillis > 0 && a.StartUnixMillis < 1e12 {
		a.StartUnixMillis *= 1000
	}
	if len(a.Buttons) > 2 {
		a.Buttons = a.Buttons[:2]
	}
	for _, btn := range a.Buttons {
		if strings.TrimSpace(btn.Label) == "" || strings.TrimSpace(btn.URL) == "" {
			return Activity{}, ErrInvalidButton
		}
		parsed, err := url.Parse(btn.URL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return Activity{}, ErrInvalidButtonURL
		}
	}
	return a, nil
}

// Platform selects a client identity for the gateway session.
type Platform string

const (
	// PlatformDesktop reports a desktop client.
	PlatformDesktop Platform = "desktop"
	// PlatformWeb reports a browser client.
	PlatformWeb Platform = "web"
	// PlatformMobile reports a mobile client.
	PlatformMobile Platform = "mobile"
	// PlatformConsole reports an embedded console client.
	PlatformConsole Platform = "playstation"
)

// fallbackBuildNumber is used when no live build number is known.
const fallbackBuildNumber = 350000

// SuperProperties is the client identity blob sent with a session.
type SuperProperties struct {
	OS                string `json:"os"`
	Browser           string `json:"browser"`
	Device            string `json:"device"`
	SystemLocale      string `json:"system_locale"`
	BrowserUserAgent  string `json:"browser_user_agent"`
	OSVersion         string `json:"os_version,omitempty"`
	ReleaseChannel    string `json:"release_channel"`
	ClientBuildNumber int    `json:"client_build_number"`
}

var platformTemplates = map[Platform]SuperProperties{
	PlatformDesktop: {
		OS:             "Windows",
		Browser:        "Discord Client",
		SystemLocale:   "en-US",
		ReleaseChannel: "stable",
	},
	PlatformWeb: {
		OS:               "Windows",
		Browser:          "Discord Web",
		SystemLocale:     "en-US",
		BrowserUserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ReleaseChannel:   "stable",
	},
	PlatformMobile: {
		OS:               "iOS",
		Browser:          "Discord iOS",
		Device:           "iPhone14,5",
		SystemLocale:     "en-US",
		BrowserUserAgent: "Discord/205.0 (iPhone; iOS 16.6; Scale/3.00)",
		OSVersion:        "16.6",
		ReleaseChannel:   "stable",
	},
	PlatformConsole: {
		OS:               "PlayStation",
		Browser:          "Discord Embedded",
		Device:           "PlayStation 5",
		SystemLocale:     "en-US",
		BrowserUserAgent: "Mozilla/5.0 (PlayStation; PlayStation 5/2.26) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.0 Safari/605.1.15",
		ReleaseChannel:   "stable",
	},
}

// Properties returns the identity template for a platform, falling back to
// desktop for unknown values.
func Properties(platform Platform) SuperProperties {
	props, ok := platformTemplates[platform]
	if !ok {
		props = platformTemplates[PlatformDesktop]
	}
	props.ClientBuildNumber = fallbackBuildNumber
	return props
}

// Encode returns the base64 form of the identity blob as sent on the wire.
func (p SuperProperties) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
