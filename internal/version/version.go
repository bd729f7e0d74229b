package version

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/nulzo/polychat/internal/httpclient"
)

// AppVersion is overridden at build time with -ldflags "-X ...version.AppVersion=v1.2.3".
var AppVersion = "v0.1.0"

// ReleaseURL is where the latest release tag is published.
const ReleaseURL = "https://api.github.com/repos/nulzo/polychat/releases/latest"

type gitHubRelease struct {
	TagName string `json:"tag_name"`
}

// Update describes the outcome of a release check.
type Update struct {
	Current  string
	Latest   string
	Outdated bool
}

// CheckForUpdates compares current against the latest published release tag.
func CheckForUpdates(ctx context.Context, client httpclient.HTTPClient, url, current string) (*Update, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var release gitHubRelease
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if err := httpclient.SendRequest(ctx, client, http.MethodGet, url, headers, nil, &release); err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}

	cur, err := goversion.NewVersion(current)
	if err != nil {
		return nil, fmt.Errorf("parse current version %q: %w", current, err)
	}

	latest, err := goversion.NewVersion(release.TagName)
	if err != nil {
		return nil, fmt.Errorf("parse release tag %q: %w", release.TagName, err)
	}

	return &Update{
		Current:  current,
		Latest:   release.TagName,
		Outdated: cur.LessThan(latest),
	}, nil
}
