package browser

import (
	"time"

	"github.com/submitflow/submitflow/config"
)

func testBrowserConfig() config.BrowserConfig {
	return config.BrowserConfig{
		Headless:           true,
		UserDataDir:        "/tmp/submitflow-test-profile",
		ScreenshotDir:      "/tmp/submitflow-test-shots",
		NavigationTimeout:  time.Second,
		NetworkIdleTimeout: time.Second,
		SettleDelay:        time.Millisecond,
		ActionDelay:        time.Millisecond,
	}
}
