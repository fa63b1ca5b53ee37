package browser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/vigilops/vigil/internal/executor"
	"github.com/vigilops/vigil/internal/model"
)

// Video recording resolution for check contexts.
const (
	videoWidth  = 1280
	videoHeight = 720
)

// Check executes browser-based health checks: render the target page in a real
// engine, optionally play back a scripted interaction sequence, and capture
// screenshot and video artifacts.
type Check struct {
	mgr        *Manager
	artifacts  *ArtifactStore
	navTimeout time.Duration
}

// NewCheck creates the browser check executor
func NewCheck(mgr *Manager, artifacts *ArtifactStore, navTimeout time.Duration) *Check {
	return &Check{
		mgr:        mgr,
		artifacts:  artifacts,
		navTimeout: navTimeout,
	}
}

// Type returns the check type this executor handles.
func (c *Check) Type() string {
	return model.CheckTypeBrowser
}

// Check runs one browser check. Every resource opened here is released on every
// exit path; the per-check browsing context never outlives the check.
func (c *Check) Check(ctx context.Context, monitor *model.Monitor, correlationID string) (*model.CheckResult, error) {
	monitorID := monitor.ID.Hex()

	// Scheme validation happens before any browser resource is touched, so a
	// file:// or ftp:// target can never reach the engine.
	if err := model.ValidateTargetURL(monitor.URL); err != nil {
		cerr := executor.Configf("invalid browser check target: %w", err)
		return model.DownResult(monitor.ID, correlationID, cerr.Error()), cerr
	}

	handle, err := c.acquireBrowser(ctx, monitor)
	if err != nil {
		// Browser launch failure determines the status itself, so it does fail
		// the check.
		return model.DownResult(monitor.ID, correlationID, err.Error()), err
	}
	if handle.owned {
		defer func() {
			if err := handle.browser.Close(); err != nil {
				slog.Warn("Failed to close remote browser", "monitor_id", monitorID, "error", err)
			}
		}()
	}

	browserCtx, err := handle.browser.NewContext(playwright.BrowserNewContextOptions{
		RecordVideo: &playwright.RecordVideo{
			Dir:  c.artifacts.VideoDir(),
			Size: &playwright.Size{Width: videoWidth, Height: videoHeight},
		},
	})
	if err != nil {
		terr := executor.Transientf("failed to open browsing context: %w", err)
		return model.DownResult(monitor.ID, correlationID, terr.Error()), terr
	}
	// Closing the context releases every per-check resource regardless of how
	// the steps below went.
	defer func() {
		if err := browserCtx.Close(); err != nil {
			slog.Warn("Failed to close browsing context", "monitor_id", monitorID, "error", err)
		}
	}()

	page, err := browserCtx.NewPage()
	if err != nil {
		terr := executor.Transientf("failed to open page: %w", err)
		return model.DownResult(monitor.ID, correlationID, terr.Error()), terr
	}

	screenshotPath := c.artifacts.ScreenshotPath(monitorID, correlationID)
	videoPath := c.artifacts.VideoPath(monitorID, correlationID)

	navStart := time.Now()
	resp, navErr := page.Goto(monitor.URL, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(c.navTimeout.Milliseconds())),
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	elapsed := time.Since(navStart)

	if navErr == nil && len(monitor.ScriptedTest) > 0 {
		c.playback(page, monitor.ScriptedTest, screenshotPath, monitorID)
	}

	result := &model.CheckResult{
		MonitorID:     monitor.ID,
		CorrelationID: correlationID,
		CheckedAt:     time.Now().UTC(),
	}

	// Screenshot is captured even after a failed navigation; an error page is
	// still a useful diagnostic. Artifact failures are warnings, never check
	// failures.
	if _, err := page.Screenshot(playwright.PageScreenshotOptions{
		Path: playwright.String(screenshotPath),
	}); err != nil {
		slog.Warn("Failed to capture screenshot", "monitor_id", monitorID, "error", err)
	} else {
		result.Screenshot = screenshotPath
	}

	c.finalizeVideo(page, videoPath, monitorID, result)

	if navErr != nil {
		// Navigation timeout or network failure: a down result, not a fatal
		// error, but retryable by the broker in queue mode.
		result.Status = model.StatusDown
		result.Message = navErr.Error()
		result.PingMs = elapsed.Milliseconds()
		return result, executor.Transientf("navigation failed: %w", navErr)
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.Status()
	}
	result.PingMs = pingFromTiming(resp, elapsed)

	if statusCode >= 200 && statusCode < 400 {
		result.Status = model.StatusUp
		result.Message = fmt.Sprintf("%d - %s", statusCode, http.StatusText(statusCode))
		return result, nil
	}

	// A bad status is a handled down observation of the target, not an
	// execution failure: no broker retry.
	result.Status = model.StatusDown
	result.Message = fmt.Sprintf("%d - %s", statusCode, http.StatusText(statusCode))
	return result, nil
}

// browserHandle pairs a browser with its ownership: the shared instance belongs
// to the manager, a remote connection belongs to this check.
type browserHandle struct {
	browser playwright.Browser
	owned   bool
}

func (c *Check) acquireBrowser(ctx context.Context, monitor *model.Monitor) (browserHandle, error) {
	if monitor.RemoteBrowser != "" {
		browser, err := c.mgr.Connect(ctx, monitor.RemoteBrowser)
		if err != nil {
			return browserHandle{}, err
		}
		return browserHandle{browser: browser, owned: true}, nil
	}

	browser, err := c.mgr.Acquire(ctx)
	if err != nil {
		return browserHandle{}, err
	}
	return browserHandle{browser: browser}, nil
}

// finalizeVideo closes the page (which flushes the in-progress recording) and
// persists the video to its deterministic path.
func (c *Check) finalizeVideo(page playwright.Page, videoPath, monitorID string, result *model.CheckResult) {
	video := page.Video()

	if err := page.Close(); err != nil {
		slog.Warn("Failed to close page", "monitor_id", monitorID, "error", err)
	}

	if video == nil {
		return
	}

	if err := video.SaveAs(videoPath); err != nil {
		slog.Warn("Failed to persist video artifact", "monitor_id", monitorID, "error", err)
		return
	}
	// Drop the randomly named original left in the recording directory.
	if err := video.Delete(); err != nil {
		slog.Debug("Failed to delete raw video recording", "monitor_id", monitorID, "error", err)
	}

	if err := VerifyNonEmpty(videoPath); err != nil {
		slog.Warn("Video artifact verification failed", "monitor_id", monitorID, "error", err)
		return
	}

	result.Video = videoPath
}

// playback plays scripted commands sequentially. Best-effort, not atomic: a
// failed command is logged and skipped, and playback continues.
func (c *Check) playback(page playwright.Page, commands []model.ScriptedCommand, screenshotPath, monitorID string) {
	for i, cmd := range commands {
		if err := playCommand(page, cmd, screenshotPath); err != nil {
			slog.Warn("Scripted command failed, continuing",
				"monitor_id", monitorID,
				"step", i,
				"action", cmd.Action,
				"error", err,
			)
		}
	}
}

func playCommand(page playwright.Page, cmd model.ScriptedCommand, screenshotPath string) error {
	switch cmd.Action {
	case model.ActionWait:
		ms, err := strconv.Atoi(cmd.Value)
		if err != nil {
			return fmt.Errorf("invalid wait value %q: %w", cmd.Value, err)
		}
		page.WaitForTimeout(float64(ms))
		return nil
	case model.ActionClick:
		return page.Locator(cmd.Selector).Click()
	case model.ActionType:
		return page.Locator(cmd.Selector).Fill(cmd.Value)
	case model.ActionScroll:
		dy, err := strconv.ParseFloat(cmd.Value, 64)
		if err != nil {
			return fmt.Errorf("invalid scroll value %q: %w", cmd.Value, err)
		}
		return page.Mouse().Wheel(0, dy)
	case model.ActionScreenshot:
		_, err := page.Screenshot(playwright.PageScreenshotOptions{
			Path: playwright.String(screenshotPath),
		})
		return err
	default:
		return fmt.Errorf("unknown scripted action %q", cmd.Action)
	}
}

// pingFromTiming takes latency from the navigation timing's response-end marker
// when available, falling back to the measured elapsed time.
func pingFromTiming(resp playwright.Response, fallback time.Duration) int64 {
	if resp != nil {
		if timing := resp.Request().Timing(); timing != nil && timing.ResponseEnd > 0 {
			return int64(timing.ResponseEnd)
		}
	}
	return fallback.Milliseconds()
}
