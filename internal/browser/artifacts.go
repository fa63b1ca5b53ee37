package browser

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactStore derives filesystem paths for check artifacts. Filenames are
// keyed-hash tokens over the monitor id and run id, so paths are deterministic
// for a run but not guessable or enumerable from monitor ids alone, and two
// runs (of the same or different monitors) never collide.
type ArtifactStore struct {
	screenshotDir string
	videoDir      string
	secret        []byte
}

// NewArtifactStore creates an artifact store
func NewArtifactStore(screenshotDir, videoDir, secret string) *ArtifactStore {
	return &ArtifactStore{
		screenshotDir: screenshotDir,
		videoDir:      videoDir,
		secret:        []byte(secret),
	}
}

// EnsureDirs creates the artifact directories.
func (a *ArtifactStore) EnsureDirs() error {
	for _, dir := range []string{a.screenshotDir, a.videoDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
		}
	}
	return nil
}

// ScreenshotPath returns the screenshot path for one check run.
func (a *ArtifactStore) ScreenshotPath(monitorID, runID string) string {
	return filepath.Join(a.screenshotDir, a.token(monitorID, runID)+".png")
}

// VideoPath returns the video path for one check run.
func (a *ArtifactStore) VideoPath(monitorID, runID string) string {
	return filepath.Join(a.videoDir, a.token(monitorID, runID)+".webm")
}

// VideoDir returns the directory the engine records raw video files into before
// they are finalized to their deterministic path.
func (a *ArtifactStore) VideoDir() string {
	return a.videoDir
}

func (a *ArtifactStore) token(monitorID, runID string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(monitorID))
	mac.Write([]byte(":"))
	mac.Write([]byte(runID))
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

// VerifyNonEmpty checks that an artifact was actually written. A missing or
// zero-byte artifact is a soft warning for the caller, not a check failure.
func VerifyNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("artifact not written: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("artifact %s is empty", path)
	}
	return nil
}
