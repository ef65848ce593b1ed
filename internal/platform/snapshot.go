package platform

import (
	"context"
	"os"
	"runtime"
	"strings"
	"time"
)

// SnapshotCollector produces the one-shot environment description sent
// in the hello frame and returned by info_snapshot tasks. The payload is
// opaque to the session engine.
type SnapshotCollector interface {
	Collect(ctx context.Context) map[string]any
}

// HostCollector collects a best-effort description of the local host.
type HostCollector struct {
	// Extra fields are merged into every snapshot (e.g. deploy labels).
	Extra map[string]any
}

func (c *HostCollector) Collect(ctx context.Context) map[string]any {
	hostname, _ := os.Hostname()
	zone, offset := time.Now().Zone()

	snap := map[string]any{
		"ts": time.Now().UnixMilli(),
		"client": map[string]any{
			"platform": runtime.GOOS,
			"arch":     runtime.GOARCH,
			"runtime":  runtime.Version(),
		},
		"host": map[string]any{
			"hostname":    hostname,
			"numCPU":      runtime.NumCPU(),
			"pid":         os.Getpid(),
			"tz":          zone,
			"tzOffsetMin": -offset / 60,
			"languages":   hostLanguages(),
		},
	}
	for k, v := range c.Extra {
		snap[k] = v
	}
	return snap
}

// hostLanguages derives a preferred-language list from the locale
// environment, best effort.
func hostLanguages() []string {
	for _, key := range []string{"LANGUAGE", "LC_ALL", "LANG"} {
		if v := os.Getenv(key); v != "" {
			var langs []string
			for _, part := range strings.Split(v, ":") {
				if lang, _, found := strings.Cut(part, "."); found {
					part = lang
				}
				if part != "" && part != "C" && part != "POSIX" {
					langs = append(langs, part)
				}
			}
			if len(langs) > 0 {
				return langs
			}
		}
	}
	return nil
}
