package reports

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/stockcount_backend/config"
)

func reportCacheEnabled() bool {
	v := strings.TrimSpace(os.Getenv("ENABLE_REPORT_CACHE"))
	return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes") || strings.EqualFold(v, "on")
}

func reportCacheTTL() time.Duration {
	// Env: REPORT_CACHE_TTL_SECONDS (default 120s)
	ttl := 120
	if v := strings.TrimSpace(os.Getenv("REPORT_CACHE_TTL_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	return time.Duration(ttl) * time.Second
}

func reportSlowMs() int64 {
	// Env: REPORT_SLOW_MS (default 500ms)
	ms := int64(500)
	if v := strings.TrimSpace(os.Getenv("REPORT_SLOW_MS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			ms = n
		}
	}
	return ms
}

func logSlowReport(name string, started time.Time, extra map[string]any) {
	d := time.Since(started)
	if d.Milliseconds() < reportSlowMs() {
		return
	}
	log.Printf("slow_report name=%s ms=%d extra=%v", name, d.Milliseconds(), extra)
}

// ComparisonCacheKey keys a comparison payload by location and upload
// digest, so re-uploading the same file serves the cached report.
func ComparisonCacheKey(locationId int, fileBytes []byte) string {
	digest := sha256.Sum256(fileBytes)
	return fmt.Sprintf("report:comparison:%d:%s", locationId, hex.EncodeToString(digest[:8]))
}

// ComparisonReport is the cached/serialized comparison payload.
type ComparisonReport struct {
	Lines  []*ComparisonLine `json:"lines"`
	Totals *ComparisonTotals `json:"totals"`
}

func GetCachedComparison(key string) (*ComparisonReport, bool) {
	if !reportCacheEnabled() {
		return nil, false
	}
	var report ComparisonReport
	found, err := config.GetRedisObject(key, &report)
	if err != nil || !found {
		return nil, false
	}
	return &report, true
}

func SetCachedComparison(key string, report *ComparisonReport) {
	if !reportCacheEnabled() {
		return
	}
	_ = config.SetRedisObject(key, report, reportCacheTTL())
}
