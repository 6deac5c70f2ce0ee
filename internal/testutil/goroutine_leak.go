package testutil

import (
	"runtime"
	"strings"
	"testing"
	"time"
)

// CheckGoroutineLeak 比较测试前后的 goroutine 数量
//
//	defer testutil.CheckGoroutineLeak(t)()
func CheckGoroutineLeak(t *testing.T) func() {
	t.Helper()
	before := countRelevantGoroutines()

	return func() {
		t.Helper()

		deadline := time.Now().Add(time.Second)
		after := countRelevantGoroutines()
		for after > before && time.Now().Before(deadline) {
			time.Sleep(20 * time.Millisecond)
			runtime.GC()
			after = countRelevantGoroutines()
		}

		if leaked := after - before; leaked > 0 {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			t.Errorf("检测到 %d 个 goroutine 泄漏\n\n当前堆栈:\n%s", leaked, buf[:n])
		}
	}
}

// countRelevantGoroutines 不计入测试框架与 database/sql 后台协程
func countRelevantGoroutines() int {
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)

	count := 0
	for _, stack := range strings.Split(string(buf[:n]), "\n\n") {
		if strings.TrimSpace(stack) == "" || isBackgroundGoroutine(stack) {
			continue
		}
		count++
	}
	return count
}

var backgroundPatterns = []string{
	"testing.(*T).Run",
	"testing.tRunner",
	"testing.Main",
	"database/sql.(*DB).connectionOpener",
	"database/sql.(*DB).connectionCleaner",
	"util.(*LoginRateLimiter).cleanupLoop",
	"net/http.(*persistConn)",
}

func isBackgroundGoroutine(stack string) bool {
	for _, pattern := range backgroundPatterns {
		if strings.Contains(stack, pattern) {
			return true
		}
	}
	return false
}
