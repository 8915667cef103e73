// Package logutil holds the handful of small logging helpers shared by
// cmd/ entry points and construction-time error paths.
package logutil

import "github.com/go-kit/kit/log"

// CheckWarn logs e as a warning and returns true if e is non-nil, so a
// call site can write "if logutil.CheckWarn(err, logger) { return }"
// instead of repeating the nil check and the Log call everywhere a
// failure is recoverable but still worth recording.
func CheckWarn(e error, logger log.Logger) bool {
	if e != nil {
		logger.Log("msg", "warning", "error", e)
		return true
	}
	return false
}
