package api

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"vrptw/internal/model"
	"vrptw/internal/opt"
)

func validateRunRequest(req *model.RunRequest, maxRunTime time.Duration) error {
	if strings.TrimSpace(req.Instance) == "" {
		return fmt.Errorf("instance is required")
	}
	if req.Strategy != "" && !slices.Contains(opt.Names, req.Strategy) {
		return fmt.Errorf("invalid strategy: %s (allowed: %s)", req.Strategy, strings.Join(opt.Names, ","))
	}
	if req.TimeoutMs < 0 {
		return fmt.Errorf("timeoutMs must be >= 0")
	}
	if maxRunTime > 0 && time.Duration(req.TimeoutMs)*time.Millisecond > maxRunTime {
		return fmt.Errorf("timeoutMs must be <= %d", maxRunTime.Milliseconds())
	}
	if req.CallbackURL != "" {
		u, err := url.Parse(req.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("callbackUrl must be an absolute http(s) URL")
		}
	}
	if req.CallbackSecret != "" && req.CallbackURL == "" {
		return fmt.Errorf("callbackSecret requires callbackUrl")
	}
	return nil
}
