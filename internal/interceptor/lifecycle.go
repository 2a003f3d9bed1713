package interceptor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
)

// Install warms the general partition with the origin's root page.
// Failure is logged and otherwise ignored.
func (i *Interceptor) Install(ctx context.Context) {
	if i.origin == nil {
		i.logger.Warn(ctx, "install skipped", "error", ErrNoOrigin)
		return
	}
	root := i.origin.JoinPath("/")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root.String(), nil)
	if err != nil {
		i.logger.Warn(ctx, "install warm-up failed", "url", root.String(), "error", err)
		return
	}
	resp, err := i.fetchAndStore(req, i.general)
	if err != nil {
		i.logger.Warn(ctx, "install warm-up failed", "url", root.String(), "error", err)
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if !ok(resp) {
		i.logger.Warn(ctx, "install warm-up failed", "url", root.String(), "status", resp.StatusCode)
		return
	}
	i.logger.Info(ctx, "install warm-up done", "url", root.String())
}

// Activate deletes every partition that is not one of the current two.
// It returns the names it removed.
func (i *Interceptor) Activate(ctx context.Context) ([]string, error) {
	names, err := i.storage.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	current := []string{GeneralCacheName, AuthCacheName}

	var removed []string
	for _, name := range names {
		if slices.Contains(current, name) {
			continue
		}
		if _, err := i.storage.Delete(ctx, name); err != nil {
			return removed, fmt.Errorf("delete cache %q: %w", name, err)
		}
		i.logger.Info(ctx, "stale cache deleted", "cache", name)
		removed = append(removed, name)
	}
	return removed, nil
}
