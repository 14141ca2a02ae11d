package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
)

const settleDelay = 200 * time.Millisecond

// Watch calls onChange with a fresh session whenever the token file is
// written or replaced, until ctx is canceled. The directory is watched
// rather than the file so atomic renames by credential helpers are seen.
// Watch returns nil immediately when no token file is configured.
func (s *Source) Watch(ctx context.Context, logger zerolog.Logger, onChange func(domain.Session)) error {
	if s.cfg.TokenFile == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create token watcher: %w", err)
	}
	defer watcher.Close()

	path, err := filepath.Abs(s.cfg.TokenFile)
	if err != nil {
		return fmt.Errorf("resolve token file: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch token dir: %w", err)
	}

	// Writers often truncate then write; wait for the burst to settle.
	settle := time.NewTimer(settleDelay)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			settle.Reset(settleDelay)
		case <-settle.C:
			session, err := s.Session()
			if err != nil {
				logger.Warn().Err(err).Msg("token file changed but holds no usable token")
				continue
			}
			logger.Info().Msg("token file changed, refreshing chat session")
			onChange(session)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn().Err(err).Msg("token watcher error")
		}
	}
}
