package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"lyrics-desktop/internal/bus"
	"lyrics-desktop/internal/lyrics"
)

// songEndGrace 最后一行之后继续跟踪的时间
const songEndGrace = 5.0 // s

// endTime 歌词里最晚的时间点，歌词不一定有序
func endTime(lines lyrics.Sequence) float64 {
	end := 0.0
	for _, l := range lines {
		if l.Time > end {
			end = l.Time
		}
	}
	return end
}

func (a *App) stopLyricScheduler() {
	a.schedulerMutex.Lock()
	cancel, done := a.schedulerCancel, a.schedulerDone
	a.schedulerCancel, a.schedulerDone = nil, nil
	a.schedulerMutex.Unlock()

	if cancel == nil {
		return
	}
	log.Info().Msg("Stopping previous lyric scheduler")
	cancel()
	<-done
}

// startLyricScheduler 按 tick_interval 读取播放位置并发布进度，直到换歌或 ctx 结束。
// 播到最后一句之后暂停发布，往回拖动或单曲循环时恢复
func (a *App) startLyricScheduler(parent context.Context, song string, lines lyrics.Sequence) {
	a.stopLyricScheduler()

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	a.schedulerMutex.Lock()
	a.schedulerCancel = cancel
	a.schedulerDone = done
	a.schedulerMutex.Unlock()

	offset := a.cfg.App.LyricOffset
	end := endTime(lines) + songEndGrace
	interval := a.cfg.App.TickInterval

	log.Info().Int("lines_count", len(lines)).Dur("interval", interval).Msg("Starting lyric scheduler")

	go func() {
		defer close(done)
		defer log.Info().Str("song", song).Msg("Lyric scheduler stopped")

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		finished := false

		for {
			select {
			case <-ticker.C:
				// 每次都重新获取播放器时间，避免累积误差
				currentTime := a.player.Position()
				if currentTime < 0 {
					log.Warn().Float64("player_time", currentTime).Msg("Invalid player time")
					continue
				}

				if currentTime > end {
					if finished {
						continue
					}
					finished = true
					a.progressBus.Publish(bus.ProgressEvent{Song: song, Time: currentTime + offset})
					log.Info().
						Float64("current_time", currentTime).
						Float64("last_lyric_time", end-songEndGrace).
						Msg("Song finished")
					continue
				}
				if finished {
					finished = false
					log.Info().Float64("current_time", currentTime).Msg("Playback moved back, resuming lyrics")
				}

				a.progressBus.Publish(bus.ProgressEvent{Song: song, Time: currentTime + offset})

			case <-ctx.Done():
				return
			}
		}
	}()
}
