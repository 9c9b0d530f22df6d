// lyrics-desktop 跟随正在播放的歌曲，把同步歌词推送给桌面歌词
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lyrics-desktop/internal/app"
	"lyrics-desktop/internal/config"
	"lyrics-desktop/internal/library"
	"lyrics-desktop/internal/player"
	"lyrics-desktop/internal/settings"
)

func main() {
	configPath := flag.String("config", config.DefaultPath(), "Path to config.toml")
	debug := flag.Bool("debug", false, "Enable debug logging")
	addDir := flag.String("add-dir", "", "Add a music directory and exit")
	removeDir := flag.String("remove-dir", "", "Remove a music directory and exit")
	listDirs := flag.Bool("list-dirs", false, "List music directories and exit")
	scan := flag.Bool("scan", false, "Scan music directories, print the songs found and exit")
	lrcFile := flag.String("lrc", "", "Play a local .lrc file against a simulated clock")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load(*configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *addDir != "" || *removeDir != "" || *listDirs || *scan {
		if err := manageLibrary(ctx, cfg, *addDir, *removeDir, *scan); err != nil {
			log.Fatal().Err(err).Msg("Library command failed")
		}
		return
	}

	var opts []app.Option
	if *lrcFile != "" {
		p, err := lrcPlayer(*lrcFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Cannot play lrc file")
		}
		opts = append(opts, app.WithPlayer(p))
	}

	a, err := app.New(cfg, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create app")
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("App stopped")
	}
}

func manageLibrary(ctx context.Context, cfg *config.Config, add, remove string, scan bool) error {
	store, closeStore, err := app.OpenSettings(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var dirs []string
	switch {
	case add != "":
		dirs, err = settings.AddDir(ctx, store, add)
	case remove != "":
		dirs, err = settings.RemoveDir(ctx, store, remove)
	default:
		dirs, err = store.LoadDirs(ctx)
	}
	if err != nil {
		return err
	}

	if !scan {
		for _, dir := range dirs {
			fmt.Println(dir)
		}
		return nil
	}

	for _, f := range library.Scan(dirs) {
		fmt.Printf("%s\t%s\t%s\t%s\n", f.Artist, f.Title, f.Album, f.Path)
	}
	return nil
}

// lrcPlayer 用模拟时钟从头播放一个歌词文件
func lrcPlayer(path string) (*player.Static, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, err
	}

	clock := player.NewClock()
	clock.Play()
	return &player.Static{
		Song: player.Song{
			Title: strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs)),
			URL:   abs,
		},
		Clock: clock,
	}, nil
}
