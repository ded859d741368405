package cmd

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"Toonbeat/core/audio"
	"Toonbeat/core/player"
	"Toonbeat/core/scene"
	"Toonbeat/core/tracker"
	"Toonbeat/db"
	"Toonbeat/logger"
	"Toonbeat/model"
	"Toonbeat/repository"
)

var (
	simProject  string
	simMarkers  string
	simStops    string
	simViewport float64
	simStep     float64
	simTick     time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "回放脚本化滚动",
	Long: `在没有浏览器的情况下回放一次滚动：按 --scroll 给出的位置逐步滚动，
打印每次触发的播放状态。--project 从数据库加载已保存的项目，
否则使用 --markers 生成的测试标记。`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		defer logger.Sync()

		stops, err := parseOffsets(simStops)
		if err != nil || len(stops) == 0 {
			log.Fatalf("无效的 --scroll: %q", simStops)
		}
		if simStep <= 0 {
			log.Fatalf("--step 必须大于 0")
		}

		session := player.NewSession(&player.LogElement{}, player.ResolverFunc(
			func(ctx context.Context, id string) (string, error) { return "memory://" + id, nil },
		), player.Options{RestartThreshold: cfg.RestartThreshold, PlayTimeout: cfg.PlayTimeout})

		preloader := audio.NewPreloader(audio.CapabilityFunc(func(ctx context.Context, t model.Track) error {
			fmt.Printf("  preload %s\n", t.ID)
			return nil
		}), cfg.PreloadAhead)

		container := tracker.NewStaticContainer(tracker.Viewport{Height: simViewport, ScrollTop: stops[0]})
		opts := scene.Options{
			ProjectID:    simProject,
			Session:      session,
			Preloader:    preloader,
			Desktop:      container,
			PollInterval: cfg.PollInterval,
		}
		if simProject != "" {
			if err := db.ConnectGormDB(cfg); err != nil {
				log.Fatalf("无法连接到数据库: %v", err)
			}
			defer db.CloseGormDB()
			opts.Store = repository.NewGormProjectRepository(db.GormDB)
			opts.Catalog = repository.NewGormTrackRepository(db.GormDB)
		}
		sc := scene.New(opts)
		defer sc.Close()

		states := session.Subscribe()
		done := make(chan struct{})
		go printStates(states, done)

		if err := seedScene(sc); err != nil {
			log.Fatalf("加载标记失败: %v", err)
		}
		for _, m := range sc.Registry().Markers() {
			sc.Desktop().Register(m.ID, tracker.FixedElement(1))
		}
		sc.Mount()

		scrollThrough(sc, container, stops)

		sc.WaitIdle()
		session.Unsubscribe(states)
		<-done
		fmt.Printf("passed: %v\n", sc.Passed().IDs())
	},
}

func seedScene(sc *scene.Scene) error {
	if simProject != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return sc.LoadProject(ctx)
	}
	ys, err := parseOffsets(simMarkers)
	if err != nil {
		return err
	}
	for i, y := range ys {
		id := fmt.Sprintf("track-%d", i+1)
		if _, err := sc.AddTrackMarker(model.Track{ID: id, Title: id}, y); err != nil {
			return err
		}
	}
	return nil
}

// scrollThrough moves the viewport between consecutive stops in steps of
// simStep, delivering one scroll event per step.
func scrollThrough(sc *scene.Scene, c *tracker.StaticContainer, stops []float64) {
	pos := stops[0]
	for _, target := range stops[1:] {
		fmt.Printf("scroll %.0f -> %.0f\n", pos, target)
		for pos != target {
			if target > pos {
				pos = min(pos+simStep, target)
			} else {
				pos = max(pos-simStep, target)
			}
			c.ScrollTo(pos)
			sc.Desktop().OnScroll()
			time.Sleep(simTick)
		}
		// Let the trailing poll run.
		time.Sleep(2 * simTick)
	}
}

func printStates(states <-chan player.State, done chan<- struct{}) {
	defer close(done)
	var last player.Status
	var lastTrack string
	for st := range states {
		track := ""
		switch {
		case st.LoadingTrack != nil:
			track = st.LoadingTrack.ID
		case st.CurrentTrack != nil:
			track = st.CurrentTrack.ID
		}
		if st.Status == last && track == lastTrack {
			continue
		}
		last, lastTrack = st.Status, track
		fmt.Printf("  %-8s %s\n", st.Status, track)
	}
}

func parseOffsets(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("parse offset %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func init() {
	simulateCmd.Flags().StringVar(&simProject, "project", "", "从数据库加载的项目ID")
	simulateCmd.Flags().StringVar(&simMarkers, "markers", "600,1400,2300,3100", "测试标记的纵向位置 (px)")
	simulateCmd.Flags().StringVar(&simStops, "scroll", "0,1800,900,3600", "依次滚动到的位置 (px)")
	simulateCmd.Flags().Float64Var(&simViewport, "viewport", 800, "视口高度 (px)")
	simulateCmd.Flags().Float64Var(&simStep, "step", 40, "每个滚动事件的距离 (px)")
	simulateCmd.Flags().DurationVar(&simTick, "tick", 16*time.Millisecond, "滚动事件间隔")
	rootCmd.AddCommand(simulateCmd)
}
