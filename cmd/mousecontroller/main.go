package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wagentimHB/mousecontroller/internal/core"
	"github.com/wagentimHB/mousecontroller/internal/logging"
	"github.com/wagentimHB/mousecontroller/internal/model"
	"github.com/wagentimHB/mousecontroller/internal/storage"
)

const defaultRecordingFile = "data/mouse_recording.json"

var rootCmd = &cobra.Command{
	Use:          "mousecontroller",
	Short:        "鼠标录制与回放工具",
	Long:         "录制鼠标移动、点击和滚轮操作，并按可调速度、次数或时长回放。",
	SilenceUsage: true,
}

var (
	recordOutput string

	replaySpeed   float64
	replayDelay   int
	replayTimes   int
	replayHours   float64
	replayLatency float64

	listDirectory string
)

func init() {
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", defaultRecordingFile, "录制文件输出路径")

	replayCmd.Flags().Float64VarP(&replaySpeed, "speed", "s", 1.0, "回放速度倍率")
	replayCmd.Flags().IntVarP(&replayDelay, "delay", "d", 3, "回放前倒计时秒数")
	replayCmd.Flags().IntVarP(&replayTimes, "times", "t", 1, "回放次数")
	replayCmd.Flags().Float64VarP(&replayHours, "hours", "H", 0, "持续回放小时数（大于 0 时忽略次数）")
	replayCmd.Flags().Float64VarP(&replayLatency, "latency", "l", 2.0, "两次回放之间的停顿秒数")

	listCmd.Flags().StringVarP(&listDirectory, "directory", "d", "data", "录制文件所在目录")

	rootCmd.AddCommand(recordCmd, replayCmd, infoCmd, listCmd, guiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger 创建日志器，日志目录在可执行文件旁
func newLogger() (*zap.Logger, error) {
	execDir, err := storage.GetExecutableDir()
	if err != nil {
		return nil, err
	}
	return logging.Init(filepath.Join(execDir, "logs"))
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "录制鼠标操作，按 ESC 结束",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		recorder := core.NewRecorder(recordOutput, log)
		done := make(chan *model.Recording, 1)
		recorder.SetOnStopped(func(rec *model.Recording) { done <- rec })

		if err := recorder.StartRecording(); err != nil {
			return err
		}
		fmt.Println("录制中... 按 ESC 结束")

		// 每秒刷新一次已捕获的事件数
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		go func() {
			for range ticker.C {
				fmt.Printf("\r已捕获 %d 个事件", recorder.EventCount())
			}
		}()

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)

		var rec *model.Recording
		select {
		case rec = <-done:
		case <-interrupt:
			rec, err = recorder.StopRecording()
			if err != nil {
				return err
			}
		}
		ticker.Stop()

		fmt.Printf("\n录制完成：%d 个事件，时长 %.2f 秒\n", rec.Metadata.EventCount, rec.Metadata.Duration)
		fmt.Printf("已保存到：%s\n", recordOutput)
		return nil
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "回放录制文件",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		rec, err := storage.LoadRecording(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("已加载：%s\n", args[0])
		fmt.Printf("时长 %.2f 秒，%d 个事件，创建于 %s\n",
			rec.Metadata.Duration, rec.Metadata.EventCount, rec.Metadata.CreatedAt)

		player := core.NewPlayer(core.NewSimulator(), log)
		finished := make(chan struct{}, 1)
		player.SetCallbacks(
			func(run, total int) {
				if total == core.TimeBasedTotal {
					fmt.Printf("\n第 %d 次回放（时间模式）\n", run)
				} else {
					fmt.Printf("\n第 %d/%d 次回放\n", run, total)
				}
			},
			func(percent int) { fmt.Printf("\r进度: %d%%", percent) },
			func() { finished <- struct{}{} },
			nil,
		)

		cfg := core.ReplayConfig{
			Speed:         replaySpeed,
			DelayStart:    replayDelay,
			ReplayTimes:   replayTimes,
			ReplayHours:   replayHours,
			ReplayLatency: replayLatency,
		}
		if err := player.Start(rec, cfg); err != nil {
			return err
		}
		if replayDelay > 0 {
			fmt.Printf("%d 秒后开始回放，Ctrl+C 取消\n", replayDelay)
		}

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)

		select {
		case <-interrupt:
			player.Stop()
			<-player.Done()
			fmt.Println("\n回放已取消")
		case <-player.Done():
			select {
			case <-finished:
				fmt.Println("\n回放完成")
			default:
				fmt.Println("\n回放提前结束")
			}
		}
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "显示录制文件信息",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := storage.LoadRecording(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("文件：%s\n", args[0])
		fmt.Printf("创建时间：%s\n", rec.Metadata.CreatedAt)
		fmt.Printf("时长：%.2f 秒\n", rec.Metadata.Duration)
		fmt.Printf("事件总数：%d\n", rec.Metadata.EventCount)

		counts := make(map[string]int)
		for i := range rec.Events {
			counts[rec.Events[i].Type]++
		}
		fmt.Printf("事件构成：移动 %d，点击 %d，滚轮 %d\n",
			counts[model.EventMove], counts[model.EventClick], counts[model.EventScroll])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出目录下的所有录制文件",
	RunE: func(cmd *cobra.Command, args []string) error {
		infos, err := storage.ListRecordings(listDirectory)
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("没有找到录制文件")
			return nil
		}

		for _, info := range infos {
			if info.Err != nil {
				fmt.Printf("%s（损坏：%v）\n", info.Path, info.Err)
				continue
			}
			fmt.Printf("%s\n", info.Path)
			fmt.Printf("  创建时间：%s\n", info.Metadata.CreatedAt)
			fmt.Printf("  时长 %.2f 秒，%d 个事件\n", info.Metadata.Duration, info.Metadata.EventCount)
		}
		return nil
	},
}
