package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/azhengyongqin/analysis-hub/sdk"
)

// 示例：为一个活动启动分析并轮询直到结束。
//
//	go run ./cmd/example -event 10234 -types watermark,face_search
//	go run ./cmd/example -event 10234 -restart
func main() {
	if err := loadEnvFile(); err != nil {
		log.Printf("警告: 无法加载 .env 文件: %v（将使用环境变量或默认值）", err)
	}

	var (
		eventID  = flag.String("event", "", "活动 ID")
		types    = flag.String("types", "timeline,remove_exif,watermark", "分析类型，逗号分隔")
		restart  = flag.Bool("restart", false, "重启活动的全部分析")
		interval = flag.Duration("interval", 5*time.Second, "轮询间隔")
	)
	flag.Parse()

	if *eventID == "" {
		log.Fatal("需要 -event")
	}

	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://127.0.0.1:28080"
	}
	client := sdk.NewClient(baseURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *restart {
		results, err := client.RestartAll(ctx, *eventID)
		if err != nil {
			log.Fatalf("重启失败: %v", err)
		}
		for t, r := range results {
			if r.Error != "" {
				log.Printf("  %-14s 重启失败 [%s] %s", t, r.Kind, r.Error)
				continue
			}
			log.Printf("  %-14s 已重启", t)
		}
	} else {
		res, err := client.StartAnalysis(ctx, *eventID, parseTypes(*types)...)
		if err != nil {
			log.Fatalf("启动分析失败: %v", err)
		}
		log.Printf("已提交: %v  执行中: %v  失败: %v", res.Submitted, res.AlreadyRunning, res.Failed)
	}

	st, err := client.WaitForEvent(ctx, *eventID, *interval)
	if st != nil {
		for _, t := range st.Tasks {
			line := "  " + string(t.TaskType) + " " + string(t.Status)
			if t.ErrorDetail != "" {
				line += " " + t.ErrorDetail
			}
			log.Printf("%s (%d%%)", line, t.Progress)
		}
		log.Printf("活动 %s: %s，总进度 %d%%", st.EventID, st.EventStatus, st.OverallProgress)
	}
	if err != nil {
		log.Fatalf("等待结束失败: %v", err)
	}
}

func parseTypes(raw string) []sdk.TaskType {
	var out []sdk.TaskType
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, sdk.TaskType(p))
		}
	}
	return out
}

// loadEnvFile 从当前目录向上查找 .env
func loadEnvFile() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	possiblePaths := []string{
		filepath.Join(wd, ".env"),
		filepath.Join(wd, "..", ".env"),
		filepath.Join(wd, "..", "..", ".env"),
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return err
		}
		log.Printf("已加载环境变量文件: %s", path)
		return nil
	}
	return nil
}
