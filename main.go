package main

import (
	"context"
	"os"
)

func main() {
	// 初始化控制台
	InitFlag()
	// 初始化配置
	InitConf(configPath)
	if outputDir != "" {
		conf.Output.Directory = outputDir
	}
	// 初始化日志
	InitLog(conf.Output.LogDir, conf.Output.OutputTerminal, logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// 开始安全退出任务
	InitSafeExit(cancel)
	defer SafeExitInst.Close()

	if conf.Metrics.Listen != "" {
		srv := ServeMetrics(conf.Metrics.Listen)
		SafeExitInst.Register(func() { srv.Close() })
	}

	// 开始任务
	if err := InitTask(ctx, conf); err != nil {
		log.Errorf("task aborted: %s", err)
		SafeExitInst.Close()
		os.Exit(1)
	}
}
