package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

var SafeExitInst *SafeExit

// InitSafeExit 监听退出信号, 第一次取消任务, 第二次强制退出
func InitSafeExit(cancel context.CancelFunc) {
	SafeExitInst = &SafeExit{cancel: cancel}
	go SafeExitInst.ListenSignal()
}

type SafeExit struct {
	funcs  []func()
	cancel context.CancelFunc
	mu     sync.Mutex
	once   sync.Once
}

// registerExit 在 SafeExitInst 已初始化时注册清理函数
func registerExit(f func()) {
	if SafeExitInst != nil {
		SafeExitInst.Register(f)
	}
}

func (s *SafeExit) Register(f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.funcs = append(s.funcs, f)
}

// Close 依次执行注册的清理函数, 只执行一次
func (s *SafeExit) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		for _, f := range s.funcs {
			f()
		}
	})
}

func (s *SafeExit) ListenSignal() {
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	received := false
	for sig := range sigs {
		if !received {
			received = true
			fmt.Printf("收到系统信号 %s, 正在停止任务, 请稍后\n", sig)
			s.cancel()
			continue
		}
		fmt.Printf("再次收到系统信号 %s, 强制退出\n", sig)
		s.Close()
		os.Exit(1)
	}
}
