package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/viper"
)

var conf *Conf

// JobConf 一个下载任务, bbox/range/geojson 三选一
type JobConf struct {
	Name    string `mapstructure:"name"`
	MapType string `mapstructure:"mapType"`
	Suffix  string `mapstructure:"suffix"`
	Min     int    `mapstructure:"min"`
	Max     int    `mapstructure:"max"`
	// BBox north, west, south, east
	BBox []float64 `mapstructure:"bbox"`
	// Range left, right, top, bottom, 仅用于 min 级别
	Range   []int  `mapstructure:"range"`
	Geojson string `mapstructure:"geojson"`
}

type Conf struct {
	App struct {
		Version string `mapstructure:"version"`
		Title   string `mapstructure:"title"`
	} `mapstructure:"app"`
	Output struct {
		Directory      string `mapstructure:"directory"`
		LogDir         string `mapstructure:"logDir"`
		OutputTerminal bool   `mapstructure:"outputTerminal"`
		Progress       bool   `mapstructure:"progress"`
	} `mapstructure:"output"`
	Task struct {
		Workers      int     `mapstructure:"workers"`
		Rate         float64 `mapstructure:"rate"`
		Burst        int     `mapstructure:"burst"`
		BufSize      int     `mapstructure:"bufSize"`
		Retries      int     `mapstructure:"retries"`
		RetryBackoff int     `mapstructure:"retryBackoff"`
		Timeout      int     `mapstructure:"timeout"`
	} `mapstructure:"task"`
	Journal struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"journal"`
	Metrics struct {
		Listen string `mapstructure:"listen"`
	} `mapstructure:"metrics"`
	// Headers 覆盖默认请求头
	Headers map[string]string `mapstructure:"headers"`
	// Maps 地图类型 -> URL 模板, 与内置的合并
	Maps map[string]string `mapstructure:"maps"`
	Jobs []JobConf         `mapstructure:"jobs"`
}

// LoadConf 读取配置文件并填充默认值
func LoadConf(cfgFile string) (*Conf, error) {
	if cfgFile == "" {
		cfgFile = "conf.toml"
	}
	if _, err := os.Stat(cfgFile); err != nil {
		return nil, fmt.Errorf("config file(%s) not exist: %w", cfgFile, err)
	}
	v := viper.New()
	v.SetConfigType("toml")
	v.SetConfigFile(cfgFile)
	v.AutomaticEnv() // read in environment variables that match
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file(%s) error: %w", v.ConfigFileUsed(), err)
	}
	// 设置默认值
	v.SetDefault("app.version", "v 0.1.0")
	v.SetDefault("app.title", "Tile Spider")
	v.SetDefault("output.directory", DefaultRoot)
	v.SetDefault("output.outputTerminal", true)
	v.SetDefault("task.workers", 1)
	v.SetDefault("task.rate", 2.0)
	v.SetDefault("task.burst", 1)
	v.SetDefault("task.bufSize", 64)
	v.SetDefault("task.retries", 0)
	v.SetDefault("task.retryBackoff", 500)
	v.SetDefault("task.timeout", 30)

	var c Conf
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("parse config file(%s) error: %w", cfgFile, err)
	}
	return &c, nil
}

// InitConf 初始化配置
func InitConf(cfgFile string) {
	c, err := LoadConf(cfgFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	conf = c
}

// Downloader 按配置构造下载器
func (c *Conf) Downloader() *Downloader {
	d := NewDownloader()
	d.Root = c.Output.Directory
	for name, url := range c.Maps {
		d.Registry[name] = url
	}
	for k, v := range c.Headers {
		d.Headers.Set(k, v)
	}
	d.Client = &http.Client{Timeout: time.Duration(c.Task.Timeout) * time.Second}
	d.Options = TaskOptions{
		Workers:  c.Task.Workers,
		Rate:     c.Task.Rate,
		Burst:    c.Task.Burst,
		BufSize:  c.Task.BufSize,
		Progress: c.Output.Progress,
	}
	d.Retries = c.Task.Retries
	d.RetryBackoff = time.Duration(c.Task.RetryBackoff) * time.Millisecond
	d.JournalDir = c.Journal.Dir
	return d
}
