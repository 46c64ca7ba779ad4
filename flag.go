package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	hf         bool
	configPath string
	logLevel   string
	outputDir  string
)

const version = "tilespider/v0.1.0"

func InitFlag() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&configPath, "c", "./conf/conf.toml", "set config `file`")
	flag.StringVar(&logLevel, "l", "info", "set log level (default: info)")
	flag.StringVar(&outputDir, "o", "", "override output `directory` of the tile cache")
	flag.Usage = usage
	flag.Parse()

	if hf {
		flag.Usage()
		os.Exit(0)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `tilespider version: %s
Usage: tilespider [-h] [-c filename] [-l logLevel] [-o directory]
`, version)
	flag.PrintDefaults()
}
